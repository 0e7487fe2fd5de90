package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultQuoteTimeout = 10 * time.Second

// RajaOngkirProvider fetches domestic rates from a carrier aggregator.
// The upstream API returns two response shapes depending on the carrier:
// a flat per-service list, and a nested per-carrier tier list. Both are
// normalized into the uniform Quote type here.
type RajaOngkirProvider struct {
	baseURL          string
	apiKey           string
	originPostalCode string
	client           *http.Client
	logger           *slog.Logger
}

// RajaOngkirConfig contains configuration for the aggregator provider.
type RajaOngkirConfig struct {
	BaseURL          string
	APIKey           string
	OriginPostalCode string
	Logger           *slog.Logger // Optional: defaults to slog.Default()
}

// NewRajaOngkirProvider creates a new aggregator-backed shipping provider.
func NewRajaOngkirProvider(cfg RajaOngkirConfig) (*RajaOngkirProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if !ValidPostalCode(cfg.OriginPostalCode) {
		return nil, ErrInvalidPostalCode
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.rajaongkir.com/v2"
	}

	return &RajaOngkirProvider{
		baseURL:          baseURL,
		apiKey:           cfg.APIKey,
		originPostalCode: cfg.OriginPostalCode,
		client:           &http.Client{Timeout: defaultQuoteTimeout},
		logger:           logger,
	}, nil
}

// quoteResponse is the upstream envelope. Entries carry either a direct
// cost (flat shape) or a costs list of tiers (nested shape), never both.
type quoteResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Data []quoteEntry `json:"data"`
}

type quoteEntry struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Service     string `json:"service"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	Etd         string `json:"etd"`

	Costs []quoteTier `json:"costs"`
}

type quoteTier struct {
	Service     string `json:"service"`
	Description string `json:"description"`
	Cost        []struct {
		Value int64  `json:"value"`
		Etd   string `json:"etd"`
	} `json:"cost"`
}

// Quote returns available service options sorted by ascending cost.
// An empty data list from the upstream is returned as an empty slice.
func (p *RajaOngkirProvider) Quote(ctx context.Context, params QuoteParams) ([]Quote, error) {
	if params.WeightGrams <= 0 {
		return nil, ErrInvalidWeight
	}
	if !ValidPostalCode(params.DestinationPostalCode) {
		return nil, ErrInvalidPostalCode
	}

	logger := p.logger.With(
		"destination", params.DestinationPostalCode,
		"weight_grams", params.WeightGrams,
	)

	form := url.Values{}
	form.Set("origin", p.originPostalCode)
	form.Set("destination", params.DestinationPostalCode)
	form.Set("weight", strconv.FormatInt(int64(params.WeightGrams), 10))
	if params.CarrierCode != "" {
		form.Set("courier", params.CarrierCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/calculate/domestic-cost", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("quote request failed", "error", err)
		return nil, QuoteUnavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, QuoteUnavailable(err)
	}

	if resp.StatusCode >= 500 {
		logger.Error("quote upstream error", "status", resp.StatusCode)
		return nil, QuoteUnavailable(fmt.Errorf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request rejected with status %d: %s", resp.StatusCode, body)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, QuoteUnavailable(fmt.Errorf("malformed quote response: %w", err))
	}
	if parsed.Meta.Code != 0 && parsed.Meta.Code != http.StatusOK {
		return nil, QuoteUnavailable(fmt.Errorf("upstream meta code %d: %s", parsed.Meta.Code, parsed.Meta.Message))
	}

	quotes := normalizeQuotes(parsed.Data)
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Cost < quotes[j].Cost })

	logger.Info("shipping quotes fetched", "quote_count", len(quotes))
	return quotes, nil
}

// normalizeQuotes flattens both upstream shapes into a single list.
// Zero-cost tiers are dropped; the upstream emits those for services
// the destination does not actually support.
func normalizeQuotes(entries []quoteEntry) []Quote {
	quotes := make([]Quote, 0, len(entries))
	for _, e := range entries {
		if len(e.Costs) == 0 {
			if e.Cost <= 0 {
				continue
			}
			min, max := parseEtd(e.Etd)
			quotes = append(quotes, Quote{
				CarrierCode: e.Code,
				ServiceCode: e.Service,
				Description: e.Description,
				Cost:        e.Cost,
				EtdMinDays:  min,
				EtdMaxDays:  max,
			})
			continue
		}
		for _, tier := range e.Costs {
			for _, c := range tier.Cost {
				if c.Value <= 0 {
					continue
				}
				min, max := parseEtd(c.Etd)
				quotes = append(quotes, Quote{
					CarrierCode: e.Code,
					ServiceCode: tier.Service,
					Description: tier.Description,
					Cost:        c.Value,
					EtdMinDays:  min,
					EtdMaxDays:  max,
				})
			}
		}
	}
	return quotes
}

// parseEtd handles "2-3", "2", "1-1", and "2-3 HARI" style estimates.
// Unparseable estimates fall back to a 1-7 day window.
func parseEtd(etd string) (min, max int) {
	etd = strings.ToUpper(strings.TrimSpace(etd))
	etd = strings.TrimSuffix(etd, " HARI")
	etd = strings.TrimSuffix(etd, " DAYS")
	etd = strings.TrimSpace(etd)

	lo, hi, ok := strings.Cut(etd, "-")
	if !ok {
		hi = lo
	}
	minV, err1 := strconv.Atoi(strings.TrimSpace(lo))
	maxV, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil || minV <= 0 || maxV < minV {
		return 1, 7
	}
	return minV, maxV
}
