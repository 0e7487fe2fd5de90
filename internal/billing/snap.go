package billing

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arunika-id/arunika/internal/domain"
)

const (
	defaultSessionExpiry  = 24 * time.Hour
	defaultRequestTimeout = 15 * time.Second
)

// SnapProvider implements Provider against a snap-token payment gateway.
// The gateway hosts the payment page; this client only registers
// transactions and authenticates async notifications.
type SnapProvider struct {
	baseURL   string
	serverKey string
	client    *http.Client
	logger    *slog.Logger
}

// SnapConfig contains configuration for the snap gateway provider.
type SnapConfig struct {
	BaseURL   string
	ServerKey string
	Logger    *slog.Logger // Optional: defaults to slog.Default()
}

// NewSnapProvider creates a new snap gateway provider.
func NewSnapProvider(cfg SnapConfig) (*SnapProvider, error) {
	if cfg.ServerKey == "" {
		return nil, ErrInvalidAPIKey
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://app.sandbox.midtrans.com/snap"
	}

	return &SnapProvider{
		baseURL:   baseURL,
		serverKey: cfg.ServerKey,
		client:    &http.Client{Timeout: defaultRequestTimeout},
		logger:    logger,
	}, nil
}

type snapTransactionRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails *struct {
		FirstName string `json:"first_name,omitempty"`
		Email     string `json:"email,omitempty"`
	} `json:"customer_details,omitempty"`
	Expiry struct {
		Unit     string `json:"unit"`
		Duration int    `json:"duration"`
	} `json:"expiry"`
}

type snapTransactionResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages"`
}

// CreateSession registers a pending transaction and returns the hosted
// session token. The gateway enforces the expiry server-side; the
// returned ExpiresAt mirrors it for local bookkeeping.
func (p *SnapProvider) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	expiry := params.Expiry
	if expiry <= 0 {
		expiry = defaultSessionExpiry
	}

	var reqBody snapTransactionRequest
	reqBody.TransactionDetails.OrderID = params.OrderNumber
	reqBody.TransactionDetails.GrossAmount = params.Amount
	reqBody.Expiry.Unit = "minutes"
	reqBody.Expiry.Duration = int(expiry.Minutes())
	if params.CustomerName != "" || params.CustomerEmail != "" {
		reqBody.CustomerDetails = &struct {
			FirstName string `json:"first_name,omitempty"`
			Email     string `json:"email,omitempty"`
		}{FirstName: params.CustomerName, Email: params.CustomerEmail}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(p.serverKey+":")))

	logger := p.logger.With("order_number", params.OrderNumber, "amount", params.Amount)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("gateway request failed", "error", err)
		return nil, &GatewayError{Message: "transaction request failed", Temporary: true, OriginalError: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &GatewayError{Message: "failed to read gateway response", Temporary: true, OriginalError: err}
	}

	var parsed snapTransactionResponse
	if resp.StatusCode >= 500 {
		logger.Error("gateway server error", "status", resp.StatusCode)
		return nil, &GatewayError{Message: "gateway unavailable", StatusCode: resp.StatusCode, Temporary: true}
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &GatewayError{Message: "malformed gateway response", StatusCode: resp.StatusCode, Temporary: true, OriginalError: err}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := "transaction rejected"
		if len(parsed.ErrorMessages) > 0 {
			msg = strings.Join(parsed.ErrorMessages, "; ")
		}
		logger.Warn("gateway rejected transaction", "status", resp.StatusCode, "message", msg)
		return nil, &GatewayError{Message: msg, StatusCode: resp.StatusCode}
	}
	if parsed.Token == "" {
		return nil, &GatewayError{Message: "gateway returned empty session token", StatusCode: resp.StatusCode}
	}

	logger.Info("payment session created")

	return &Session{
		Token:       parsed.Token,
		RedirectURL: parsed.RedirectURL,
		ExpiresAt:   time.Now().Add(expiry),
	}, nil
}

// snapNotification is the gateway's async callback payload.
type snapNotification struct {
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

// DecodeNotification parses and authenticates a gateway notification.
// The signature is sha512(order_id + status_code + gross_amount + serverKey);
// any payload failing that check is rejected before inspection.
func (p *SnapProvider) DecodeNotification(payload []byte) (*domain.PaymentNotification, error) {
	var n snapNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, ErrMalformedNotification
	}
	if n.OrderID == "" || n.TransactionID == "" {
		return nil, ErrMalformedNotification
	}

	expected := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + p.serverKey))
	expectedHex := hex.EncodeToString(expected[:])
	if subtle.ConstantTimeCompare([]byte(expectedHex), []byte(strings.ToLower(n.SignatureKey))) != 1 {
		return nil, ErrInvalidSignature
	}

	amount, err := parseGrossAmount(n.GrossAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedNotification, err)
	}

	return &domain.PaymentNotification{
		GatewayRef:  n.TransactionID,
		OrderNumber: n.OrderID,
		Outcome:     mapTransactionStatus(n.TransactionStatus, n.FraudStatus),
		Amount:      amount,
	}, nil
}

// mapTransactionStatus folds the gateway's status vocabulary into the
// three outcomes reconciliation understands. A capture held for fraud
// review stays pending until the gateway re-notifies.
func mapTransactionStatus(status, fraudStatus string) domain.CallbackOutcome {
	switch status {
	case "settlement":
		return domain.OutcomeSuccess
	case "capture":
		if fraudStatus == "challenge" {
			return domain.OutcomePending
		}
		return domain.OutcomeSuccess
	case "pending":
		return domain.OutcomePending
	default:
		// deny, cancel, expire, failure
		return domain.OutcomeFailure
	}
}

// parseGrossAmount converts the gateway's decimal-string amount
// ("510000.00") into the smallest currency unit.
func parseGrossAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty gross_amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable gross_amount %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative gross_amount %q", s)
	}
	return int64(math.Round(f)), nil
}
