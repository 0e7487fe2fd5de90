package shipping

import (
	"context"
	"sort"
)

// FlatRateProvider returns predefined flat-rate shipping options.
// Used for local development and shops without a carrier account.
type FlatRateProvider struct {
	rates []FlatRate
}

// FlatRate defines a single flat-rate shipping option.
type FlatRate struct {
	CarrierCode string
	ServiceCode string
	Description string
	Cost        int64
	DaysMin     int
	DaysMax     int
}

// NewFlatRateProvider creates a new flat-rate shipping provider.
func NewFlatRateProvider(rates []FlatRate) Provider {
	return &FlatRateProvider{rates: rates}
}

// DefaultFlatRates covers the common domestic service tiers.
func DefaultFlatRates() []FlatRate {
	return []FlatRate{
		{CarrierCode: "flat", ServiceCode: "REG", Description: "Regular (2-4 days)", Cost: 18000, DaysMin: 2, DaysMax: 4},
		{CarrierCode: "flat", ServiceCode: "EXP", Description: "Express (1-2 days)", Cost: 32000, DaysMin: 1, DaysMax: 2},
	}
}

// Quote converts the configured flat rates to Quote objects.
func (p *FlatRateProvider) Quote(ctx context.Context, params QuoteParams) ([]Quote, error) {
	if params.WeightGrams <= 0 {
		return nil, ErrInvalidWeight
	}
	if !ValidPostalCode(params.DestinationPostalCode) {
		return nil, ErrInvalidPostalCode
	}

	result := make([]Quote, 0, len(p.rates))
	for _, fr := range p.rates {
		if params.CarrierCode != "" && params.CarrierCode != fr.CarrierCode {
			continue
		}
		result = append(result, Quote{
			CarrierCode: fr.CarrierCode,
			ServiceCode: fr.ServiceCode,
			Description: fr.Description,
			Cost:        fr.Cost,
			EtdMinDays:  fr.DaysMin,
			EtdMaxDays:  fr.DaysMax,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Cost < result[j].Cost })
	return result, nil
}
