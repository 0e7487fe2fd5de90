package shipping_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arunika-id/arunika/internal/shipping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregator(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *shipping.RajaOngkirProvider) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	provider, err := shipping.NewRajaOngkirProvider(shipping.RajaOngkirConfig{
		BaseURL:          srv.URL,
		APIKey:           "test-key",
		OriginPostalCode: "40526",
	})
	require.NoError(t, err)
	return srv, provider
}

func TestRajaOngkirProvider_Quote_FlatShape(t *testing.T) {
	_, provider := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "40526", r.FormValue("origin"))
		assert.Equal(t, "40115", r.FormValue("destination"))
		assert.Equal(t, "600", r.FormValue("weight"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"meta": {"code": 200, "message": "OK"},
			"data": [
				{"code": "jne", "name": "JNE", "service": "YES", "description": "Yakin Esok Sampai", "cost": 34000, "etd": "1-1"},
				{"code": "jne", "name": "JNE", "service": "REG", "description": "Layanan Reguler", "cost": 18000, "etd": "2-3"}
			]
		}`))
	})

	quotes, err := provider.Quote(context.Background(), shipping.QuoteParams{
		DestinationPostalCode: "40115",
		WeightGrams:           600,
	})

	require.NoError(t, err)
	require.Len(t, quotes, 2)

	// Sorted ascending by cost
	assert.Equal(t, "REG", quotes[0].ServiceCode)
	assert.Equal(t, int64(18000), quotes[0].Cost)
	assert.Equal(t, 2, quotes[0].EtdMinDays)
	assert.Equal(t, 3, quotes[0].EtdMaxDays)
	assert.Equal(t, "YES", quotes[1].ServiceCode)
	assert.Equal(t, int64(34000), quotes[1].Cost)
	assert.Equal(t, 1, quotes[1].EtdMinDays)
	assert.Equal(t, 1, quotes[1].EtdMaxDays)
}

func TestRajaOngkirProvider_Quote_TieredShape(t *testing.T) {
	_, provider := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"meta": {"code": 200, "message": "OK"},
			"data": [
				{
					"code": "sicepat", "name": "SiCepat",
					"costs": [
						{"service": "BEST", "description": "Besok Sampai Tujuan", "cost": [{"value": 27000, "etd": "1 HARI"}]},
						{"service": "SIUNT", "description": "Siuntung", "cost": [{"value": 15500, "etd": "2-3 HARI"}]},
						{"service": "GOKIL", "description": "Cargo", "cost": [{"value": 0, "etd": ""}]}
					]
				}
			]
		}`))
	})

	quotes, err := provider.Quote(context.Background(), shipping.QuoteParams{
		DestinationPostalCode: "40115",
		WeightGrams:           1200,
	})

	require.NoError(t, err)
	require.Len(t, quotes, 2, "zero-cost tiers should be dropped")

	assert.Equal(t, "SIUNT", quotes[0].ServiceCode)
	assert.Equal(t, int64(15500), quotes[0].Cost)
	assert.Equal(t, 2, quotes[0].EtdMinDays)
	assert.Equal(t, 3, quotes[0].EtdMaxDays)
	assert.Equal(t, "BEST", quotes[1].ServiceCode)
	assert.Equal(t, 1, quotes[1].EtdMinDays)
	assert.Equal(t, 1, quotes[1].EtdMaxDays)
}

func TestRajaOngkirProvider_Quote_NoService(t *testing.T) {
	_, provider := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"meta": {"code": 200, "message": "OK"}, "data": []}`))
	})

	quotes, err := provider.Quote(context.Background(), shipping.QuoteParams{
		DestinationPostalCode: "99999",
		WeightGrams:           600,
	})

	assert.NoError(t, err)
	assert.Empty(t, quotes, "no coverage is an empty list, not an error")
}

func TestRajaOngkirProvider_Quote_UpstreamFailureIsRetryable(t *testing.T) {
	_, provider := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	quotes, err := provider.Quote(context.Background(), shipping.QuoteParams{
		DestinationPostalCode: "40115",
		WeightGrams:           600,
	})

	assert.Error(t, err)
	assert.True(t, shipping.IsUnavailable(err))
	assert.Nil(t, quotes)
}

func TestRajaOngkirProvider_Quote_MalformedResponseIsRetryable(t *testing.T) {
	_, provider := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	})

	_, err := provider.Quote(context.Background(), shipping.QuoteParams{
		DestinationPostalCode: "40115",
		WeightGrams:           600,
	})

	assert.Error(t, err)
	assert.True(t, shipping.IsUnavailable(err))
}

func TestRajaOngkirProvider_Quote_ValidatesInput(t *testing.T) {
	_, provider := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for invalid input")
	})

	_, err := provider.Quote(context.Background(), shipping.QuoteParams{
		DestinationPostalCode: "40115",
		WeightGrams:           -5,
	})
	assert.True(t, errors.Is(err, shipping.ErrInvalidWeight))

	_, err = provider.Quote(context.Background(), shipping.QuoteParams{
		DestinationPostalCode: "bad",
		WeightGrams:           600,
	})
	assert.True(t, errors.Is(err, shipping.ErrInvalidPostalCode))
}

func TestNewRajaOngkirProvider_RequiresAPIKey(t *testing.T) {
	_, err := shipping.NewRajaOngkirProvider(shipping.RajaOngkirConfig{
		OriginPostalCode: "40526",
	})
	assert.True(t, errors.Is(err, shipping.ErrMissingAPIKey))
}
