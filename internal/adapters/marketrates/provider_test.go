package marketrates_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SscSPs/mma_rates/internal/adapters/marketrates"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchLatest_ParsesAndDropsBadEntries(t *testing.T) {
	body := `{"base":"usd","date":"2024-03-10","rates":{"EUR":0.9,"CNY":"7.1","GBP":-1,"JPY":0,"x":1.5,"INR":"abc","CHF":null}}`
	srv := newServer(t, http.StatusOK, body, nil)

	p, err := marketrates.NewProvider(marketrates.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	snap, err := p.FetchLatest(context.Background(), "usd")
	require.NoError(t, err)

	assert.Equal(t, "USD", snap.Base)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), snap.Date)
	require.Len(t, snap.Rates, 2)
	assert.True(t, decimal.RequireFromString("0.9").Equal(snap.Rates["EUR"]))
	assert.True(t, decimal.RequireFromString("7.1").Equal(snap.Rates["CNY"]))
}

func TestFetchLatest_SendsBaseAndAPIKey(t *testing.T) {
	var gotBase, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBase = r.URL.Query().Get("base")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"base":"EUR","date":"2024-03-10","rates":{}}`))
	}))
	defer srv.Close()

	p, err := marketrates.NewProvider(marketrates.Config{BaseURL: srv.URL, APIKey: "secret"}, nil)
	require.NoError(t, err)

	snap, err := p.FetchLatest(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "EUR", gotBase)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Empty(t, snap.Rates)
}

func TestFetchLatest_CachesPerBase(t *testing.T) {
	var hits int32
	srv := newServer(t, http.StatusOK, `{"base":"USD","date":"2024-03-10","rates":{"EUR":0.9}}`, &hits)

	p, err := marketrates.NewProvider(marketrates.Config{BaseURL: srv.URL, CacheTTL: time.Minute}, nil)
	require.NoError(t, err)

	first, err := p.FetchLatest(context.Background(), "USD")
	require.NoError(t, err)
	first.Rates["EUR"] = decimal.NewFromInt(42)

	second, err := p.FetchLatest(context.Background(), "USD")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, decimal.RequireFromString("0.9").Equal(second.Rates["EUR"]), "cached snapshot must not be shared with callers")
}

func TestFetchLatest_WithoutCacheHitsServerEachTime(t *testing.T) {
	var hits int32
	srv := newServer(t, http.StatusOK, `{"base":"USD","date":"2024-03-10","rates":{"EUR":0.9}}`, &hits)

	p, err := marketrates.NewProvider(marketrates.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.FetchLatest(context.Background(), "USD")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchLatest_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `boom`},
		{name: "not json", status: http.StatusOK, body: `<html>`, malformed: true},
		{name: "bad date", status: http.StatusOK, body: `{"base":"USD","date":"10/03/2024","rates":{"EUR":1}}`, malformed: true},
		{name: "missing rates", status: http.StatusOK, body: `{"base":"USD","date":"2024-03-10"}`, malformed: true},
		{name: "bad base", status: http.StatusOK, body: `{"base":"U$","date":"2024-03-10","rates":{}}`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body, nil)
			p, err := marketrates.NewProvider(marketrates.Config{BaseURL: srv.URL}, nil)
			require.NoError(t, err)

			snap, err := p.FetchLatest(context.Background(), "USD")
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.Equal(t, tt.malformed, errors.Is(err, marketrates.ErrMalformedPayload))
		})
	}
}

func TestFetchLatest_RejectsInvalidBaseWithoutRequest(t *testing.T) {
	var hits int32
	srv := newServer(t, http.StatusOK, `{}`, &hits)
	p, err := marketrates.NewProvider(marketrates.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = p.FetchLatest(context.Background(), "u$")
	require.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestFetchLatest_CancelledContextWhileThrottled(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"base":"USD","date":"2024-03-10","rates":{"EUR":0.9}}`, nil)
	p, err := marketrates.NewProvider(marketrates.Config{BaseURL: srv.URL, RequestsPerMinute: 1}, nil)
	require.NoError(t, err)

	_, err = p.FetchLatest(context.Background(), "USD")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.FetchLatest(ctx, "USD")
	require.Error(t, err)
}

func TestNewProvider_RequiresURL(t *testing.T) {
	_, err := marketrates.NewProvider(marketrates.Config{}, nil)
	require.Error(t, err)
}
