package marketrates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/core/ports"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrMalformedPayload is returned when a provider response cannot be used at all.
var ErrMalformedPayload = errors.New("malformed market rate payload")

const snapshotDateLayout = "2006-01-02"

// Config holds the connection settings of the HTTP market-rate source.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	CacheTTL          time.Duration // zero disables caching
	RequestsPerMinute int           // zero or less disables throttling
}

// latestResponse is the wire shape: {"base": "USD", "date": "2024-03-10", "rates": {"EUR": 0.91}}.
// Rates stay raw so one bad entry does not spoil the whole payload.
type latestResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]json.RawMessage `json:"rates"`
}

// Provider fetches the latest market rates over HTTP.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

var _ ports.MarketRateProvider = (*Provider)(nil)

// NewProvider builds a Provider from cfg. A nil logger falls back to slog.Default().
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("market rate provider URL cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid market rate provider URL: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	p := &Provider{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
	}
	if cfg.CacheTTL > 0 {
		p.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return p, nil
}

// FetchLatest returns the latest snapshot for baseCode, from cache when fresh.
func (p *Provider) FetchLatest(ctx context.Context, baseCode string) (*domain.MarketRateSnapshot, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCode))
	if !domain.IsValidCurrencyCode(base) {
		return nil, fmt.Errorf("invalid base currency code %q", baseCode)
	}

	if p.cache != nil {
		if cached, found := p.cache.Get(base); found {
			p.logger.Debug("Market rates served from cache", slog.String("base", base))
			return copySnapshot(cached.(*domain.MarketRateSnapshot)), nil
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for market rate request slot: %w", err)
	}

	snapshot, err := p.fetch(ctx, base)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Set(base, snapshot, p.cacheTTL)
	}
	return copySnapshot(snapshot), nil
}

func (p *Provider) fetch(ctx context.Context, base string) (*domain.MarketRateSnapshot, error) {
	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid market rate provider URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("base", base)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	p.logger.Info("Fetching market rates", slog.String("base", base))
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market rates: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("market rate API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return p.toSnapshot(base, payload)
}

func (p *Provider) toSnapshot(requested string, payload latestResponse) (*domain.MarketRateSnapshot, error) {
	base := strings.ToUpper(strings.TrimSpace(payload.Base))
	if base == "" {
		base = requested
	}
	if !domain.IsValidCurrencyCode(base) {
		return nil, fmt.Errorf("%w: invalid base %q", ErrMalformedPayload, payload.Base)
	}
	date, err := time.Parse(snapshotDateLayout, payload.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrMalformedPayload, payload.Date)
	}
	if payload.Rates == nil {
		return nil, fmt.Errorf("%w: missing rates", ErrMalformedPayload)
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	dropped := 0
	for rawCode, raw := range payload.Rates {
		code := strings.ToUpper(strings.TrimSpace(rawCode))
		var value decimal.Decimal
		if !domain.IsValidCurrencyCode(code) || value.UnmarshalJSON(raw) != nil || !value.IsPositive() {
			dropped++
			continue
		}
		rates[code] = value
	}
	if dropped > 0 {
		p.logger.Warn("Dropped malformed market rate entries", slog.String("base", base), slog.Int("dropped", dropped))
	}

	return &domain.MarketRateSnapshot{
		Base:  base,
		Date:  domain.NormalizeDate(date),
		Rates: rates,
	}, nil
}

func copySnapshot(s *domain.MarketRateSnapshot) *domain.MarketRateSnapshot {
	out := *s
	out.Rates = maps.Clone(s.Rates)
	return &out
}
