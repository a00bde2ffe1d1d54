package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_rates/internal/core/ports/services"
	"github.com/SscSPs/mma_rates/internal/utils"
	"github.com/shopspring/decimal"
)

const conversionLookupFailedMessage = "rate lookup failed"

// conversionService converts amounts using the latest stored edge for the exact pair.
// It never searches the graph itself; derivation has already filled every reachable pair.
type conversionService struct {
	BaseService
	rateRepo     portsrepo.ExchangeRateReader
	currencyRepo portsrepo.CurrencyReader
	settingsRepo portsrepo.UserSettingsRepositoryFacade
	now          func() time.Time
}

type ConversionServiceOption func(*conversionService)

// WithConversionClock overrides the clock used when no as-of date is given.
func WithConversionClock(now func() time.Time) ConversionServiceOption {
	return func(s *conversionService) {
		s.now = now
	}
}

func NewConversionService(
	rateRepo portsrepo.ExchangeRateReader,
	currencyRepo portsrepo.CurrencyReader,
	settingsRepo portsrepo.UserSettingsRepositoryFacade,
	options ...ConversionServiceOption,
) portssvc.ConversionSvcFacade {
	svc := &conversionService{
		rateRepo:     rateRepo,
		currencyRepo: currencyRepo,
		settingsRepo: settingsRepo,
		now:          time.Now,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.ConversionSvcFacade = (*conversionService)(nil)

// Convert never fails. When no edge exists the amount is passed through unconverted and
// Success is false.
func (s *conversionService) Convert(ctx context.Context, userID string, amount decimal.Decimal, fromCurrencyID, toCurrencyID string, asOf time.Time) domain.ConversionResult {
	res := domain.ConversionResult{
		Amount:          amount,
		FromCurrencyID:  fromCurrencyID,
		ToCurrencyID:    toCurrencyID,
		ConvertedAmount: amount,
	}

	if fromCurrencyID == toCurrencyID {
		res.Rate = decimal.NewFromInt(1)
		res.Success = true
		return res
	}

	if asOf.IsZero() {
		asOf = s.now()
	}
	edge, err := s.rateRepo.FindLatestEdge(ctx, userID, fromCurrencyID, toCurrencyID, asOf)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			res.Error = domain.ConversionGapMessage
			return res
		}
		s.LogError(ctx, err, "Exchange rate lookup failed during conversion",
			slog.String("from_currency_id", fromCurrencyID),
			slog.String("to_currency_id", toCurrencyID))
		res.Error = conversionLookupFailedMessage
		return res
	}

	rateDate := edge.EffectiveDate
	res.ConvertedAmount = amount.Mul(edge.Rate)
	res.Rate = edge.Rate
	res.RateDate = &rateDate
	res.Provenance = edge.Provenance
	res.Success = true
	return res
}

// ConvertBatch converts every item independently and sums the results. Unconverted items,
// including those with an unresolved currency, contribute their original amount to Total.
func (s *conversionService) ConvertBatch(ctx context.Context, userID string, items []domain.ConversionItem, toCurrencyID string, asOf time.Time) domain.BatchConversionResult {
	if asOf.IsZero() {
		asOf = s.now()
	}
	out := domain.BatchConversionResult{
		ToCurrencyID: toCurrencyID,
		Items:        make([]domain.ConversionResult, 0, len(items)),
		Total:        decimal.Zero,
	}
	for _, item := range items {
		var res domain.ConversionResult
		if item.CurrencyID == "" {
			res = domain.ConversionResult{
				Amount:          item.Amount,
				ToCurrencyID:    toCurrencyID,
				ConvertedAmount: item.Amount,
				Error:           domain.ConversionUnknownCurrencyMessage,
			}
		} else {
			res = s.Convert(ctx, userID, item.Amount, item.CurrencyID, toCurrencyID, asOf)
		}
		out.Items = append(out.Items, res)
		out.Total = out.Total.Add(res.ConvertedAmount)
		if res.Success {
			out.ConvertedCount++
		} else {
			out.FailedCount++
		}
	}
	out.HasGaps = out.FailedCount > 0
	return out
}

// ConvertToBase converts into the user's base currency.
func (s *conversionService) ConvertToBase(ctx context.Context, userID string, amount decimal.Decimal, fromCurrencyID string, asOf time.Time) (domain.ConversionResult, error) {
	settings, err := s.settingsRepo.FindUserSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ConversionResult{}, apperrors.NewNotFoundError("base currency not set")
		}
		return domain.ConversionResult{}, err
	}
	if settings.BaseCurrencyID == "" {
		return domain.ConversionResult{}, apperrors.NewNotFoundError("base currency not set")
	}
	return s.Convert(ctx, userID, amount, fromCurrencyID, settings.BaseCurrencyID, asOf), nil
}

// FormatAmount falls back to the plain decimal string when the currency is unknown.
func (s *conversionService) FormatAmount(ctx context.Context, amount decimal.Decimal, currencyID string) string {
	currency, err := s.currencyRepo.FindCurrencyByID(ctx, currencyID)
	if err != nil {
		return amount.String()
	}
	return utils.FormatWithCurrencyPrecision(amount, *currency)
}
