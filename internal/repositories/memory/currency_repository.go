package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
)

// CurrencyRepository stores global and user-owned currencies.
type CurrencyRepository struct {
	store *Store
}

// NewCurrencyRepository creates a repository over store.
func NewCurrencyRepository(store *Store) *CurrencyRepository {
	return &CurrencyRepository{store: store}
}

var _ portsrepo.CurrencyRepositoryFacade = (*CurrencyRepository)(nil)

func (r *CurrencyRepository) FindCurrencyByID(ctx context.Context, currencyID string) (*domain.Currency, error) {
	var (
		found domain.Currency
		ok    bool
	)
	r.store.read(func(st *state) { found, ok = st.currencies[currencyID] })
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &found, nil
}

func (r *CurrencyRepository) FindCurrenciesByCode(ctx context.Context, code string, userID string) ([]domain.Currency, error) {
	code = strings.ToUpper(code)
	matches := make([]domain.Currency, 0, 2)
	r.store.read(func(st *state) {
		for _, c := range st.currencies {
			if c.Code == code && c.Scope.VisibleTo(userID) {
				matches = append(matches, c)
			}
		}
	})
	sortCurrencies(matches)
	return matches, nil
}

func (r *CurrencyRepository) ListVisibleCurrencies(ctx context.Context, userID string) ([]domain.Currency, error) {
	visible := make([]domain.Currency, 0)
	r.store.read(func(st *state) {
		for _, c := range st.currencies {
			if c.Scope.VisibleTo(userID) {
				visible = append(visible, c)
			}
		}
	})
	sortCurrencies(visible)
	return visible, nil
}

func (r *CurrencyRepository) SaveCurrency(ctx context.Context, currency domain.Currency) error {
	currency.Code = strings.ToUpper(currency.Code)
	return r.store.write(func(st *state) error {
		for id, c := range st.currencies {
			if id != currency.CurrencyID && c.Code == currency.Code && c.Scope == currency.Scope {
				return apperrors.NewDuplicateError("currency code '" + currency.Code + "' already exists")
			}
		}
		st.currencies[currency.CurrencyID] = currency
		return nil
	})
}

func (r *CurrencyRepository) DeleteCurrency(ctx context.Context, currencyID string) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.currencies[currencyID]; !ok {
			return apperrors.ErrNotFound
		}
		delete(st.currencies, currencyID)
		for _, entries := range st.enabled {
			delete(entries, currencyID)
		}
		return nil
	})
}

// sortCurrencies orders by code, owned currencies before the global one with the same code.
func sortCurrencies(cs []domain.Currency) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Code != cs[j].Code {
			return cs[i].Code < cs[j].Code
		}
		if cs[i].Scope.IsGlobal() != cs[j].Scope.IsGlobal() {
			return !cs[i].Scope.IsGlobal()
		}
		return cs[i].CurrencyID < cs[j].CurrencyID
	})
}

// EnabledCurrencyRepository stores each user's currency universe.
type EnabledCurrencyRepository struct {
	store *Store
}

// NewEnabledCurrencyRepository creates a repository over store.
func NewEnabledCurrencyRepository(store *Store) *EnabledCurrencyRepository {
	return &EnabledCurrencyRepository{store: store}
}

var _ portsrepo.EnabledCurrencyRepositoryFacade = (*EnabledCurrencyRepository)(nil)

func (r *EnabledCurrencyRepository) ListEnabledCurrencies(ctx context.Context, userID string) ([]domain.Currency, error) {
	var out []domain.Currency
	r.store.read(func(st *state) { out = st.listEnabledCurrencies(userID) })
	return out, nil
}

func (r *EnabledCurrencyRepository) ListEnabledCurrencyEntries(ctx context.Context, userID string) ([]domain.EnabledCurrency, error) {
	var out []domain.EnabledCurrency
	r.store.read(func(st *state) { out = st.listEnabledEntries(userID) })
	return out, nil
}

func (r *EnabledCurrencyRepository) SaveEnabledCurrency(ctx context.Context, entry domain.EnabledCurrency) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.currencies[entry.CurrencyID]; !ok {
			return apperrors.ErrNotFound
		}
		entries, ok := st.enabled[entry.UserID]
		if !ok {
			entries = make(map[string]domain.EnabledCurrency)
			st.enabled[entry.UserID] = entries
		}
		entries[entry.CurrencyID] = entry
		return nil
	})
}

type txEnabledCurrencyReader struct {
	st *state
}

func (r *txEnabledCurrencyReader) ListEnabledCurrencies(ctx context.Context, userID string) ([]domain.Currency, error) {
	return r.st.listEnabledCurrencies(userID), nil
}

func (r *txEnabledCurrencyReader) ListEnabledCurrencyEntries(ctx context.Context, userID string) ([]domain.EnabledCurrency, error) {
	return r.st.listEnabledEntries(userID), nil
}

func (st *state) listEnabledEntries(userID string) []domain.EnabledCurrency {
	out := make([]domain.EnabledCurrency, 0, len(st.enabled[userID]))
	for _, e := range st.enabled[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].CurrencyID < out[j].CurrencyID
	})
	return out
}

func (st *state) listEnabledCurrencies(userID string) []domain.Currency {
	out := make([]domain.Currency, 0, len(st.enabled[userID]))
	for _, e := range st.listEnabledEntries(userID) {
		if !e.Active {
			continue
		}
		if c, ok := st.currencies[e.CurrencyID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// UserSettingsRepository stores per-user settings.
type UserSettingsRepository struct {
	store *Store
}

// NewUserSettingsRepository creates a repository over store.
func NewUserSettingsRepository(store *Store) *UserSettingsRepository {
	return &UserSettingsRepository{store: store}
}

var _ portsrepo.UserSettingsRepositoryFacade = (*UserSettingsRepository)(nil)

func (r *UserSettingsRepository) FindUserSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	var (
		found domain.UserSettings
		ok    bool
	)
	r.store.read(func(st *state) { found, ok = st.settings[userID] })
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &found, nil
}

func (r *UserSettingsRepository) SaveUserSettings(ctx context.Context, settings domain.UserSettings) error {
	return r.store.write(func(st *state) error {
		st.settings[settings.UserID] = settings
		return nil
	})
}
