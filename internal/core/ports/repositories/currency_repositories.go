package repositories

import (
	"context"

	"github.com/SscSPs/mma_rates/internal/core/domain"
)

// CurrencyReader defines read operations for currency data
type CurrencyReader interface {
	// FindCurrencyByID retrieves a currency by its ID regardless of scope.
	FindCurrencyByID(ctx context.Context, currencyID string) (*domain.Currency, error)

	// FindCurrenciesByCode returns every currency with the code that the user can see:
	// at most one global and one owned record.
	FindCurrenciesByCode(ctx context.Context, code string, userID string) ([]domain.Currency, error)

	// ListVisibleCurrencies retrieves global currencies plus those owned by the user.
	ListVisibleCurrencies(ctx context.Context, userID string) ([]domain.Currency, error)
}

// CurrencyWriter defines write operations for currency data
type CurrencyWriter interface {
	// SaveCurrency inserts a currency. Returns apperrors.ErrDuplicate if the code already
	// exists within the same scope.
	SaveCurrency(ctx context.Context, currency domain.Currency) error

	// DeleteCurrency removes a currency by ID.
	DeleteCurrency(ctx context.Context, currencyID string) error
}

// CurrencyRepositoryFacade combines all currency-related repository interfaces
// This is a facade for clients that need access to all operations
type CurrencyRepositoryFacade interface {
	CurrencyReader
	CurrencyWriter
}

// EnabledCurrencyReader defines read operations for a user's currency universe.
type EnabledCurrencyReader interface {
	// ListEnabledCurrencies returns the active currencies of the user ordered by sort order.
	ListEnabledCurrencies(ctx context.Context, userID string) ([]domain.Currency, error)

	// ListEnabledCurrencyEntries returns every entry of the user, active or not.
	ListEnabledCurrencyEntries(ctx context.Context, userID string) ([]domain.EnabledCurrency, error)
}

// EnabledCurrencyWriter defines write operations for a user's currency universe.
type EnabledCurrencyWriter interface {
	// SaveEnabledCurrency inserts or updates the entry for (UserID, CurrencyID).
	SaveEnabledCurrency(ctx context.Context, entry domain.EnabledCurrency) error
}

// EnabledCurrencyRepositoryFacade combines enabled-currency repository interfaces
type EnabledCurrencyRepositoryFacade interface {
	EnabledCurrencyReader
	EnabledCurrencyWriter
}

// UserSettingsRepositoryFacade persists per-user settings such as the base currency.
type UserSettingsRepositoryFacade interface {
	// FindUserSettings returns apperrors.ErrNotFound when the user has no settings yet.
	FindUserSettings(ctx context.Context, userID string) (*domain.UserSettings, error)
	SaveUserSettings(ctx context.Context, settings domain.UserSettings) error
}
