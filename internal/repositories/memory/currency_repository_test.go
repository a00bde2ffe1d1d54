package memory_test

import (
	"context"
	"testing"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	"github.com/SscSPs/mma_rates/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencyRepository_SameCodeAcrossScopes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := memory.NewCurrencyRepository(store)
	require.NoError(t, memory.SeedGlobalCurrencies(ctx, repo))

	custom := domain.Currency{CurrencyID: "custom-usd", Code: "usd", Name: "Precise Dollar", DecimalPlaces: 4, Scope: domain.OwnedBy(userID)}
	require.NoError(t, repo.SaveCurrency(ctx, custom))

	dup := custom
	dup.CurrencyID = "custom-usd-2"
	assert.ErrorIs(t, repo.SaveCurrency(ctx, dup), apperrors.ErrDuplicate)

	globalDup := domain.Currency{CurrencyID: "another-usd", Code: "USD", Scope: domain.GlobalScope()}
	assert.ErrorIs(t, repo.SaveCurrency(ctx, globalDup), apperrors.ErrDuplicate)

	mine, err := repo.FindCurrenciesByCode(ctx, "USD", userID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "custom-usd", mine[0].CurrencyID, "owned currency sorts first")

	theirs, err := repo.FindCurrenciesByCode(ctx, "usd", "user-2")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.True(t, theirs[0].Scope.IsGlobal())

	visible, err := repo.ListVisibleCurrencies(ctx, "user-2")
	require.NoError(t, err)
	assert.Len(t, visible, len(memory.DefaultGlobalCurrencies))
}

func TestEnabledCurrencyRepository_ListsActiveInOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	currencies := memory.NewCurrencyRepository(store)
	require.NoError(t, memory.SeedGlobalCurrencies(ctx, currencies))
	enabled := memory.NewEnabledCurrencyRepository(store)

	usd, eur, jpy := memory.GlobalCurrencyID("USD"), memory.GlobalCurrencyID("EUR"), memory.GlobalCurrencyID("JPY")
	require.NoError(t, enabled.SaveEnabledCurrency(ctx, domain.EnabledCurrency{UserID: userID, CurrencyID: eur, Active: true, Order: 2}))
	require.NoError(t, enabled.SaveEnabledCurrency(ctx, domain.EnabledCurrency{UserID: userID, CurrencyID: usd, Active: true, Order: 1}))
	require.NoError(t, enabled.SaveEnabledCurrency(ctx, domain.EnabledCurrency{UserID: userID, CurrencyID: jpy, Active: false, Order: 3}))
	assert.ErrorIs(t, enabled.SaveEnabledCurrency(ctx, domain.EnabledCurrency{UserID: userID, CurrencyID: "missing", Active: true}), apperrors.ErrNotFound)

	active, err := enabled.ListEnabledCurrencies(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "USD", active[0].Code)
	assert.Equal(t, "EUR", active[1].Code)

	entries, err := enabled.ListEnabledCurrencyEntries(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestUserSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserSettingsRepository(memory.NewStore())

	_, err := repo.FindUserSettings(ctx, userID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.SaveUserSettings(ctx, domain.UserSettings{UserID: userID, BaseCurrencyID: "usd"}))
	got, err := repo.FindUserSettings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "usd", got.BaseCurrencyID)
}
