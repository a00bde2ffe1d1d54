package repositories

import (
	"context"
)

// TxRepositories are repositories bound to a single transaction.
type TxRepositories struct {
	ExchangeRates     ExchangeRateRepositoryFacade
	EnabledCurrencies EnabledCurrencyReader
}

// UnitOfWork runs fn inside one transaction. If fn returns an error, nothing fn wrote
// through repos becomes visible; otherwise everything is committed together.
//
// Transactions for the same userID run one after another, so of two concurrent
// regenerations the one that commits last wins.
type UnitOfWork interface {
	WithinTx(ctx context.Context, userID string, fn func(ctx context.Context, repos TxRepositories) error) error
}
