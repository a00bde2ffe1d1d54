package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
)

// ExchangeRateReader defines read operations for rate edges
type ExchangeRateReader interface {
	// FindLatestEdge returns the edge for the ordered pair with the greatest effective date
	// not after asOf. Ties are broken by provenance priority (USER > API > AUTO), then by the
	// most recent write. Returns apperrors.ErrNotFound when there is none.
	FindLatestEdge(ctx context.Context, userID, fromCurrencyID, toCurrencyID string, asOf time.Time) (*domain.ExchangeRate, error)

	// FindEdgeByID retrieves one of the user's edges.
	FindEdgeByID(ctx context.Context, userID, edgeID string) (*domain.ExchangeRate, error)

	// ListEdges returns all edges of the user regardless of provenance.
	ListEdges(ctx context.Context, userID string) ([]domain.ExchangeRate, error)

	// CountEdgesReferencingCurrency counts the user's edges touching currencyID.
	CountEdgesReferencingCurrency(ctx context.Context, userID, currencyID string) (int, error)
}

// ExchangeRateWriter defines write operations for rate edges
type ExchangeRateWriter interface {
	// UpsertEdge writes a USER or API edge and returns the stored row.
	// An edge with the same ID is updated. When a different USER/API edge already holds
	// (from, to, date), apperrors.ErrDuplicate is returned, unless both are API edges, in
	// which case the existing row is refreshed. AUTO edges at that key are discarded.
	UpsertEdge(ctx context.Context, edge domain.ExchangeRate) (*domain.ExchangeRate, error)

	// DeleteEdge removes a USER or API edge. AUTO edges cannot be deleted individually.
	DeleteEdge(ctx context.Context, userID, edgeID string) error

	// ReplaceAutoEdges deletes every AUTO edge of the user and inserts edges in their place.
	// Callers run it inside a UnitOfWork so the swap is atomic.
	ReplaceAutoEdges(ctx context.Context, userID string, edges []domain.ExchangeRate) error
}

// ExchangeRateRepositoryFacade combines all exchange rate-related repository interfaces
// This is a facade for clients that need access to all operations
type ExchangeRateRepositoryFacade interface {
	ExchangeRateReader
	ExchangeRateWriter
}
