package memory

import (
	"context"
	"sort"
	"time"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
	"github.com/google/uuid"
)

// ExchangeRateRepository is the in-memory rate fact store.
type ExchangeRateRepository struct {
	store *Store
}

// NewExchangeRateRepository creates a repository over store.
func NewExchangeRateRepository(store *Store) *ExchangeRateRepository {
	return &ExchangeRateRepository{store: store}
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*ExchangeRateRepository)(nil)

func (r *ExchangeRateRepository) FindLatestEdge(ctx context.Context, userID, fromCurrencyID, toCurrencyID string, asOf time.Time) (*domain.ExchangeRate, error) {
	var (
		found *domain.ExchangeRate
		err   error
	)
	r.store.read(func(st *state) { found, err = st.findLatestEdge(userID, fromCurrencyID, toCurrencyID, asOf) })
	return found, err
}

func (r *ExchangeRateRepository) FindEdgeByID(ctx context.Context, userID, edgeID string) (*domain.ExchangeRate, error) {
	var (
		found *domain.ExchangeRate
		err   error
	)
	r.store.read(func(st *state) { found, err = st.findEdgeByID(userID, edgeID) })
	return found, err
}

func (r *ExchangeRateRepository) ListEdges(ctx context.Context, userID string) ([]domain.ExchangeRate, error) {
	var edges []domain.ExchangeRate
	r.store.read(func(st *state) { edges = st.listEdges(userID) })
	return edges, nil
}

func (r *ExchangeRateRepository) CountEdgesReferencingCurrency(ctx context.Context, userID, currencyID string) (int, error) {
	var n int
	r.store.read(func(st *state) { n = st.countEdgesReferencing(userID, currencyID) })
	return n, nil
}

func (r *ExchangeRateRepository) UpsertEdge(ctx context.Context, edge domain.ExchangeRate) (*domain.ExchangeRate, error) {
	var saved *domain.ExchangeRate
	err := r.store.write(func(st *state) error {
		var err error
		saved, err = st.upsertEdge(edge, r.store.now())
		return err
	})
	return saved, err
}

func (r *ExchangeRateRepository) DeleteEdge(ctx context.Context, userID, edgeID string) error {
	return r.store.write(func(st *state) error { return st.deleteEdge(userID, edgeID) })
}

// ReplaceAutoEdges outside a UnitOfWork still runs as one transaction.
func (r *ExchangeRateRepository) ReplaceAutoEdges(ctx context.Context, userID string, edges []domain.ExchangeRate) error {
	return r.store.write(func(st *state) error {
		return st.replaceAutoEdges(ctx, userID, edges, r.store.takeFault(), r.store.now())
	})
}

// txExchangeRateRepository operates on the private state of a running transaction.
type txExchangeRateRepository struct {
	store *Store
	st    *state
}

func (r *txExchangeRateRepository) FindLatestEdge(ctx context.Context, userID, fromCurrencyID, toCurrencyID string, asOf time.Time) (*domain.ExchangeRate, error) {
	return r.st.findLatestEdge(userID, fromCurrencyID, toCurrencyID, asOf)
}

func (r *txExchangeRateRepository) FindEdgeByID(ctx context.Context, userID, edgeID string) (*domain.ExchangeRate, error) {
	return r.st.findEdgeByID(userID, edgeID)
}

func (r *txExchangeRateRepository) ListEdges(ctx context.Context, userID string) ([]domain.ExchangeRate, error) {
	return r.st.listEdges(userID), nil
}

func (r *txExchangeRateRepository) CountEdgesReferencingCurrency(ctx context.Context, userID, currencyID string) (int, error) {
	return r.st.countEdgesReferencing(userID, currencyID), nil
}

func (r *txExchangeRateRepository) UpsertEdge(ctx context.Context, edge domain.ExchangeRate) (*domain.ExchangeRate, error) {
	return r.st.upsertEdge(edge, r.store.now())
}

func (r *txExchangeRateRepository) DeleteEdge(ctx context.Context, userID, edgeID string) error {
	return r.st.deleteEdge(userID, edgeID)
}

func (r *txExchangeRateRepository) ReplaceAutoEdges(ctx context.Context, userID string, edges []domain.ExchangeRate) error {
	return r.st.replaceAutoEdges(ctx, userID, edges, r.store.takeFault(), r.store.now())
}

func (st *state) findLatestEdge(userID, from, to string, asOf time.Time) (*domain.ExchangeRate, error) {
	asOf = domain.NormalizeDate(asOf)
	var best *domain.ExchangeRate
	for _, e := range st.edges {
		if e.UserID != userID || e.FromCurrencyID != from || e.ToCurrencyID != to || e.EffectiveDate.After(asOf) {
			continue
		}
		if best == nil || e.Outranks(*best) {
			candidate := e
			best = &candidate
		}
	}
	if best == nil {
		return nil, apperrors.NewNotFoundError("exchange rate not found")
	}
	return best, nil
}

func (st *state) findEdgeByID(userID, edgeID string) (*domain.ExchangeRate, error) {
	e, ok := st.edges[edgeID]
	if !ok || e.UserID != userID {
		return nil, apperrors.NewNotFoundError("exchange rate with ID " + edgeID + " not found")
	}
	return &e, nil
}

func (st *state) listEdges(userID string) []domain.ExchangeRate {
	edges := make([]domain.ExchangeRate, 0)
	for _, e := range st.edges {
		if e.UserID == userID {
			edges = append(edges, e)
		}
	}
	sortEdges(edges)
	return edges
}

func (st *state) countEdgesReferencing(userID, currencyID string) int {
	n := 0
	for _, e := range st.edges {
		if e.UserID == userID && (e.FromCurrencyID == currencyID || e.ToCurrencyID == currencyID) {
			n++
		}
	}
	return n
}

func (st *state) upsertEdge(edge domain.ExchangeRate, now time.Time) (*domain.ExchangeRate, error) {
	if !edge.Provenance.IsAuthoritative() {
		return nil, apperrors.NewValidationError("derived rates can only be written by regeneration")
	}
	if edge.FromCurrencyID == edge.ToCurrencyID {
		return nil, apperrors.NewValidationError("from and to currencies cannot be the same")
	}
	if !edge.Rate.IsPositive() {
		return nil, apperrors.NewValidationError("exchange rate must be positive")
	}
	edge.EffectiveDate = domain.NormalizeDate(edge.EffectiveDate)

	var existing *domain.ExchangeRate
	if edge.ExchangeRateID != "" {
		if e, ok := st.edges[edge.ExchangeRateID]; ok {
			if e.UserID != edge.UserID {
				return nil, apperrors.NewNotFoundError("exchange rate with ID " + edge.ExchangeRateID + " not found")
			}
			if e.Provenance == domain.ProvenanceAuto {
				return nil, apperrors.NewValidationError("derived rates cannot be edited")
			}
			existing = &e
		}
	}

	var autoAtKey []string
	for id, other := range st.edges {
		if id == edge.ExchangeRateID || other.UserID != edge.UserID ||
			other.FromCurrencyID != edge.FromCurrencyID || other.ToCurrencyID != edge.ToCurrencyID ||
			!other.EffectiveDate.Equal(edge.EffectiveDate) {
			continue
		}
		switch {
		case other.Provenance == domain.ProvenanceAuto:
			autoAtKey = append(autoAtKey, id)
		case existing == nil && other.Provenance == domain.ProvenanceAPI && edge.Provenance == domain.ProvenanceAPI:
			refreshed := other
			existing = &refreshed
			edge.ExchangeRateID = other.ExchangeRateID
		default:
			return nil, apperrors.NewDuplicateError("an exchange rate already exists for this currency pair and date")
		}
	}
	for _, id := range autoAtKey {
		delete(st.edges, id)
	}

	if existing != nil {
		edge.CreatedAt = existing.CreatedAt
		edge.CreatedBy = existing.CreatedBy
	} else {
		if edge.ExchangeRateID == "" {
			edge.ExchangeRateID = uuid.NewString()
		}
		if edge.CreatedAt.IsZero() {
			edge.CreatedAt = now
		}
	}
	if edge.LastUpdatedAt.IsZero() || existing != nil {
		edge.LastUpdatedAt = now
	}
	if edge.LastUpdatedBy == "" {
		edge.LastUpdatedBy = edge.CreatedBy
	}
	st.edges[edge.ExchangeRateID] = edge
	return &edge, nil
}

func (st *state) deleteEdge(userID, edgeID string) error {
	e, ok := st.edges[edgeID]
	if !ok || e.UserID != userID {
		return apperrors.NewNotFoundError("exchange rate with ID " + edgeID + " not found")
	}
	if e.Provenance == domain.ProvenanceAuto {
		return apperrors.NewValidationError("derived rates cannot be deleted individually")
	}
	delete(st.edges, edgeID)
	return nil
}

func (st *state) replaceAutoEdges(ctx context.Context, userID string, edges []domain.ExchangeRate, fault *replaceFault, now time.Time) error {
	for id, e := range st.edges {
		if e.UserID == userID && e.Provenance == domain.ProvenanceAuto {
			delete(st.edges, id)
		}
	}
	for i, e := range edges {
		if fault != nil && i >= fault.afterInserts {
			return apperrors.NewAppError(500, "failed to insert derived exchange rates", fault.err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Provenance != domain.ProvenanceAuto || e.UserID != userID {
			return apperrors.NewValidationError("replacement edges must be AUTO edges of the same user")
		}
		e.EffectiveDate = domain.NormalizeDate(e.EffectiveDate)
		for _, other := range st.edges {
			if other.UserID == userID && other.FromCurrencyID == e.FromCurrencyID &&
				other.ToCurrencyID == e.ToCurrencyID && other.EffectiveDate.Equal(e.EffectiveDate) {
				return apperrors.NewDuplicateError("derived rate collides with an existing rate")
			}
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.LastUpdatedAt.IsZero() {
			e.LastUpdatedAt = now
		}
		st.edges[e.ExchangeRateID] = e
	}
	if fault != nil {
		return apperrors.NewAppError(500, "failed to insert derived exchange rates", fault.err)
	}
	return nil
}

func sortEdges(edges []domain.ExchangeRate) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.FromCurrencyID != b.FromCurrencyID {
			return a.FromCurrencyID < b.FromCurrencyID
		}
		if a.ToCurrencyID != b.ToCurrencyID {
			return a.ToCurrencyID < b.ToCurrencyID
		}
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.After(b.EffectiveDate)
		}
		return a.ExchangeRateID < b.ExchangeRateID
	})
}
