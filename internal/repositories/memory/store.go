// Package memory provides in-process implementations of the repository ports.
//
// Every write goes through a copy-on-write transaction: the committed state is cloned,
// the clone is mutated, and on success it replaces the committed state in one pointer
// swap. Readers therefore see either the state before a transaction or the state after
// it, never a mix. Transactions are serialized, so concurrent regenerations resolve as
// last-transaction-wins.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/SscSPs/mma_rates/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_rates/internal/core/ports/repositories"
)

type state struct {
	currencies map[string]domain.Currency
	enabled    map[string]map[string]domain.EnabledCurrency // userID -> currencyID -> entry
	settings   map[string]domain.UserSettings
	edges      map[string]domain.ExchangeRate
}

func newState() *state {
	return &state{
		currencies: make(map[string]domain.Currency),
		enabled:    make(map[string]map[string]domain.EnabledCurrency),
		settings:   make(map[string]domain.UserSettings),
		edges:      make(map[string]domain.ExchangeRate),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.currencies {
		c.currencies[k] = v
	}
	for user, entries := range s.enabled {
		m := make(map[string]domain.EnabledCurrency, len(entries))
		for k, v := range entries {
			m[k] = v
		}
		c.enabled[user] = m
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.edges {
		c.edges[k] = v
	}
	return c
}

// Store is the shared in-memory database backing all memory repositories.
type Store struct {
	mu      sync.RWMutex // guards current
	txMu    sync.Mutex   // serializes writers
	current *state
	now     func() time.Time

	faultMu sync.Mutex
	fault   *replaceFault
}

type replaceFault struct {
	afterInserts int
	err          error
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{current: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNextReplace makes the next ReplaceAutoEdges call fail with err after inserting
// afterInserts edges. It is used to exercise rollback behaviour.
func (s *Store) FailNextReplace(afterInserts int, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.fault = &replaceFault{afterInserts: afterInserts, err: err}
}

func (s *Store) takeFault() *replaceFault {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	f := s.fault
	s.fault = nil
	return f
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.current)
}

// write runs fn against a private copy of the committed state and publishes the copy
// only if fn succeeds.
func (s *Store) write(fn func(st *state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	next := s.current.clone()
	s.mu.RUnlock()

	if err := fn(next); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

// WithinTx implements portsrepo.UnitOfWork. All writers share one lock, which also
// serializes transactions of the same user.
func (s *Store) WithinTx(ctx context.Context, _ string, fn func(ctx context.Context, repos portsrepo.TxRepositories) error) error {
	return s.write(func(st *state) error {
		repos := portsrepo.TxRepositories{
			ExchangeRates:     &txExchangeRateRepository{store: s, st: st},
			EnabledCurrencies: &txEnabledCurrencyReader{st: st},
		}
		if err := fn(ctx, repos); err != nil {
			return err
		}
		return ctx.Err()
	})
}

// Repositories returns a RepositoryProvider backed by this store.
func (s *Store) Repositories() portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		CurrencyRepo:        NewCurrencyRepository(s),
		EnabledCurrencyRepo: NewEnabledCurrencyRepository(s),
		ExchangeRateRepo:    NewExchangeRateRepository(s),
		UserSettingsRepo:    NewUserSettingsRepository(s),
		UnitOfWork:          s,
	}
}

var _ portsrepo.UnitOfWork = (*Store)(nil)
