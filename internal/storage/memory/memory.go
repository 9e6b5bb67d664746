// Package memory implements the persistence ports in process memory.
// It backs tests and the "memory" data backend; nothing survives a
// restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/storage"
)

type Store struct {
	mu         sync.Mutex
	closed     bool
	expenses   map[string]core.Expense
	categories map[string]core.Category
	rates      map[string]core.ExchangeRate
	settings   core.Settings
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store: no categories, no rates, default settings.
// Tests that need the no-rate or no-category edge cases start here.
func New() *Store {
	return &Store{
		expenses:   map[string]core.Expense{},
		categories: map[string]core.Category{},
		rates:      map[string]core.ExchangeRate{},
		settings:   core.DefaultSettings(),
	}
}

// NewSeeded returns a store initialized the way a fresh SQLite file
// would be: five default categories and the default exchange rate.
func NewSeeded() *Store {
	s := New()
	for _, c := range core.DefaultCategories() {
		s.categories[c.ID] = c
	}
	r := core.DefaultExchangeRate(time.Now().UTC())
	s.rates[r.ID] = r
	return s
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) guard() error {
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return core.Expense{}, err
	}
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) PutExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ReplaceExpenses(_ context.Context, expenses []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.expenses = map[string]core.Expense{}
	for _, e := range expenses {
		s.expenses[e.ID] = e
	}
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return core.Category{}, err
	}
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) PutCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ReplaceCategories(_ context.Context, categories []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.categories = map[string]core.Category{}
	for _, c := range categories {
		s.categories[c.ID] = c
	}
	return nil
}

func (s *Store) ListRates(_ context.Context) ([]core.ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make([]core.ExchangeRate, 0, len(s.rates))
	for _, r := range s.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) LatestRate(_ context.Context) (core.ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return core.ExchangeRate{}, err
	}
	var (
		latest core.ExchangeRate
		found  bool
	)
	for _, r := range s.rates {
		if !found || r.Date.After(latest.Date) {
			latest = r
			found = true
		}
	}
	if !found {
		return core.ExchangeRate{}, storage.ErrNotFound
	}
	return latest, nil
}

func (s *Store) PutRate(_ context.Context, r core.ExchangeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.rates[r.ID] = r
	return nil
}

func (s *Store) DeleteRate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	delete(s.rates, id)
	return nil
}

func (s *Store) ReplaceRates(_ context.Context, rates []core.ExchangeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.rates = map[string]core.ExchangeRate{}
	for _, r := range rates {
		s.rates[r.ID] = r
	}
	return nil
}

func (s *Store) Settings(_ context.Context) (core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return core.Settings{}, err
	}
	return s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.settings = settings
	return nil
}
