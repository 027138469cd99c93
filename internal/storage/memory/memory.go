// Package memory is an in-process RecordStore used for development and tests.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Store keeps every record in maps guarded by a single mutex, which also
// serializes all Mutate calls.
type Store struct {
	mu           sync.Mutex
	transactions map[string]core.Transaction
	debts        map[string]core.Debt
	budgets      map[string]core.Budget
	goals        map[string]core.Goal
	categories   map[string]core.Category
	// seq preserves insertion order for stable listings.
	seq   map[string]int64
	next  int64
	clock func() time.Time
}

var _ storage.RecordStore = (*Store)(nil)

func New(cats ...core.Category) *Store {
	s := &Store{
		transactions: make(map[string]core.Transaction),
		debts:        make(map[string]core.Debt),
		budgets:      make(map[string]core.Budget),
		goals:        make(map[string]core.Goal),
		categories:   make(map[string]core.Category),
		seq:          make(map[string]int64),
		clock:        time.Now,
	}
	for _, c := range cats {
		s.categories[categoryKey(c)] = c
	}
	return s
}

// NewFromFiles seeds the shared category taxonomy from base/seed_categories.txt.
// Each line reads "<kind> <id> [locale=label ...]"; labels use underscores
// for spaces.
func NewFromFiles(base string) *Store {
	cats := parseCategories(readLines(filepath.Join(base, "seed_categories.txt")))
	if len(cats) == 0 {
		cats = []core.Category{
			{ID: "salary", Kind: core.Income, Labels: map[string]string{"en": "Salary"}},
			{ID: "food", Kind: core.Expense, Labels: map[string]string{"en": "Food"}},
			{ID: "transport", Kind: core.Expense, Labels: map[string]string{"en": "Transport"}},
			{ID: "housing", Kind: core.Expense, Labels: map[string]string{"en": "Housing"}},
		}
	}
	return New(cats...)
}

func (s *Store) Close() error { return nil }

func (s *Store) track(id string) {
	if _, ok := s.seq[id]; !ok {
		s.next++
		s.seq[id] = s.next
	}
}

func (s *Store) byInsertion(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return s.seq[ids[i]] < s.seq[ids[j]] })
}

// Transactions

func (s *Store) QueryTransactions(_ context.Context, ownerID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(ownerID, f), nil
}

func (s *Store) queryLocked(ownerID string, f storage.TransactionFilter) []core.Transaction {
	var ids []string
	for id, tx := range s.transactions {
		if tx.OwnerID == ownerID && f.Match(tx) {
			ids = append(ids, id)
		}
	}
	s.byInsertion(ids)
	out := make([]core.Transaction, len(ids))
	for i, id := range ids {
		out[i] = s.transactions[id]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out
}

func (s *Store) SumTransactions(_ context.Context, ownerID string, f storage.TransactionFilter) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, tx := range s.transactions {
		if tx.OwnerID == ownerID && f.Match(tx) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = core.NewID()
	}
	now := s.clock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	s.transactions[tx.ID] = tx
	s.track(tx.ID)
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, &core.NotFoundError{Kind: core.KindTransaction, ID: id}
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.transactions[tx.ID]
	if !ok {
		return core.Transaction{}, &core.NotFoundError{Kind: core.KindTransaction, ID: tx.ID}
	}
	tx.CreatedAt = prev.CreatedAt
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return &core.NotFoundError{Kind: core.KindTransaction, ID: id}
	}
	delete(s.transactions, id)
	delete(s.seq, id)
	return nil
}

// Debts

func (s *Store) InsertDebt(_ context.Context, d core.Debt) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = core.NewID()
	}
	d.Version = 1
	s.debts[d.ID] = d
	s.track(d.ID)
	return d, nil
}

func (s *Store) GetDebt(_ context.Context, id string) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debts[id]
	if !ok {
		return core.Debt{}, &core.NotFoundError{Kind: core.KindDebt, ID: id}
	}
	return d, nil
}

func (s *Store) ListDebts(_ context.Context, ownerID string) ([]core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, d := range s.debts {
		if d.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	s.byInsertion(ids)
	out := make([]core.Debt, len(ids))
	for i, id := range ids {
		out[i] = s.debts[id]
	}
	return out, nil
}

func (s *Store) MutateDebt(_ context.Context, id string, fn func(*core.Debt) error) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debts[id]
	if !ok {
		return core.Debt{}, &core.NotFoundError{Kind: core.KindDebt, ID: id}
	}
	next := d
	if err := fn(&next); err != nil {
		return core.Debt{}, err
	}
	next.ID, next.OwnerID = d.ID, d.OwnerID
	next.Version = d.Version + 1
	s.debts[id] = next
	return next, nil
}

// Budgets

func (s *Store) InsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = core.NewID()
	}
	b.Version = 1
	s.budgets[b.ID] = b
	s.track(b.ID)
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, &core.NotFoundError{Kind: core.KindBudget, ID: id}
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, ownerID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgetsWhere(func(b core.Budget) bool { return b.OwnerID == ownerID }), nil
}

func (s *Store) FindBudgets(_ context.Context, ownerID, categoryID string, at time.Time) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgetsWhere(func(b core.Budget) bool {
		return b.OwnerID == ownerID && b.CategoryID == categoryID && b.Contains(at)
	}), nil
}

func (s *Store) ListActiveBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgetsWhere(func(b core.Budget) bool { return b.IsActive }), nil
}

func (s *Store) budgetsWhere(keep func(core.Budget) bool) []core.Budget {
	var ids []string
	for id, b := range s.budgets {
		if keep(b) {
			ids = append(ids, id)
		}
	}
	s.byInsertion(ids)
	out := make([]core.Budget, len(ids))
	for i, id := range ids {
		out[i] = s.budgets[id]
	}
	return out
}

func (s *Store) MutateBudget(_ context.Context, id string, fn func(*core.Budget) error) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateBudgetLocked(id, fn)
}

func (s *Store) mutateBudgetLocked(id string, fn func(*core.Budget) error) (core.Budget, error) {
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, &core.NotFoundError{Kind: core.KindBudget, ID: id}
	}
	next := b
	if err := fn(&next); err != nil {
		return core.Budget{}, err
	}
	next.ID, next.OwnerID = b.ID, b.OwnerID
	next.Version = b.Version + 1
	s.budgets[id] = next
	return next, nil
}

func (s *Store) ReconcileBudget(_ context.Context, id string, now time.Time) (core.Budget, core.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var r core.Reconciliation
	b, err := s.mutateBudgetLocked(id, func(b *core.Budget) error {
		var spent core.Money
		for _, tx := range s.transactions {
			if b.Matches(tx) {
				spent = spent.Add(tx.Amount)
			}
		}
		r = b.ApplyReconciliation(spent, now)
		return nil
	})
	if err != nil {
		return core.Budget{}, core.Reconciliation{}, err
	}
	return b, r, nil
}

// Goals

func (s *Store) InsertGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = core.NewID()
	}
	g.Version = 1
	s.goals[g.ID] = g
	s.track(g.ID)
	return g, nil
}

func (s *Store) GetGoal(_ context.Context, id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, &core.NotFoundError{Kind: core.KindGoal, ID: id}
	}
	return g, nil
}

func (s *Store) ListGoals(_ context.Context, ownerID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, g := range s.goals {
		if g.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	s.byInsertion(ids)
	out := make([]core.Goal, len(ids))
	for i, id := range ids {
		out[i] = s.goals[id]
	}
	return out, nil
}

func (s *Store) MutateGoal(_ context.Context, id string, fn func(*core.Goal) error) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, &core.NotFoundError{Kind: core.KindGoal, ID: id}
	}
	next := g
	if err := fn(&next); err != nil {
		return core.Goal{}, err
	}
	next.ID, next.OwnerID = g.ID, g.OwnerID
	next.Version = g.Version + 1
	s.goals[id] = next
	return next, nil
}

// Categories

func (s *Store) UpsertCategory(_ context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[categoryKey(c)] = c
	return nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.OwnerID == "" || c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func categoryKey(c core.Category) string {
	return c.OwnerID + "/" + c.ID
}

func parseCategories(lines []string) []core.Category {
	var out []core.Category
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		c := core.Category{Kind: core.TransactionKind(fields[0]), ID: fields[1], Labels: map[string]string{}}
		for _, f := range fields[2:] {
			locale, label, ok := strings.Cut(f, "=")
			if !ok {
				continue
			}
			c.Labels[locale] = strings.ReplaceAll(label, "_", " ")
		}
		if c.Validate() == nil {
			out = append(out, c)
		}
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
