package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/aggregate"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const (
	DefaultDashboardMonths = 6
	DefaultTopCategories   = 5
	maxDashboardMonths     = 120
)

// Dashboard is the read model behind the overview page.
type Dashboard struct {
	Monthly        []aggregate.MonthBucket
	Savings        []aggregate.SavingsPoint
	RunningSavings []core.Money
	Weekly         aggregate.WeekSeries
	// Categories breaks down the expenses of the current month.
	Categories   []aggregate.CategoryShare
	MonthlySpend core.Money
	GeneratedAt  time.Time
}

// DashboardService computes the aggregation series over the ledger. Results
// are cached per owner and dropped whenever the owner's ledger changes.
// Concurrent requests for the same view share one computation.
type DashboardService struct {
	store storage.TransactionStore
	cache cache.Cache[Dashboard]
	group singleflight.Group
	now   clock

	mu          sync.Mutex
	generations map[string]uint64
}

// NewDashboardService builds the service. A nil cache disables caching.
func NewDashboardService(store storage.TransactionStore, c cache.Cache[Dashboard]) *DashboardService {
	return &DashboardService{
		store:       store,
		cache:       c,
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

// Invalidate drops every cached dashboard of ownerID. A computation that
// started before the call cannot repopulate the cache with its stale result.
func (s *DashboardService) Invalidate(ownerID string) {
	s.mu.Lock()
	s.generations[ownerID]++
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.DeletePrefix(ownerID + "|")
	}
}

func (s *DashboardService) generation(ownerID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[ownerID]
}

// Overview returns the monthly income/expense series over the trailing
// months (current month included), the derived savings, the last 7 days of
// expenses and the topN categories of the current month.
func (s *DashboardService) Overview(ctx context.Context, ownerID string, months, topN int) (Dashboard, error) {
	if months <= 0 {
		months = DefaultDashboardMonths
	}
	if months > maxDashboardMonths {
		return Dashboard{}, &core.ValidationError{Field: "months", Err: fmt.Errorf("at most %d months", maxDashboardMonths)}
	}
	if topN <= 0 {
		topN = DefaultTopCategories
	}

	gen := s.generation(ownerID)
	key := ownerID + "|" + strconv.FormatUint(gen, 10) + "|" + strconv.Itoa(months) + "|" + strconv.Itoa(topN)
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			return d, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		d, err := s.compute(ctx, ownerID, months, topN)
		if err != nil {
			return Dashboard{}, err
		}
		if s.cache != nil && s.generation(ownerID) == gen {
			s.cache.Set(key, d)
		}
		return d, nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	return v.(Dashboard), nil
}

func (s *DashboardService) compute(ctx context.Context, ownerID string, months, topN int) (Dashboard, error) {
	now := s.now()
	from := core.StartOfMonth(now).AddDate(0, -(months - 1), 0)
	weekFrom := core.StartOfDay(now).AddDate(0, 0, -6)
	if weekFrom.Before(from) {
		from = weekFrom
	}

	txs, err := s.store.QueryTransactions(ctx, ownerID, storage.TransactionFilter{From: from, To: now})
	if err != nil {
		return Dashboard{}, fmt.Errorf("load transactions: %w", err)
	}

	monthStart, monthEnd := core.CurrentMonth(now)
	var thisMonth []core.Transaction
	var spend core.Money
	for _, tx := range txs {
		if tx.OccurredAt.Before(monthStart) || tx.OccurredAt.After(monthEnd) {
			continue
		}
		thisMonth = append(thisMonth, tx)
		if tx.IsExpense() {
			spend = spend.Add(tx.Amount)
		}
	}

	monthly := aggregate.MonthlySeries(txs, months, now)
	return Dashboard{
		Monthly:        monthly,
		Savings:        aggregate.SavingsSeries(monthly),
		RunningSavings: aggregate.RunningTotals(monthly),
		Weekly:         aggregate.WeeklyExpenseSeries(txs, now),
		Categories:     aggregate.CategoryBreakdown(thisMonth, topN),
		MonthlySpend:   spend,
		GeneratedAt:    now,
	}, nil
}
