package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

type GoalService struct {
	store     storage.GoalStore
	publisher events.Publisher
	now       clock
}

func NewGoalService(store storage.GoalStore, publisher events.Publisher) *GoalService {
	return &GoalService{
		store:     store,
		publisher: publisherOrNop(publisher),
		now:       time.Now,
	}
}

func (s *GoalService) Create(ctx context.Context, g core.Goal) (core.Goal, error) {
	goal, err := core.NewGoal(g, s.now())
	if err != nil {
		return core.Goal{}, err
	}
	saved, err := s.store.InsertGoal(ctx, goal)
	if err != nil {
		return core.Goal{}, fmt.Errorf("save goal: %w", err)
	}
	if saved.IsAchieved {
		publish(ctx, s.publisher, events.New(events.GoalAchieved, saved.OwnerID, saved.ID, s.now()))
	}
	return saved, nil
}

func (s *GoalService) Get(ctx context.Context, ownerID, id string) (core.Goal, error) {
	g, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return core.Goal{}, err
	}
	if err := checkOwner(core.KindGoal, id, g.OwnerID, ownerID); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

func (s *GoalService) List(ctx context.Context, ownerID string) ([]core.Goal, error) {
	return s.store.ListGoals(ctx, ownerID)
}

// Contribute adds amount to the goal, clamped at the target. The achievement
// event is published once, by the contribution that reaches the target.
func (s *GoalService) Contribute(ctx context.Context, ownerID, id string, amount core.Money) (core.Goal, core.Contribution, error) {
	var c core.Contribution
	g, err := s.store.MutateGoal(ctx, id, func(g *core.Goal) error {
		if err := checkOwner(core.KindGoal, id, g.OwnerID, ownerID); err != nil {
			return err
		}
		var err error
		c, err = g.Contribute(amount, s.now())
		return err
	})
	if err != nil {
		return core.Goal{}, core.Contribution{}, err
	}

	if c.JustAchieved {
		e := events.New(events.GoalAchieved, g.OwnerID, g.ID, s.now())
		e.AmountCents = g.Current.Cents
		publish(ctx, s.publisher, e)
	}
	slog.InfoContext(ctx, "Goal contribution applied", applog.NewFields().
		WithRecord(core.KindGoal, g.ID).
		WithOperation(applog.OpContrib).
		With(applog.FieldAppliedCents, c.Applied.Cents).
		With(applog.FieldExcessCents, c.Excess.Cents).
		With(applog.FieldAchieved, g.IsAchieved).
		ToSlice()...)
	return g, c, nil
}
