package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Goal is a savings target. Current never exceeds Target and IsAchieved,
// once set, stays set.
type Goal struct {
	ID         string
	OwnerID    string
	Name       string
	Target     Money
	Current    Money
	Currency   string
	TargetDate time.Time
	IsAchieved bool
	AchievedAt time.Time
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Contribution describes what a single Contribute call did.
type Contribution struct {
	Applied Money
	// Excess is the part of the requested amount dropped by clamping.
	Excess       Money
	JustAchieved bool
}

func NewGoal(g Goal, now time.Time) (Goal, error) {
	if strings.TrimSpace(g.OwnerID) == "" {
		return Goal{}, invalid("owner_id", ErrMissingField)
	}
	if strings.TrimSpace(g.Name) == "" {
		return Goal{}, invalid("name", ErrMissingField)
	}
	if err := g.Target.Validate(); err != nil {
		return Goal{}, invalid("target_amount", err)
	}
	if g.Current.IsNegative() || g.Current.Cents > g.Target.Cents {
		return Goal{}, invalid("current_amount", ErrInvalidAmount)
	}
	if g.ID == "" {
		g.ID = NewID()
	}
	g.IsAchieved = false
	g.AchievedAt = time.Time{}
	if g.Current.Cents >= g.Target.Cents {
		g.IsAchieved = true
		g.AchievedAt = now
	}
	g.Version = 0
	g.CreatedAt = now
	g.UpdatedAt = now
	return g, nil
}

// Contribute adds amount to the goal, clamping at the target. Reaching the
// target the first time records the achievement; later contributions never
// record it again.
func (g *Goal) Contribute(amount Money, now time.Time) (Contribution, error) {
	if err := amount.Validate(); err != nil {
		return Contribution{}, invalid("amount", err)
	}
	room := g.Target.Sub(g.Current)
	if room.IsNegative() {
		room = Money{}
	}
	applied := amount.Min(room)

	c := Contribution{Applied: applied, Excess: amount.Sub(applied)}
	g.Current = g.Current.Add(applied)
	g.UpdatedAt = now
	if g.Current.Cents >= g.Target.Cents && !g.IsAchieved {
		g.IsAchieved = true
		g.AchievedAt = now
		c.JustAchieved = true
	}
	return c, nil
}

// Progress is Current/Target as a percentage with two decimals.
func (g Goal) Progress() decimal.Decimal {
	return Percent(g.Current, g.Target)
}

// Remaining is what is still missing to reach the target.
func (g Goal) Remaining() Money {
	return g.Target.Sub(g.Current)
}
