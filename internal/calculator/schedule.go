package calculator

import (
	"sort"
	"time"

	"github.com/kiumaa/kixikila-sub001/internal/models"
)

// ScheduledPayout is one projected future payout of an order-based group.
type ScheduledPayout struct {
	CycleNumber int
	UserID      string
	DueDate     time.Time
}

// PayoutSchedule projects who receives the pool in each upcoming cycle of an
// order-based group, starting with the current cycle at from. Members are
// paid in Position order; those who already won in this rotation are
// skipped. Lottery groups have no schedule and get nil.
func PayoutSchedule(g *models.Group, from time.Time) []ScheduledPayout {
	if g.PayoutMethod != models.PayoutOrder {
		return nil
	}

	var queue []*models.Member
	for _, m := range g.ActiveMembers() {
		if !m.IsWinner && m.Position != nil {
			queue = append(queue, m)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return *queue[i].Position < *queue[j].Position
	})

	schedule := make([]ScheduledPayout, 0, len(queue))
	due := from
	for i, m := range queue {
		schedule = append(schedule, ScheduledPayout{
			CycleNumber: g.CurrentCycle + i,
			UserID:      m.UserID,
			DueDate:     due,
		})
		due = nextDue(due, g.ContributionFrequency)
	}
	return schedule
}

func nextDue(t time.Time, f models.Frequency) time.Time {
	if f == models.FrequencyWeekly {
		return t.AddDate(0, 0, 7)
	}
	return t.AddDate(0, 1, 0)
}
