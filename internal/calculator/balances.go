// Package calculator derives per-member money figures for a savings group
// from its current state and its cycle history.
package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kiumaa/kixikila-sub001/internal/models"
)

// MemberBalance is one member's money position in a group.
type MemberBalance struct {
	UserID string

	// Contributed is everything the member has paid into the group.
	Contributed decimal.Decimal
	// Received is the sum of prizes the member has won.
	Received decimal.Decimal
	// Net is Received - Contributed. Positive means the member is ahead.
	Net decimal.Decimal

	CyclesWon int
	// Consistent reports whether the stored CurrentBalance agrees with Net.
	Consistent bool
}

// Summary aggregates the balances of a group.
type Summary struct {
	Members []MemberBalance

	TotalContributed decimal.Decimal
	TotalPaidOut     decimal.Decimal

	// ExpectedPool is the contribution times the members paid this cycle.
	ExpectedPool decimal.Decimal
	// PoolMatches reports whether the stored pool equals ExpectedPool.
	PoolMatches bool
}

// Balances computes the balance summary of g given its cycle history.
//
// Algorithm:
// - Contributed comes from each member's running total
// - Received sums PrizeAmount over cycles the member won
// - Net = Received - Contributed
// - Money in the group = TotalContributed - TotalPaidOut, which must equal the pool
func Balances(g *models.Group, cycles []*models.Cycle) (*Summary, error) {
	if g == nil {
		return nil, fmt.Errorf("group is required")
	}

	byUser := make(map[string]*MemberBalance, len(g.Members))
	order := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		byUser[m.UserID] = &MemberBalance{
			UserID:      m.UserID,
			Contributed: m.TotalContributed,
			Received:    decimal.Zero,
		}
		order = append(order, m.UserID)
	}

	summary := &Summary{
		TotalContributed: decimal.Zero,
		TotalPaidOut:     decimal.Zero,
	}

	for _, c := range cycles {
		b, ok := byUser[c.WinnerUserID]
		if !ok {
			return nil, fmt.Errorf("cycle %d winner %s is not a member", c.CycleNumber, c.WinnerUserID)
		}
		b.Received = b.Received.Add(c.PrizeAmount)
		b.CyclesWon++
		summary.TotalPaidOut = summary.TotalPaidOut.Add(c.PrizeAmount)
	}

	for i, userID := range order {
		b := byUser[userID]
		b.Net = b.Received.Sub(b.Contributed)
		b.Consistent = b.Net.Equal(g.Members[i].CurrentBalance)
		summary.TotalContributed = summary.TotalContributed.Add(b.Contributed)
		summary.Members = append(summary.Members, *b)
	}

	summary.ExpectedPool = g.ContributionAmount.Mul(decimal.NewFromInt(int64(len(g.PaidMembers()))))
	held := summary.TotalContributed.Sub(summary.TotalPaidOut)
	summary.PoolMatches = g.TotalPool.Equal(summary.ExpectedPool) && held.Equal(g.TotalPool)

	// Largest winners first, ties by join order.
	sort.SliceStable(summary.Members, func(i, j int) bool {
		return summary.Members[i].Net.GreaterThan(summary.Members[j].Net)
	})

	return summary, nil
}
