package cycle

import (
	"github.com/shopspring/decimal"

	"github.com/kiumaa/kixikila-sub001/internal/models"
)

// CanDraw reports whether a lottery draw may run for g right now: the group
// is active, uses lottery payout, has active members who have all paid, and
// at least one of them has not yet won in the current rotation.
// Order-based groups never draw.
func CanDraw(g *models.Group) bool {
	if g.Status != models.GroupStatusActive || g.PayoutMethod != models.PayoutLottery {
		return false
	}
	active := g.ActiveMembers()
	if len(active) == 0 {
		return false
	}
	for _, m := range active {
		if !m.Paid {
			return false
		}
	}
	return len(EligibleForDraw(g)) > 0
}

// EligibleForDraw returns the active paid members who have not won in the
// current rotation, in join order.
func EligibleForDraw(g *models.Group) []*models.Member {
	var eligible []*models.Member
	for i := range g.Members {
		m := &g.Members[i]
		if m.Status == models.MemberStatusActive && m.Paid && !m.IsWinner {
			eligible = append(eligible, m)
		}
	}
	return eligible
}

// PrizeAmount is the contribution times the number of members paid this cycle.
func PrizeAmount(g *models.Group) decimal.Decimal {
	return g.ContributionAmount.Mul(decimal.NewFromInt(int64(len(g.PaidMembers()))))
}

// AdvanceCycle opens the next cycle: clears every Paid flag, empties the
// pool and increments CurrentCycle. Membership and winner flags are kept.
func AdvanceCycle(g *models.Group) {
	for i := range g.Members {
		g.Members[i].Paid = false
	}
	g.CurrentCycle++
	g.TotalPool = decimal.Zero
}

// rotationComplete reports whether every active member has won since the
// rotation started.
func rotationComplete(g *models.Group) bool {
	active := g.ActiveMembers()
	if len(active) == 0 {
		return false
	}
	for _, m := range active {
		if !m.IsWinner {
			return false
		}
	}
	return true
}

// startRotation clears all winner flags and bumps the rotation counter.
func startRotation(g *models.Group) {
	for i := range g.Members {
		g.Members[i].IsWinner = false
	}
	g.Rotation++
}
