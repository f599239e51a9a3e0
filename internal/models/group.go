package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupStatus is the lifecycle state of a group.
type GroupStatus string

const (
	GroupStatusDraft     GroupStatus = "draft"
	GroupStatusActive    GroupStatus = "active"
	GroupStatusPaused    GroupStatus = "paused"
	GroupStatusCompleted GroupStatus = "completed"
	GroupStatusCancelled GroupStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s GroupStatus) Terminal() bool {
	return s == GroupStatusCompleted || s == GroupStatusCancelled
}

// Frequency is how often members contribute.
type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a recognized frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyWeekly || f == FrequencyMonthly
}

// PayoutMethod decides who receives the pool each cycle.
type PayoutMethod string

const (
	// PayoutLottery draws the recipient at random among eligible paid members.
	PayoutLottery PayoutMethod = "lottery"
	// PayoutOrder pays members by their Position.
	PayoutOrder PayoutMethod = "order"
)

// Valid reports whether m is a recognized payout method.
func (m PayoutMethod) Valid() bool {
	return m == PayoutLottery || m == PayoutOrder
}

// Group represents a rotating savings group.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// OwnerID is the user who created the group. The owner is also the
	// group's only creator-role member.
	OwnerID string

	Name        string
	Description string

	// ContributionAmount is what every member pays each cycle. Always positive.
	ContributionAmount decimal.Decimal

	ContributionFrequency Frequency

	// MaxMembers caps CurrentMembers. At least 2.
	MaxMembers int

	PayoutMethod PayoutMethod
	Status       GroupStatus

	IsPrivate        bool
	RequiresApproval bool

	// CurrentMembers counts members with status active.
	CurrentMembers int

	// CurrentCycle starts at 1 and only ever increases.
	CurrentCycle int

	// TotalPool is ContributionAmount times the number of paid members
	// in the current cycle.
	TotalPool decimal.Decimal

	// Rotation counts full passes over the membership. It starts at 1 and
	// increments once every active member has won a draw.
	Rotation int

	// Members in join order.
	Members []Member

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member returns the membership record for userID, or nil.
func (g *Group) Member(userID string) *Member {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// ActiveMembers returns pointers to all members with status active.
func (g *Group) ActiveMembers() []*Member {
	var active []*Member
	for i := range g.Members {
		if g.Members[i].Status == MemberStatusActive {
			active = append(active, &g.Members[i])
		}
	}
	return active
}

// PaidMembers returns the members that have paid in the current cycle.
func (g *Group) PaidMembers() []*Member {
	var paid []*Member
	for i := range g.Members {
		if g.Members[i].Paid {
			paid = append(paid, &g.Members[i])
		}
	}
	return paid
}

// Clone returns a deep copy of g.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Members = make([]Member, len(g.Members))
	for i, m := range g.Members {
		cp.Members[i] = m.clone()
	}
	return &cp
}
