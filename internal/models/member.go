package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MemberRole is a member's permission level inside a group.
type MemberRole string

const (
	MemberRoleCreator MemberRole = "creator"
	MemberRoleAdmin   MemberRole = "admin"
	MemberRoleMember  MemberRole = "member"
)

// CanManage reports whether the role may approve members and change group status.
func (r MemberRole) CanManage() bool {
	return r == MemberRoleCreator || r == MemberRoleAdmin
}

// MemberStatus is the membership lifecycle: pending -> active -> left.
type MemberStatus string

const (
	MemberStatusPending MemberStatus = "pending"
	MemberStatusActive  MemberStatus = "active"
	MemberStatusLeft    MemberStatus = "left"
)

// Member is one user's membership in a group. Identified by (GroupID, UserID).
type Member struct {
	GroupID string
	UserID  string

	Role   MemberRole
	Status MemberStatus

	// Paid is set once the member has contributed in the current cycle.
	Paid bool

	// Position is the 1-based join order, used by order-based payout.
	Position *int

	// IsWinner marks a member who already won during the current rotation.
	IsWinner bool

	// TotalContributed is the running sum of all contributions.
	TotalContributed decimal.Decimal

	// CurrentBalance is the member's net position in the group:
	// prizes received minus contributions made.
	CurrentBalance decimal.Decimal

	JoinedAt time.Time
}

func (m Member) clone() Member {
	if m.Position != nil {
		p := *m.Position
		m.Position = &p
	}
	return m
}
