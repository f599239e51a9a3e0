// Package api holds the request and response messages of the kixikila.v1
// Connect services. Messages travel as JSON; money is a decimal string.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

type Group struct {
	ID                    string          `json:"id"`
	OwnerID               string          `json:"owner_id"`
	Name                  string          `json:"name"`
	Description           string          `json:"description,omitempty"`
	ContributionAmount    decimal.Decimal `json:"contribution_amount"`
	ContributionFrequency string          `json:"contribution_frequency"`
	MaxMembers            int             `json:"max_members"`
	PayoutMethod          string          `json:"payout_method"`
	Status                string          `json:"status"`
	IsPrivate             bool            `json:"is_private"`
	RequiresApproval      bool            `json:"requires_approval"`
	CurrentMembers        int             `json:"current_members"`
	CurrentCycle          int             `json:"current_cycle"`
	TotalPool             decimal.Decimal `json:"total_pool"`
	Rotation              int             `json:"rotation"`
	CanDraw               bool            `json:"can_draw"`
	Members               []Member        `json:"members"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

type Member struct {
	UserID           string          `json:"user_id"`
	DisplayName      string          `json:"display_name,omitempty"`
	Role             string          `json:"role"`
	Status           string          `json:"status"`
	Paid             bool            `json:"paid"`
	Position         *int            `json:"position,omitempty"`
	IsWinner         bool            `json:"is_winner"`
	TotalContributed decimal.Decimal `json:"total_contributed"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	JoinedAt         time.Time       `json:"joined_at"`
}

type Cycle struct {
	CycleNumber  int             `json:"cycle_number"`
	WinnerUserID string          `json:"winner_user_id"`
	PrizeAmount  decimal.Decimal `json:"prize_amount"`
	DrawDate     time.Time       `json:"draw_date"`
	Participants []string        `json:"participants"`
	PayoutTxID   string          `json:"payout_tx_id,omitempty"`
}

type MemberBalance struct {
	UserID      string          `json:"user_id"`
	Contributed decimal.Decimal `json:"contributed"`
	Received    decimal.Decimal `json:"received"`
	Net         decimal.Decimal `json:"net"`
	CyclesWon   int             `json:"cycles_won"`
	Consistent  bool            `json:"consistent"`
}

type ScheduledPayout struct {
	CycleNumber int       `json:"cycle_number"`
	UserID      string    `json:"user_id"`
	DueDate     time.Time `json:"due_date"`
}
