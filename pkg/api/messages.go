package api

import "github.com/shopspring/decimal"

// AuthService

type RegisterRequest struct {
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// GroupService

type CreateGroupRequest struct {
	Name                  string          `json:"name"`
	Description           string          `json:"description,omitempty"`
	ContributionAmount    decimal.Decimal `json:"contribution_amount"`
	ContributionFrequency string          `json:"contribution_frequency,omitempty"`
	MaxMembers            int             `json:"max_members"`
	PayoutMethod          string          `json:"payout_method,omitempty"`
	IsPrivate             bool            `json:"is_private,omitempty"`
	RequiresApproval      bool            `json:"requires_approval,omitempty"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct {
	// MemberOnly restricts the result to groups the caller belongs to.
	MemberOnly bool `json:"member_only,omitempty"`
}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type JoinGroupRequest struct {
	GroupID string `json:"group_id"`
}

type JoinGroupResponse struct {
	Member *Member `json:"member"`
}

type ApproveMemberRequest struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
}

type ApproveMemberResponse struct {
	Member *Member `json:"member"`
}

type LeaveGroupRequest struct {
	GroupID string `json:"group_id"`
}

type LeaveGroupResponse struct{}

type SetGroupStatusRequest struct {
	GroupID string `json:"group_id"`
	Status  string `json:"status"`
}

type SetGroupStatusResponse struct {
	Group *Group `json:"group"`
}

type RecordContributionRequest struct {
	GroupID string          `json:"group_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type RecordContributionResponse struct {
	CycleNumber int             `json:"cycle_number"`
	Amount      decimal.Decimal `json:"amount"`
	TxID        string          `json:"tx_id"`
	TotalPool   decimal.Decimal `json:"total_pool"`
}

type CanDrawRequest struct {
	GroupID string `json:"group_id"`
}

type CanDrawResponse struct {
	CanDraw bool `json:"can_draw"`
}

type DrawWinnerRequest struct {
	GroupID string `json:"group_id"`
}

type DrawWinnerResponse struct {
	Cycle *Cycle `json:"cycle"`
}

type ListCyclesRequest struct {
	GroupID string `json:"group_id"`
}

type ListCyclesResponse struct {
	Cycles []*Cycle `json:"cycles"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupBalancesResponse struct {
	Balances         []MemberBalance   `json:"balances"`
	TotalContributed decimal.Decimal   `json:"total_contributed"`
	TotalPaidOut     decimal.Decimal   `json:"total_paid_out"`
	ExpectedPool     decimal.Decimal   `json:"expected_pool"`
	PoolMatches      bool              `json:"pool_matches"`
	Schedule         []ScheduledPayout `json:"schedule,omitempty"`
}

// WalletService

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type DepositResponse struct {
	TxID    string          `json:"tx_id"`
	Balance decimal.Decimal `json:"balance"`
}

type GetBalanceRequest struct{}

type GetBalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}
