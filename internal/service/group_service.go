package service

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/kiumaa/kixikila-sub001/internal/auth"
	"github.com/kiumaa/kixikila-sub001/internal/calculator"
	"github.com/kiumaa/kixikila-sub001/internal/cycle"
	"github.com/kiumaa/kixikila-sub001/internal/models"
	"github.com/kiumaa/kixikila-sub001/internal/middleware"
	"github.com/kiumaa/kixikila-sub001/internal/storage"
	"github.com/kiumaa/kixikila-sub001/pkg/api"
)

// GroupService implements the Connect GroupService on top of cycle.Service.
type GroupService struct {
	cycles *cycle.Service
	users  storage.UserStore
	now    func() time.Time
}

// NewGroupService creates a new GroupService. users resolves member display names.
func NewGroupService(cycles *cycle.Service, users storage.UserStore) *GroupService {
	return &GroupService{cycles: cycles, users: users, now: time.Now}
}

// CreateGroup creates a new group owned by the caller.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"owner_id", userID,
		"max_members", req.Msg.MaxMembers,
	)

	group, err := s.cycles.CreateGroup(ctx, userID, cycle.GroupParams{
		Name:               req.Msg.Name,
		Description:        req.Msg.Description,
		ContributionAmount: req.Msg.ContributionAmount,
		Frequency:          models.Frequency(req.Msg.ContributionFrequency),
		MaxMembers:         req.Msg.MaxMembers,
		PayoutMethod:       models.PayoutMethod(req.Msg.PayoutMethod),
		IsPrivate:          req.Msg.IsPrivate,
		RequiresApproval:   req.Msg.RequiresApproval,
	})
	if err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.CreateGroupResponse{Group: s.groupView(ctx, group)}), nil
}

// GetGroup retrieves a group by ID. Private groups are only visible to their members.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.visibleGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("GetGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, err
	}

	return connect.NewResponse(&api.GetGroupResponse{Group: s.groupView(ctx, group)}), nil
}

// ListGroups returns the public groups plus every group the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListGroups request received", "user_id", userID, "member_only", req.Msg.MemberOnly)

	groups, err := s.cycles.ListGroups(ctx)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, connectError(err)
	}

	resp := &api.ListGroupsResponse{Groups: make([]*api.Group, 0, len(groups))}
	for _, g := range groups {
		member := g.Member(userID) != nil
		if req.Msg.MemberOnly && !member {
			continue
		}
		if g.IsPrivate && !member {
			continue
		}
		resp.Groups = append(resp.Groups, toAPIGroup(g, nil))
	}

	slog.Info("ListGroups successful", "count", len(resp.Groups))
	return connect.NewResponse(resp), nil
}

// JoinGroup adds the caller to a group.
func (s *GroupService) JoinGroup(ctx context.Context, req *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.JoinGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("JoinGroup request received", "group_id", req.Msg.GroupID, "user_id", userID)

	member, err := s.cycles.JoinGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		slog.Error("JoinGroup failed", "group_id", req.Msg.GroupID, "user_id", userID, "error", err)
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.JoinGroupResponse{Member: toAPIMember(member)}), nil
}

// ApproveMember activates a pending member. The caller must manage the group.
func (s *GroupService) ApproveMember(ctx context.Context, req *connect.Request[api.ApproveMemberRequest]) (*connect.Response[api.ApproveMemberResponse], error) {
	approverID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ApproveMember request received",
		"group_id", req.Msg.GroupID,
		"approver_id", approverID,
		"user_id", req.Msg.UserID,
	)

	member, err := s.cycles.ApproveMember(ctx, req.Msg.GroupID, approverID, req.Msg.UserID)
	if err != nil {
		slog.Error("ApproveMember failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.ApproveMemberResponse{Member: toAPIMember(member)}), nil
}

// LeaveGroup removes the caller from a group.
func (s *GroupService) LeaveGroup(ctx context.Context, req *connect.Request[api.LeaveGroupRequest]) (*connect.Response[api.LeaveGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("LeaveGroup request received", "group_id", req.Msg.GroupID, "user_id", userID)

	if err := s.cycles.LeaveGroup(ctx, req.Msg.GroupID, userID); err != nil {
		slog.Error("LeaveGroup failed", "group_id", req.Msg.GroupID, "user_id", userID, "error", err)
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.LeaveGroupResponse{}), nil
}

// SetGroupStatus pauses, resumes or cancels a group.
func (s *GroupService) SetGroupStatus(ctx context.Context, req *connect.Request[api.SetGroupStatusRequest]) (*connect.Response[api.SetGroupStatusResponse], error) {
	actorID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SetGroupStatus request received", "group_id", req.Msg.GroupID, "status", req.Msg.Status)

	group, err := s.cycles.SetStatus(ctx, req.Msg.GroupID, actorID, models.GroupStatus(req.Msg.Status))
	if err != nil {
		slog.Error("SetGroupStatus failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.SetGroupStatusResponse{Group: s.groupView(ctx, group)}), nil
}

// RecordContribution charges the caller's contribution for the current cycle.
func (s *GroupService) RecordContribution(ctx context.Context, req *connect.Request[api.RecordContributionRequest]) (*connect.Response[api.RecordContributionResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordContribution request received",
		"group_id", req.Msg.GroupID,
		"user_id", userID,
		"amount", req.Msg.Amount.String(),
	)

	c, err := s.cycles.RecordContribution(ctx, req.Msg.GroupID, userID, req.Msg.Amount)
	if err != nil {
		slog.Error("RecordContribution failed", "group_id", req.Msg.GroupID, "user_id", userID, "error", err)
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.RecordContributionResponse{
		CycleNumber: c.CycleNumber,
		Amount:      c.Amount,
		TxID:        c.TxID,
		TotalPool:   c.TotalPool,
	}), nil
}

// CanDraw reports whether the current cycle of a group is ready for a draw.
func (s *GroupService) CanDraw(ctx context.Context, req *connect.Request[api.CanDrawRequest]) (*connect.Response[api.CanDrawResponse], error) {
	slog.Info("CanDraw request received", "group_id", req.Msg.GroupID)

	group, err := s.visibleGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&api.CanDrawResponse{CanDraw: cycle.CanDraw(group)}), nil
}

// DrawWinner draws the winner of the current cycle. The caller must manage the group.
func (s *GroupService) DrawWinner(ctx context.Context, req *connect.Request[api.DrawWinnerRequest]) (*connect.Response[api.DrawWinnerResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DrawWinner request received", "group_id", req.Msg.GroupID, "user_id", userID)

	group, err := s.cycles.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}
	if m := group.Member(userID); m == nil || m.Status != models.MemberStatusActive || !m.Role.CanManage() {
		return nil, connectError(cycle.ErrNotAuthorized)
	}

	drawn, err := s.cycles.DrawWinner(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("DrawWinner failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.DrawWinnerResponse{Cycle: toAPICycle(drawn)}), nil
}

// ListCycles returns the draw history of a group.
func (s *GroupService) ListCycles(ctx context.Context, req *connect.Request[api.ListCyclesRequest]) (*connect.Response[api.ListCyclesResponse], error) {
	slog.Info("ListCycles request received", "group_id", req.Msg.GroupID)

	if _, err := s.visibleGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	cycles, err := s.cycles.ListCycles(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListCycles failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connectError(err)
	}

	resp := &api.ListCyclesResponse{Cycles: make([]*api.Cycle, 0, len(cycles))}
	for _, c := range cycles {
		resp.Cycles = append(resp.Cycles, toAPICycle(c))
	}
	return connect.NewResponse(resp), nil
}

// GetGroupBalances computes per-member net balances and, for order groups,
// the upcoming payout schedule.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	slog.Info("GetGroupBalances request received", "group_id", req.Msg.GroupID)

	group, err := s.visibleGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	cycles, err := s.cycles.ListCycles(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}

	summary, err := calculator.Balances(group, cycles)
	if err != nil {
		slog.Error("Balance calculation failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !summary.PoolMatches {
		slog.Warn("Pool does not match contributions", "group_id", group.ID, "pool", group.TotalPool.String())
	}

	schedule := calculator.PayoutSchedule(group, s.now())
	return connect.NewResponse(toAPIBalances(summary, schedule)), nil
}

// visibleGroup loads a group the caller may see. Private groups look missing
// to non-members.
func (s *GroupService) visibleGroup(ctx context.Context, groupID string) (*models.Group, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	group, err := s.cycles.GetGroup(ctx, groupID)
	if err != nil {
		return nil, connectError(err)
	}
	if group.IsPrivate && group.Member(userID) == nil {
		return nil, connectError(cycle.ErrGroupNotFound)
	}
	return group, nil
}

// groupView converts a group, filling in member display names when the
// user store can provide them.
func (s *GroupService) groupView(ctx context.Context, g *models.Group) *api.Group {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		slog.Warn("Failed to resolve member names", "group_id", g.ID, "error", err)
	}
	return toAPIGroup(g, users)
}

func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

