package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/kiumaa/kixikila-sub001/pkg/api"
)

const GroupServiceName = "kixikila.v1.GroupService"

const (
	GroupServiceCreateGroupProcedure        = "/kixikila.v1.GroupService/CreateGroup"
	GroupServiceGetGroupProcedure           = "/kixikila.v1.GroupService/GetGroup"
	GroupServiceListGroupsProcedure         = "/kixikila.v1.GroupService/ListGroups"
	GroupServiceJoinGroupProcedure          = "/kixikila.v1.GroupService/JoinGroup"
	GroupServiceApproveMemberProcedure      = "/kixikila.v1.GroupService/ApproveMember"
	GroupServiceLeaveGroupProcedure         = "/kixikila.v1.GroupService/LeaveGroup"
	GroupServiceSetGroupStatusProcedure     = "/kixikila.v1.GroupService/SetGroupStatus"
	GroupServiceRecordContributionProcedure = "/kixikila.v1.GroupService/RecordContribution"
	GroupServiceCanDrawProcedure            = "/kixikila.v1.GroupService/CanDraw"
	GroupServiceDrawWinnerProcedure         = "/kixikila.v1.GroupService/DrawWinner"
	GroupServiceListCyclesProcedure         = "/kixikila.v1.GroupService/ListCycles"
	GroupServiceGetGroupBalancesProcedure   = "/kixikila.v1.GroupService/GetGroupBalances"
)

// GroupServiceHandler is implemented by the server side of kixikila.v1.GroupService.
type GroupServiceHandler interface {
	CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error)
	GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error)
	ListGroups(context.Context, *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error)
	JoinGroup(context.Context, *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.JoinGroupResponse], error)
	ApproveMember(context.Context, *connect.Request[api.ApproveMemberRequest]) (*connect.Response[api.ApproveMemberResponse], error)
	LeaveGroup(context.Context, *connect.Request[api.LeaveGroupRequest]) (*connect.Response[api.LeaveGroupResponse], error)
	SetGroupStatus(context.Context, *connect.Request[api.SetGroupStatusRequest]) (*connect.Response[api.SetGroupStatusResponse], error)
	RecordContribution(context.Context, *connect.Request[api.RecordContributionRequest]) (*connect.Response[api.RecordContributionResponse], error)
	CanDraw(context.Context, *connect.Request[api.CanDrawRequest]) (*connect.Response[api.CanDrawResponse], error)
	DrawWinner(context.Context, *connect.Request[api.DrawWinnerRequest]) (*connect.Response[api.DrawWinnerResponse], error)
	ListCycles(context.Context, *connect.Request[api.ListCyclesRequest]) (*connect.Response[api.ListCyclesResponse], error)
	GetGroupBalances(context.Context, *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error)
}

// NewGroupServiceHandler builds an HTTP handler from the service implementation.
func NewGroupServiceHandler(svc GroupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	handlers := map[string]http.Handler{
		GroupServiceCreateGroupProcedure:        connect.NewUnaryHandler(GroupServiceCreateGroupProcedure, svc.CreateGroup, opts...),
		GroupServiceGetGroupProcedure:           connect.NewUnaryHandler(GroupServiceGetGroupProcedure, svc.GetGroup, opts...),
		GroupServiceListGroupsProcedure:         connect.NewUnaryHandler(GroupServiceListGroupsProcedure, svc.ListGroups, opts...),
		GroupServiceJoinGroupProcedure:          connect.NewUnaryHandler(GroupServiceJoinGroupProcedure, svc.JoinGroup, opts...),
		GroupServiceApproveMemberProcedure:      connect.NewUnaryHandler(GroupServiceApproveMemberProcedure, svc.ApproveMember, opts...),
		GroupServiceLeaveGroupProcedure:         connect.NewUnaryHandler(GroupServiceLeaveGroupProcedure, svc.LeaveGroup, opts...),
		GroupServiceSetGroupStatusProcedure:     connect.NewUnaryHandler(GroupServiceSetGroupStatusProcedure, svc.SetGroupStatus, opts...),
		GroupServiceRecordContributionProcedure: connect.NewUnaryHandler(GroupServiceRecordContributionProcedure, svc.RecordContribution, opts...),
		GroupServiceCanDrawProcedure:            connect.NewUnaryHandler(GroupServiceCanDrawProcedure, svc.CanDraw, opts...),
		GroupServiceDrawWinnerProcedure:         connect.NewUnaryHandler(GroupServiceDrawWinnerProcedure, svc.DrawWinner, opts...),
		GroupServiceListCyclesProcedure:         connect.NewUnaryHandler(GroupServiceListCyclesProcedure, svc.ListCycles, opts...),
		GroupServiceGetGroupBalancesProcedure:   connect.NewUnaryHandler(GroupServiceGetGroupBalancesProcedure, svc.GetGroupBalances, opts...),
	}
	return "/" + GroupServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// GroupServiceClient is a client for kixikila.v1.GroupService.
type GroupServiceClient struct {
	createGroup        *connect.Client[api.CreateGroupRequest, api.CreateGroupResponse]
	getGroup           *connect.Client[api.GetGroupRequest, api.GetGroupResponse]
	listGroups         *connect.Client[api.ListGroupsRequest, api.ListGroupsResponse]
	joinGroup          *connect.Client[api.JoinGroupRequest, api.JoinGroupResponse]
	approveMember      *connect.Client[api.ApproveMemberRequest, api.ApproveMemberResponse]
	leaveGroup         *connect.Client[api.LeaveGroupRequest, api.LeaveGroupResponse]
	setGroupStatus     *connect.Client[api.SetGroupStatusRequest, api.SetGroupStatusResponse]
	recordContribution *connect.Client[api.RecordContributionRequest, api.RecordContributionResponse]
	canDraw            *connect.Client[api.CanDrawRequest, api.CanDrawResponse]
	drawWinner         *connect.Client[api.DrawWinnerRequest, api.DrawWinnerResponse]
	listCycles         *connect.Client[api.ListCyclesRequest, api.ListCyclesResponse]
	getGroupBalances   *connect.Client[api.GetGroupBalancesRequest, api.GetGroupBalancesResponse]
}

// NewGroupServiceClient constructs a client for the service at baseURL.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GroupServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &GroupServiceClient{
		createGroup:        connect.NewClient[api.CreateGroupRequest, api.CreateGroupResponse](httpClient, baseURL+GroupServiceCreateGroupProcedure, opts...),
		getGroup:           connect.NewClient[api.GetGroupRequest, api.GetGroupResponse](httpClient, baseURL+GroupServiceGetGroupProcedure, opts...),
		listGroups:         connect.NewClient[api.ListGroupsRequest, api.ListGroupsResponse](httpClient, baseURL+GroupServiceListGroupsProcedure, opts...),
		joinGroup:          connect.NewClient[api.JoinGroupRequest, api.JoinGroupResponse](httpClient, baseURL+GroupServiceJoinGroupProcedure, opts...),
		approveMember:      connect.NewClient[api.ApproveMemberRequest, api.ApproveMemberResponse](httpClient, baseURL+GroupServiceApproveMemberProcedure, opts...),
		leaveGroup:         connect.NewClient[api.LeaveGroupRequest, api.LeaveGroupResponse](httpClient, baseURL+GroupServiceLeaveGroupProcedure, opts...),
		setGroupStatus:     connect.NewClient[api.SetGroupStatusRequest, api.SetGroupStatusResponse](httpClient, baseURL+GroupServiceSetGroupStatusProcedure, opts...),
		recordContribution: connect.NewClient[api.RecordContributionRequest, api.RecordContributionResponse](httpClient, baseURL+GroupServiceRecordContributionProcedure, opts...),
		canDraw:            connect.NewClient[api.CanDrawRequest, api.CanDrawResponse](httpClient, baseURL+GroupServiceCanDrawProcedure, opts...),
		drawWinner:         connect.NewClient[api.DrawWinnerRequest, api.DrawWinnerResponse](httpClient, baseURL+GroupServiceDrawWinnerProcedure, opts...),
		listCycles:         connect.NewClient[api.ListCyclesRequest, api.ListCyclesResponse](httpClient, baseURL+GroupServiceListCyclesProcedure, opts...),
		getGroupBalances:   connect.NewClient[api.GetGroupBalancesRequest, api.GetGroupBalancesResponse](httpClient, baseURL+GroupServiceGetGroupBalancesProcedure, opts...),
	}
}

func (c *GroupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

func (c *GroupServiceClient) JoinGroup(ctx context.Context, req *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.JoinGroupResponse], error) {
	return c.joinGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) ApproveMember(ctx context.Context, req *connect.Request[api.ApproveMemberRequest]) (*connect.Response[api.ApproveMemberResponse], error) {
	return c.approveMember.CallUnary(ctx, req)
}

func (c *GroupServiceClient) LeaveGroup(ctx context.Context, req *connect.Request[api.LeaveGroupRequest]) (*connect.Response[api.LeaveGroupResponse], error) {
	return c.leaveGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) SetGroupStatus(ctx context.Context, req *connect.Request[api.SetGroupStatusRequest]) (*connect.Response[api.SetGroupStatusResponse], error) {
	return c.setGroupStatus.CallUnary(ctx, req)
}

func (c *GroupServiceClient) RecordContribution(ctx context.Context, req *connect.Request[api.RecordContributionRequest]) (*connect.Response[api.RecordContributionResponse], error) {
	return c.recordContribution.CallUnary(ctx, req)
}

func (c *GroupServiceClient) CanDraw(ctx context.Context, req *connect.Request[api.CanDrawRequest]) (*connect.Response[api.CanDrawResponse], error) {
	return c.canDraw.CallUnary(ctx, req)
}

func (c *GroupServiceClient) DrawWinner(ctx context.Context, req *connect.Request[api.DrawWinnerRequest]) (*connect.Response[api.DrawWinnerResponse], error) {
	return c.drawWinner.CallUnary(ctx, req)
}

func (c *GroupServiceClient) ListCycles(ctx context.Context, req *connect.Request[api.ListCyclesRequest]) (*connect.Response[api.ListCyclesResponse], error) {
	return c.listCycles.CallUnary(ctx, req)
}

func (c *GroupServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}
