package service

import (
	"github.com/kiumaa/kixikila-sub001/internal/calculator"
	"github.com/kiumaa/kixikila-sub001/internal/cycle"
	"github.com/kiumaa/kixikila-sub001/internal/models"
	"github.com/kiumaa/kixikila-sub001/pkg/api"
)

// toAPIGroup converts a group model. users supplies display names and may be nil.
func toAPIGroup(g *models.Group, users map[string]*models.User) *api.Group {
	out := &api.Group{
		ID:                    g.ID,
		OwnerID:               g.OwnerID,
		Name:                  g.Name,
		Description:           g.Description,
		ContributionAmount:    g.ContributionAmount,
		ContributionFrequency: string(g.ContributionFrequency),
		MaxMembers:            g.MaxMembers,
		PayoutMethod:          string(g.PayoutMethod),
		Status:                string(g.Status),
		IsPrivate:             g.IsPrivate,
		RequiresApproval:      g.RequiresApproval,
		CurrentMembers:        g.CurrentMembers,
		CurrentCycle:          g.CurrentCycle,
		TotalPool:             g.TotalPool,
		Rotation:              g.Rotation,
		CanDraw:               cycle.CanDraw(g),
		Members:               make([]api.Member, 0, len(g.Members)),
		CreatedAt:             g.CreatedAt,
		UpdatedAt:             g.UpdatedAt,
	}
	for i := range g.Members {
		m := toAPIMember(&g.Members[i])
		if u, ok := users[m.UserID]; ok {
			m.DisplayName = u.DisplayName
		}
		out.Members = append(out.Members, *m)
	}
	return out
}

func toAPIMember(m *models.Member) *api.Member {
	return &api.Member{
		UserID:           m.UserID,
		Role:             string(m.Role),
		Status:           string(m.Status),
		Paid:             m.Paid,
		Position:         m.Position,
		IsWinner:         m.IsWinner,
		TotalContributed: m.TotalContributed,
		CurrentBalance:   m.CurrentBalance,
		JoinedAt:         m.JoinedAt,
	}
}

func toAPICycle(c *models.Cycle) *api.Cycle {
	return &api.Cycle{
		CycleNumber:  c.CycleNumber,
		WinnerUserID: c.WinnerUserID,
		PrizeAmount:  c.PrizeAmount,
		DrawDate:     c.DrawDate,
		Participants: c.Participants,
		PayoutTxID:   c.PayoutTxID,
	}
}

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func toAPIBalances(s *calculator.Summary, schedule []calculator.ScheduledPayout) *api.GetGroupBalancesResponse {
	out := &api.GetGroupBalancesResponse{
		Balances:         make([]api.MemberBalance, 0, len(s.Members)),
		TotalContributed: s.TotalContributed,
		TotalPaidOut:     s.TotalPaidOut,
		ExpectedPool:     s.ExpectedPool,
		PoolMatches:      s.PoolMatches,
	}
	for _, b := range s.Members {
		out.Balances = append(out.Balances, api.MemberBalance{
			UserID:      b.UserID,
			Contributed: b.Contributed,
			Received:    b.Received,
			Net:         b.Net,
			CyclesWon:   b.CyclesWon,
			Consistent:  b.Consistent,
		})
	}
	for _, p := range schedule {
		out.Schedule = append(out.Schedule, api.ScheduledPayout{
			CycleNumber: p.CycleNumber,
			UserID:      p.UserID,
			DueDate:     p.DueDate,
		})
	}
	return out
}
