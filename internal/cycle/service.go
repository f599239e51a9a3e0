// Package cycle implements the payout cycle of a rotating savings group:
// membership, contributions, lottery draws and cycle rollover.
//
// Every mutating operation on a group runs inside a per-group critical
// section and either commits all of its changes or none of them.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kiumaa/kixikila-sub001/internal/ledger"
	"github.com/kiumaa/kixikila-sub001/internal/metrics"
	"github.com/kiumaa/kixikila-sub001/internal/models"
	"github.com/kiumaa/kixikila-sub001/internal/storage"
)

// Rand picks the draw winner. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// CompletionPolicy decides when a group moves to the completed status.
type CompletionPolicy string

const (
	// CompleteNever keeps groups rotating until they are cancelled.
	CompleteNever CompletionPolicy = "never"
	// CompleteAfterRotation completes a group once every active member has won.
	CompleteAfterRotation CompletionPolicy = "after_rotation"
)

// ParseCompletionPolicy validates a policy name. Empty means CompleteNever.
func ParseCompletionPolicy(s string) (CompletionPolicy, error) {
	switch CompletionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompleteNever:
		return CompleteNever, nil
	case CompleteAfterRotation:
		return CompleteAfterRotation, nil
	default:
		return "", fmt.Errorf("unknown completion policy %q", s)
	}
}

// Service owns group state transitions.
type Service struct {
	store   storage.GroupStore
	ledger  ledger.PaymentLedger
	locks   *keyedLocker
	rand    Rand
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
	policy  CompletionPolicy
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the winner selection source.
func WithRand(r Rand) Option { return func(s *Service) { s.rand = r } }

// WithClock sets the time source used for draw dates and join times.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithCompletionPolicy sets when groups complete.
func WithCompletionPolicy(p CompletionPolicy) Option { return func(s *Service) { s.policy = p } }

// NewService creates a Service over the given store and ledger.
func NewService(store storage.GroupStore, l ledger.PaymentLedger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ledger: l,
		locks:  newKeyedLocker(),
		rand:   globalRand{},
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
		policy: CompleteNever,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GroupParams are the caller-supplied settings of a new group.
type GroupParams struct {
	Name               string
	Description        string
	ContributionAmount decimal.Decimal
	Frequency          models.Frequency
	MaxMembers         int
	PayoutMethod       models.PayoutMethod
	IsPrivate          bool
	RequiresApproval   bool
}

func (p *GroupParams) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if !p.ContributionAmount.IsPositive() {
		return fmt.Errorf("%w: contribution amount must be positive", ErrInvalidGroup)
	}
	if p.MaxMembers < 2 {
		return fmt.Errorf("%w: max members must be at least 2", ErrInvalidGroup)
	}
	if p.Frequency == "" {
		p.Frequency = models.FrequencyMonthly
	}
	if !p.Frequency.Valid() {
		return fmt.Errorf("%w: unknown contribution frequency %q", ErrInvalidGroup, p.Frequency)
	}
	if p.PayoutMethod == "" {
		p.PayoutMethod = models.PayoutLottery
	}
	if !p.PayoutMethod.Valid() {
		return fmt.Errorf("%w: unknown payout method %q", ErrInvalidGroup, p.PayoutMethod)
	}
	return nil
}

// CreateGroup creates a draft group with ownerID as its creator member.
func (s *Service) CreateGroup(ctx context.Context, ownerID string, params GroupParams) (*models.Group, error) {
	if ownerID == "" {
		return nil, ErrNotAuthorized
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	position := 1
	group := &models.Group{
		OwnerID:               ownerID,
		Name:                  params.Name,
		Description:           params.Description,
		ContributionAmount:    params.ContributionAmount,
		ContributionFrequency: params.Frequency,
		MaxMembers:            params.MaxMembers,
		PayoutMethod:          params.PayoutMethod,
		Status:                models.GroupStatusDraft,
		IsPrivate:             params.IsPrivate,
		RequiresApproval:      params.RequiresApproval,
		CurrentMembers:        1,
		CurrentCycle:          1,
		TotalPool:             decimal.Zero,
		Rotation:              1,
		Members: []models.Member{{
			UserID:           ownerID,
			Role:             models.MemberRoleCreator,
			Status:           models.MemberStatusActive,
			Position:         &position,
			TotalContributed: decimal.Zero,
			CurrentBalance:   decimal.Zero,
			JoinedAt:         now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateGroup(ctx, group); err != nil {
		s.metrics.Operation("create_group", "error")
		return nil, fmt.Errorf("create group: %w", err)
	}

	s.metrics.Operation("create_group", "ok")
	s.logger.Info("Group created", "group_id", group.ID, "owner_id", ownerID, "payout_method", group.PayoutMethod)
	return group, nil
}

// GetGroup loads a group.
func (s *Service) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.load(ctx, groupID)
}

// ListGroups returns all groups.
func (s *Service) ListGroups(ctx context.Context) ([]*models.Group, error) {
	return s.store.ListGroups(ctx)
}

// ListCycles returns the draw history of a group.
func (s *Service) ListCycles(ctx context.Context, groupID string) ([]*models.Cycle, error) {
	cycles, err := s.store.ListCycles(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	return cycles, err
}

// JoinGroup adds userID to the group. The member is active straight away
// unless the group requires approval, in which case it stays pending.
// A member who left and rejoins keeps their position and their winner flag
// for the current rotation, but comes back with the member role.
func (s *Service) JoinGroup(ctx context.Context, groupID, userID string) (*models.Member, error) {
	var joined models.Member
	err := s.withGroup(ctx, groupID, func(g *models.Group) error {
		if g.Status != models.GroupStatusDraft && g.Status != models.GroupStatusActive {
			return fmt.Errorf("%w: group is %s", ErrGroupNotActive, g.Status)
		}
		existing := g.Member(userID)
		if existing != nil && existing.Status != models.MemberStatusLeft {
			return ErrAlreadyMember
		}
		if g.CurrentMembers >= g.MaxMembers {
			return ErrGroupFull
		}

		status := models.MemberStatusActive
		if g.RequiresApproval {
			status = models.MemberStatusPending
		}

		m := existing
		if m == nil {
			position := len(g.Members) + 1
			g.Members = append(g.Members, models.Member{
				GroupID:          g.ID,
				UserID:           userID,
				Position:         &position,
				TotalContributed: decimal.Zero,
				CurrentBalance:   decimal.Zero,
			})
			m = &g.Members[len(g.Members)-1]
		}
		m.Role = models.MemberRoleMember
		m.Status = status
		m.Paid = false
		m.JoinedAt = s.now()

		if status == models.MemberStatusActive {
			activate(g)
		}
		if err := s.store.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("save group: %w", err)
		}
		joined = *m
		return nil
	})
	s.observe("join", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Member joined", "group_id", groupID, "user_id", userID, "status", joined.Status)
	return &joined, nil
}

// ApproveMember activates a pending member. Only the creator or an admin may approve.
func (s *Service) ApproveMember(ctx context.Context, groupID, approverID, userID string) (*models.Member, error) {
	var approved models.Member
	err := s.withGroup(ctx, groupID, func(g *models.Group) error {
		if err := requireManager(g, approverID); err != nil {
			return err
		}
		if g.Status != models.GroupStatusDraft && g.Status != models.GroupStatusActive {
			return fmt.Errorf("%w: group is %s", ErrGroupNotActive, g.Status)
		}
		m := g.Member(userID)
		if m == nil {
			return ErrNotMember
		}
		if m.Status != models.MemberStatusPending {
			return fmt.Errorf("%w: member is %s", ErrInvalidTransition, m.Status)
		}
		if g.CurrentMembers >= g.MaxMembers {
			return ErrGroupFull
		}
		m.Status = models.MemberStatusActive
		activate(g)
		if err := s.store.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("save group: %w", err)
		}
		approved = *m
		return nil
	})
	s.observe("approve", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Member approved", "group_id", groupID, "user_id", userID, "approver_id", approverID)
	return &approved, nil
}

// LeaveGroup marks the member as left. The creator cannot leave, and a
// member whose contribution is in the current pool must wait for the draw.
func (s *Service) LeaveGroup(ctx context.Context, groupID, userID string) error {
	err := s.withGroup(ctx, groupID, func(g *models.Group) error {
		m := g.Member(userID)
		if m == nil || m.Status == models.MemberStatusLeft {
			return ErrNotMember
		}
		if m.Role == models.MemberRoleCreator {
			return fmt.Errorf("%w: the creator cannot leave the group", ErrNotAuthorized)
		}
		if m.Paid {
			return ErrContributionLocked
		}
		if m.Status == models.MemberStatusActive {
			g.CurrentMembers--
		}
		m.Status = models.MemberStatusLeft
		if s.settleRotation(g) {
			g.Status = models.GroupStatusCompleted
		}
		if err := s.store.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("save group: %w", err)
		}
		return nil
	})
	s.observe("leave", err)
	if err != nil {
		return err
	}
	s.logger.Info("Member left", "group_id", groupID, "user_id", userID)
	return nil
}

// SetStatus pauses, resumes or cancels a group on behalf of a creator or admin.
func (s *Service) SetStatus(ctx context.Context, groupID, actorID string, status models.GroupStatus) (*models.Group, error) {
	var updated *models.Group
	err := s.withGroup(ctx, groupID, func(g *models.Group) error {
		if err := requireManager(g, actorID); err != nil {
			return err
		}
		if !allowedTransition(g.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, g.Status, status)
		}
		if status == models.GroupStatusCancelled && g.TotalPool.IsPositive() {
			return ErrContributionLocked
		}
		g.Status = status
		if err := s.store.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("save group: %w", err)
		}
		updated = g
		return nil
	})
	s.observe("set_status", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Group status changed", "group_id", groupID, "status", status, "actor_id", actorID)
	return updated, nil
}

// Contribution is the outcome of a recorded contribution.
type Contribution struct {
	GroupID     string
	UserID      string
	CycleNumber int
	Amount      decimal.Decimal
	TxID        string
	TotalPool   decimal.Decimal
}

// RecordContribution charges the member's contribution for the current
// cycle and adds it to the pool.
func (s *Service) RecordContribution(ctx context.Context, groupID, userID string, amount decimal.Decimal) (*Contribution, error) {
	var result *Contribution
	err := s.withGroup(ctx, groupID, func(g *models.Group) error {
		if g.Status != models.GroupStatusActive {
			return fmt.Errorf("%w: group is %s", ErrGroupNotActive, g.Status)
		}
		m := g.Member(userID)
		if m == nil || m.Status != models.MemberStatusActive {
			return ErrNotMember
		}
		if m.Paid {
			return ErrAlreadyPaid
		}
		if !amount.Equal(g.ContributionAmount) {
			return fmt.Errorf("%w: got %s, want %s", ErrAmountMismatch, amount, g.ContributionAmount)
		}

		txID, err := s.charge(ctx, userID, amount)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
			}
			return fmt.Errorf("charge contribution: %w", err)
		}

		m.Paid = true
		m.TotalContributed = m.TotalContributed.Add(amount)
		m.CurrentBalance = m.CurrentBalance.Sub(amount)
		g.TotalPool = g.TotalPool.Add(amount)

		if err := s.store.SaveGroup(ctx, g); err != nil {
			s.refund(ctx, g.ID, userID, amount, txID)
			return fmt.Errorf("save group: %w", err)
		}

		result = &Contribution{
			GroupID:     g.ID,
			UserID:      userID,
			CycleNumber: g.CurrentCycle,
			Amount:      amount,
			TxID:        txID,
			TotalPool:   g.TotalPool,
		}
		return nil
	})
	s.observe("contribution", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Contribution recorded",
		"group_id", groupID,
		"user_id", userID,
		"cycle", result.CycleNumber,
		"total_pool", result.TotalPool.String(),
	)
	return result, nil
}

// CanDraw loads the group and evaluates the CanDraw predicate.
func (s *Service) CanDraw(ctx context.Context, groupID string) (bool, error) {
	g, err := s.load(ctx, groupID)
	if err != nil {
		return false, err
	}
	return CanDraw(g), nil
}

// DrawWinner selects the winner of the current cycle, pays the prize,
// records the cycle and opens the next one. Nothing is recorded when the
// payout fails, and the prize is charged back when the draw cannot be
// recorded, so a retry never pays the same cycle twice.
func (s *Service) DrawWinner(ctx context.Context, groupID string) (*models.Cycle, error) {
	var drawn *models.Cycle
	err := s.withGroup(ctx, groupID, func(g *models.Group) error {
		if !CanDraw(g) {
			return ErrNotEligibleForDraw
		}

		eligible := EligibleForDraw(g)
		winner := eligible[s.rand.IntN(len(eligible))]
		prize := PrizeAmount(g)

		var participants []string
		for _, m := range g.PaidMembers() {
			participants = append(participants, m.UserID)
		}

		txID, err := s.payout(ctx, winner.UserID, prize)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPayoutFailed, err)
		}

		cycle := &models.Cycle{
			GroupID:      g.ID,
			CycleNumber:  g.CurrentCycle,
			WinnerUserID: winner.UserID,
			PrizeAmount:  prize,
			DrawDate:     s.now(),
			Participants: participants,
			PayoutTxID:   txID,
		}

		winner.IsWinner = true
		winner.CurrentBalance = winner.CurrentBalance.Add(prize)
		completed := s.settleRotation(g)
		AdvanceCycle(g)
		if completed {
			g.Status = models.GroupStatusCompleted
		}

		if err := s.store.RecordDraw(context.WithoutCancel(ctx), g, cycle); err != nil {
			s.reversePrize(ctx, cycle)
			return fmt.Errorf("record draw: %w", err)
		}
		drawn = cycle
		return nil
	})
	s.observe("draw", err)
	if err != nil {
		return nil, err
	}
	s.metrics.PrizePaid(drawn.PrizeAmount)
	s.logger.Info("Winner drawn",
		"group_id", groupID,
		"cycle", drawn.CycleNumber,
		"winner_id", drawn.WinnerUserID,
		"prize", drawn.PrizeAmount.String(),
	)
	return drawn, nil
}

// settleRotation starts a new rotation once every active member has won.
// It reports whether the group should complete under the current policy.
func (s *Service) settleRotation(g *models.Group) bool {
	if !rotationComplete(g) {
		return false
	}
	if s.policy == CompleteAfterRotation {
		return true
	}
	startRotation(g)
	return false
}

// withGroup runs fn on a freshly loaded copy of the group while holding the
// group's lock. fn is responsible for persisting its changes.
func (s *Service) withGroup(ctx context.Context, groupID string, fn func(g *models.Group) error) error {
	unlock, err := s.locks.lock(ctx, groupID)
	if err != nil {
		return fmt.Errorf("lock group %s: %w", groupID, err)
	}
	defer unlock()

	g, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}
	return fn(g)
}

func (s *Service) load(ctx context.Context, groupID string) (*models.Group, error) {
	g, err := s.store.LoadGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	return g, nil
}

func (s *Service) charge(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	start := time.Now()
	txID, err := s.ledger.Charge(ctx, userID, amount)
	s.metrics.LedgerCall("charge", err, time.Since(start))
	return txID, err
}

func (s *Service) payout(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	start := time.Now()
	txID, err := s.ledger.Payout(ctx, userID, amount)
	s.metrics.LedgerCall("payout", err, time.Since(start))
	return txID, err
}

// refund returns a charged contribution that could not be persisted.
func (s *Service) refund(ctx context.Context, groupID, userID string, amount decimal.Decimal, chargeTxID string) {
	refundTxID, err := s.payout(context.WithoutCancel(ctx), userID, amount)
	if err != nil {
		s.logger.Error("Contribution refund failed",
			"group_id", groupID,
			"user_id", userID,
			"charge_tx_id", chargeTxID,
			"error", err,
		)
		return
	}
	s.logger.Warn("Contribution refunded after save failure",
		"group_id", groupID,
		"user_id", userID,
		"charge_tx_id", chargeTxID,
		"refund_tx_id", refundTxID,
	)
}

// reversePrize charges back a prize whose draw could not be persisted.
func (s *Service) reversePrize(ctx context.Context, cycle *models.Cycle) {
	reversalTxID, err := s.charge(context.WithoutCancel(ctx), cycle.WinnerUserID, cycle.PrizeAmount)
	if err != nil {
		s.logger.Error("Prize paid but draw not recorded and reversal failed",
			"group_id", cycle.GroupID,
			"cycle", cycle.CycleNumber,
			"winner_id", cycle.WinnerUserID,
			"prize", cycle.PrizeAmount.String(),
			"payout_tx_id", cycle.PayoutTxID,
			"error", err,
		)
		return
	}
	s.logger.Warn("Prize reversed after record failure",
		"group_id", cycle.GroupID,
		"cycle", cycle.CycleNumber,
		"winner_id", cycle.WinnerUserID,
		"payout_tx_id", cycle.PayoutTxID,
		"reversal_tx_id", reversalTxID,
	)
}

func (s *Service) observe(op string, err error) {
	s.metrics.Operation(op, resultLabel(err))
}

// resultLabel maps an operation error to a low-cardinality metric label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, ErrGroupFull):
		return "group_full"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrNotEligibleForDraw):
		return "not_eligible"
	case errors.Is(err, ErrPayoutFailed):
		return "payout_failed"
	default:
		return "error"
	}
}

// activate counts a newly active member and moves a draft group to active.
func activate(g *models.Group) {
	g.CurrentMembers++
	if g.Status == models.GroupStatusDraft {
		g.Status = models.GroupStatusActive
	}
}

func requireManager(g *models.Group, userID string) error {
	m := g.Member(userID)
	if m == nil || m.Status != models.MemberStatusActive || !m.Role.CanManage() {
		return ErrNotAuthorized
	}
	return nil
}

func allowedTransition(from, to models.GroupStatus) bool {
	switch to {
	case models.GroupStatusPaused:
		return from == models.GroupStatusActive
	case models.GroupStatusActive:
		return from == models.GroupStatusPaused
	case models.GroupStatusCancelled:
		return !from.Terminal()
	default:
		return false
	}
}
