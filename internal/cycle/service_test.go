package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/kiumaa/kixikila-sub001/internal/ledger"
	"github.com/kiumaa/kixikila-sub001/internal/metrics"
	"github.com/kiumaa/kixikila-sub001/internal/models"
	"github.com/kiumaa/kixikila-sub001/internal/storage/memory"
)

// seqRand returns its values in order, wrapping around, each reduced mod n.
type seqRand struct {
	mu   sync.Mutex
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

var hundred = decimal.NewFromInt(100)

type fixture struct {
	svc    *Service
	store  *memory.Store
	ledger *ledger.Memory
	rand   *seqRand
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		ledger: ledger.NewMemory(),
		rand:   &seqRand{},
	}
	clock := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	base := []Option{
		WithRand(f.rand),
		WithClock(func() time.Time { return clock }),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	}
	f.svc = NewService(f.store, f.ledger, append(base, opts...)...)
	return f
}

// lotteryGroup creates a group owned by "alice" with the given joiners, all active.
func (f *fixture) lotteryGroup(t *testing.T, maxMembers int, joiners ...string) *models.Group {
	t.Helper()
	return f.groupWith(t, models.PayoutLottery, maxMembers, joiners...)
}

func (f *fixture) groupWith(t *testing.T, method models.PayoutMethod, maxMembers int, joiners ...string) *models.Group {
	t.Helper()
	ctx := context.Background()
	g, err := f.svc.CreateGroup(ctx, "alice", GroupParams{
		Name:               "Kixikila da Família",
		ContributionAmount: hundred,
		Frequency:          models.FrequencyMonthly,
		MaxMembers:         maxMembers,
		PayoutMethod:       method,
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	for _, u := range joiners {
		if _, err := f.svc.JoinGroup(ctx, g.ID, u); err != nil {
			t.Fatalf("JoinGroup(%s) failed: %v", u, err)
		}
	}
	return f.load(t, g.ID)
}

func (f *fixture) fund(t *testing.T, amount int64, users ...string) {
	t.Helper()
	for _, u := range users {
		if _, err := f.ledger.Deposit(context.Background(), u, decimal.NewFromInt(amount)); err != nil {
			t.Fatalf("Deposit(%s) failed: %v", u, err)
		}
	}
}

func (f *fixture) pay(t *testing.T, groupID string, users ...string) {
	t.Helper()
	for _, u := range users {
		if _, err := f.svc.RecordContribution(context.Background(), groupID, u, hundred); err != nil {
			t.Fatalf("RecordContribution(%s) failed: %v", u, err)
		}
	}
}

func (f *fixture) load(t *testing.T, groupID string) *models.Group {
	t.Helper()
	g, err := f.store.LoadGroup(context.Background(), groupID)
	if err != nil {
		t.Fatalf("LoadGroup failed: %v", err)
	}
	return g
}

func (f *fixture) balance(t *testing.T, user string) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), user)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	return b
}

func assertInvariants(t *testing.T, g *models.Group) {
	t.Helper()
	want := g.ContributionAmount.Mul(decimal.NewFromInt(int64(len(g.PaidMembers()))))
	if !g.TotalPool.Equal(want) {
		t.Errorf("pool invariant broken: total_pool=%s, want %s", g.TotalPool, want)
	}
	if g.CurrentMembers > g.MaxMembers {
		t.Errorf("capacity invariant broken: %d > %d", g.CurrentMembers, g.MaxMembers)
	}
	if len(g.ActiveMembers()) != g.CurrentMembers {
		t.Errorf("current_members=%d but %d active members", g.CurrentMembers, len(g.ActiveMembers()))
	}
}

func TestCreateGroup(t *testing.T) {
	tests := []struct {
		name    string
		params  GroupParams
		wantErr error
	}{
		{
			name:   "valid lottery group",
			params: GroupParams{Name: "Amigos", ContributionAmount: hundred, MaxMembers: 5},
		},
		{
			name:    "zero contribution",
			params:  GroupParams{Name: "Amigos", ContributionAmount: decimal.Zero, MaxMembers: 5},
			wantErr: ErrInvalidGroup,
		},
		{
			name:    "negative contribution",
			params:  GroupParams{Name: "Amigos", ContributionAmount: decimal.NewFromInt(-5), MaxMembers: 5},
			wantErr: ErrInvalidGroup,
		},
		{
			name:    "single member",
			params:  GroupParams{Name: "Solo", ContributionAmount: hundred, MaxMembers: 1},
			wantErr: ErrInvalidGroup,
		},
		{
			name:    "blank name",
			params:  GroupParams{Name: "   ", ContributionAmount: hundred, MaxMembers: 3},
			wantErr: ErrInvalidGroup,
		},
		{
			name:    "unknown payout method",
			params:  GroupParams{Name: "Amigos", ContributionAmount: hundred, MaxMembers: 3, PayoutMethod: "auction"},
			wantErr: ErrInvalidGroup,
		},
		{
			name:    "unknown frequency",
			params:  GroupParams{Name: "Amigos", ContributionAmount: hundred, MaxMembers: 3, Frequency: "daily"},
			wantErr: ErrInvalidGroup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			g, err := f.svc.CreateGroup(context.Background(), "alice", tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateGroup() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateGroup() unexpected error: %v", err)
			}
			if g.Status != models.GroupStatusDraft {
				t.Errorf("status = %s, want draft", g.Status)
			}
			if g.CurrentCycle != 1 || !g.TotalPool.IsZero() || g.CurrentMembers != 1 {
				t.Errorf("unexpected initial state: cycle=%d pool=%s members=%d", g.CurrentCycle, g.TotalPool, g.CurrentMembers)
			}
			if g.PayoutMethod != models.PayoutLottery || g.ContributionFrequency != models.FrequencyMonthly {
				t.Errorf("defaults not applied: method=%s frequency=%s", g.PayoutMethod, g.ContributionFrequency)
			}
			creators := 0
			for _, m := range g.Members {
				if m.Role == models.MemberRoleCreator {
					creators++
					if m.UserID != "alice" {
						t.Errorf("creator = %s, want alice", m.UserID)
					}
				}
			}
			if creators != 1 {
				t.Errorf("expected exactly one creator, got %d", creators)
			}
		})
	}
}

// Scenario: three members pay, the draw picks one of them, the prize is
// the whole pool and the group rolls into cycle 2.
func TestDrawWinner_FullCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 3, "bob", "carol")
	f.fund(t, 100, "alice", "bob", "carol")

	if g.Status != models.GroupStatusActive {
		t.Fatalf("status = %s, want active after first join", g.Status)
	}

	f.pay(t, g.ID, "alice", "bob", "carol")
	g = f.load(t, g.ID)
	assertInvariants(t, g)
	if !g.TotalPool.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("pool = %s, want 300", g.TotalPool)
	}

	ok, err := f.svc.CanDraw(ctx, g.ID)
	if err != nil || !ok {
		t.Fatalf("CanDraw = %v, %v; want true", ok, err)
	}

	f.rand.vals = []int{1}
	cycle, err := f.svc.DrawWinner(ctx, g.ID)
	if err != nil {
		t.Fatalf("DrawWinner failed: %v", err)
	}

	if cycle.WinnerUserID != "bob" {
		t.Errorf("winner = %s, want bob", cycle.WinnerUserID)
	}
	if cycle.CycleNumber != 1 {
		t.Errorf("cycle number = %d, want 1", cycle.CycleNumber)
	}
	if !cycle.PrizeAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("prize = %s, want 300", cycle.PrizeAmount)
	}
	if len(cycle.Participants) != 3 {
		t.Errorf("participants = %v, want 3", cycle.Participants)
	}
	if cycle.PayoutTxID == "" {
		t.Error("expected payout transaction id")
	}

	g = f.load(t, g.ID)
	assertInvariants(t, g)
	if g.CurrentCycle != 2 {
		t.Errorf("current cycle = %d, want 2", g.CurrentCycle)
	}
	if !g.TotalPool.IsZero() {
		t.Errorf("pool = %s, want 0", g.TotalPool)
	}
	for _, m := range g.Members {
		if m.Paid {
			t.Errorf("member %s still paid after rollover", m.UserID)
		}
	}
	if !g.Member("bob").IsWinner {
		t.Error("bob should be marked winner")
	}
	if !g.Member("bob").CurrentBalance.Equal(decimal.NewFromInt(200)) {
		t.Errorf("bob balance = %s, want 200", g.Member("bob").CurrentBalance)
	}
	if !f.balance(t, "bob").Equal(decimal.NewFromInt(300)) {
		t.Errorf("bob wallet = %s, want 300", f.balance(t, "bob"))
	}

	cycles, err := f.svc.ListCycles(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	if len(cycles) != 1 || cycles[0].WinnerUserID != "bob" {
		t.Errorf("unexpected history: %+v", cycles)
	}
}

// Scenario: only two of three members paid.
func TestDrawWinner_NotAllPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 3, "bob", "carol")
	f.fund(t, 100, "alice", "bob")
	f.pay(t, g.ID, "alice", "bob")

	ok, err := f.svc.CanDraw(ctx, g.ID)
	if err != nil {
		t.Fatalf("CanDraw failed: %v", err)
	}
	if ok {
		t.Fatal("CanDraw = true with an unpaid member")
	}

	before := f.load(t, g.ID)
	_, err = f.svc.DrawWinner(ctx, g.ID)
	if !errors.Is(err, ErrNotEligibleForDraw) {
		t.Fatalf("DrawWinner error = %v, want ErrNotEligibleForDraw", err)
	}

	after := f.load(t, g.ID)
	if after.CurrentCycle != before.CurrentCycle || !after.TotalPool.Equal(before.TotalPool) {
		t.Error("rejected draw mutated the group")
	}
	cycles, _ := f.svc.ListCycles(ctx, g.ID)
	if len(cycles) != 0 {
		t.Errorf("expected no cycle records, got %d", len(cycles))
	}
}

// Scenario: contribution amount must match exactly.
func TestRecordContribution_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	g := f.lotteryGroup(t, 3, "bob")
	f.fund(t, 500, "bob")

	_, err := f.svc.RecordContribution(context.Background(), g.ID, "bob", decimal.NewFromInt(50))
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("error = %v, want ErrAmountMismatch", err)
	}

	after := f.load(t, g.ID)
	if after.Member("bob").Paid || !after.TotalPool.IsZero() {
		t.Error("rejected contribution mutated state")
	}
	if !f.balance(t, "bob").Equal(decimal.NewFromInt(500)) {
		t.Errorf("wallet charged on rejected contribution: %s", f.balance(t, "bob"))
	}
}

// Scenario: paying twice in the same cycle.
func TestRecordContribution_AlreadyPaid(t *testing.T) {
	f := newFixture(t)
	g := f.lotteryGroup(t, 3, "bob")
	f.fund(t, 500, "bob")
	f.pay(t, g.ID, "bob")

	before := f.load(t, g.ID)
	_, err := f.svc.RecordContribution(context.Background(), g.ID, "bob", hundred)
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("error = %v, want ErrAlreadyPaid", err)
	}
	after := f.load(t, g.ID)
	if !after.TotalPool.Equal(before.TotalPool) {
		t.Errorf("pool changed: %s -> %s", before.TotalPool, after.TotalPool)
	}
	if !after.Member("bob").TotalContributed.Equal(hundred) {
		t.Errorf("total contributed = %s, want 100", after.Member("bob").TotalContributed)
	}
	if !f.balance(t, "bob").Equal(decimal.NewFromInt(400)) {
		t.Errorf("wallet = %s, want 400 (charged once)", f.balance(t, "bob"))
	}
}

func TestRecordContribution_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	g := f.lotteryGroup(t, 3, "bob")
	f.fund(t, 40, "bob")

	_, err := f.svc.RecordContribution(context.Background(), g.ID, "bob", hundred)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	after := f.load(t, g.ID)
	assertInvariants(t, after)
	if after.Member("bob").Paid {
		t.Error("member marked paid after failed charge")
	}
}

func TestRecordContribution_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 3, "bob")
	f.fund(t, 500, "alice", "bob", "mallory")

	if _, err := f.svc.RecordContribution(ctx, g.ID, "mallory", hundred); !errors.Is(err, ErrNotMember) {
		t.Errorf("non-member error = %v, want ErrNotMember", err)
	}
	if _, err := f.svc.RecordContribution(ctx, "missing", "bob", hundred); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("missing group error = %v, want ErrGroupNotFound", err)
	}

	if _, err := f.svc.SetStatus(ctx, g.ID, "alice", models.GroupStatusPaused); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if _, err := f.svc.RecordContribution(ctx, g.ID, "bob", hundred); !errors.Is(err, ErrGroupNotActive) {
		t.Errorf("paused group error = %v, want ErrGroupNotActive", err)
	}
}

func TestRecordContribution_RefundsWhenSaveFails(t *testing.T) {
	f := newFixture(t)
	g := f.lotteryGroup(t, 3, "bob")
	f.fund(t, 100, "bob")

	f.store.SetFailSaves(true)
	_, err := f.svc.RecordContribution(context.Background(), g.ID, "bob", hundred)
	if err == nil {
		t.Fatal("expected error when the store fails")
	}
	f.store.SetFailSaves(false)

	if !f.balance(t, "bob").Equal(hundred) {
		t.Errorf("wallet = %s, want 100 after refund", f.balance(t, "bob"))
	}
	after := f.load(t, g.ID)
	if after.Member("bob").Paid {
		t.Error("contribution persisted despite failed save")
	}
}

// Scenario: a fourth user joins a full group.
func TestJoinGroup_Full(t *testing.T) {
	f := newFixture(t)
	g := f.lotteryGroup(t, 3, "bob", "carol")

	_, err := f.svc.JoinGroup(context.Background(), g.ID, "dave")
	if !errors.Is(err, ErrGroupFull) {
		t.Fatalf("error = %v, want ErrGroupFull", err)
	}
	after := f.load(t, g.ID)
	assertInvariants(t, after)
	if after.Member("dave") != nil {
		t.Error("dave was added to a full group")
	}
}

func TestJoinGroup_AlreadyMember(t *testing.T) {
	f := newFixture(t)
	g := f.lotteryGroup(t, 5, "bob")

	for _, u := range []string{"alice", "bob"} {
		if _, err := f.svc.JoinGroup(context.Background(), g.ID, u); !errors.Is(err, ErrAlreadyMember) {
			t.Errorf("JoinGroup(%s) error = %v, want ErrAlreadyMember", u, err)
		}
	}
}

func TestJoinGroup_RequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.svc.CreateGroup(ctx, "alice", GroupParams{
		Name:               "Privado",
		ContributionAmount: hundred,
		MaxMembers:         2,
		RequiresApproval:   true,
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	m, err := f.svc.JoinGroup(ctx, g.ID, "bob")
	if err != nil {
		t.Fatalf("JoinGroup failed: %v", err)
	}
	if m.Status != models.MemberStatusPending {
		t.Errorf("status = %s, want pending", m.Status)
	}
	got := f.load(t, g.ID)
	if got.CurrentMembers != 1 || got.Status != models.GroupStatusDraft {
		t.Errorf("pending join changed counts: members=%d status=%s", got.CurrentMembers, got.Status)
	}

	if _, err := f.svc.ApproveMember(ctx, g.ID, "bob", "bob"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("self approval error = %v, want ErrNotAuthorized", err)
	}

	m, err = f.svc.ApproveMember(ctx, g.ID, "alice", "bob")
	if err != nil {
		t.Fatalf("ApproveMember failed: %v", err)
	}
	if m.Status != models.MemberStatusActive {
		t.Errorf("status = %s, want active", m.Status)
	}
	got = f.load(t, g.ID)
	assertInvariants(t, got)
	if got.Status != models.GroupStatusActive {
		t.Errorf("group status = %s, want active", got.Status)
	}

	if _, err := f.svc.ApproveMember(ctx, g.ID, "alice", "bob"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double approval error = %v, want ErrInvalidTransition", err)
	}
}

func TestLeaveGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 3, "bob", "carol")
	f.fund(t, 100, "bob")
	f.pay(t, g.ID, "bob")

	if err := f.svc.LeaveGroup(ctx, g.ID, "alice"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("creator leave error = %v, want ErrNotAuthorized", err)
	}
	if err := f.svc.LeaveGroup(ctx, g.ID, "bob"); !errors.Is(err, ErrContributionLocked) {
		t.Errorf("paid member leave error = %v, want ErrContributionLocked", err)
	}
	if err := f.svc.LeaveGroup(ctx, g.ID, "carol"); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}

	got := f.load(t, g.ID)
	assertInvariants(t, got)
	if got.Member("carol").Status != models.MemberStatusLeft {
		t.Errorf("carol status = %s, want left", got.Member("carol").Status)
	}
	if got.CurrentMembers != 2 {
		t.Errorf("current members = %d, want 2", got.CurrentMembers)
	}

	// A member who left may come back.
	if _, err := f.svc.JoinGroup(ctx, g.ID, "carol"); err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	got = f.load(t, g.ID)
	if got.CurrentMembers != 3 || len(got.Members) != 3 {
		t.Errorf("rejoin: members=%d records=%d, want 3 and 3", got.CurrentMembers, len(got.Members))
	}
}

// Scenario: earlier winners are excluded until everyone has won once.
func TestDrawWinner_FullRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 3, "bob", "carol")
	f.fund(t, 1000, "alice", "bob", "carol")
	f.rand.vals = []int{0}

	seen := make(map[string]bool)
	for i := 1; i <= 3; i++ {
		f.pay(t, g.ID, "alice", "bob", "carol")
		if i > 1 {
			eligible := EligibleForDraw(f.load(t, g.ID))
			for _, m := range eligible {
				if seen[m.UserID] {
					t.Errorf("cycle %d: previous winner %s is eligible", i, m.UserID)
				}
			}
			if len(eligible) != 3-(i-1) {
				t.Errorf("cycle %d: %d eligible, want %d", i, len(eligible), 3-(i-1))
			}
		}
		cycle, err := f.svc.DrawWinner(ctx, g.ID)
		if err != nil {
			t.Fatalf("cycle %d: DrawWinner failed: %v", i, err)
		}
		if seen[cycle.WinnerUserID] {
			t.Fatalf("cycle %d: %s won twice in one rotation", i, cycle.WinnerUserID)
		}
		seen[cycle.WinnerUserID] = true
	}

	g = f.load(t, g.ID)
	if g.Rotation != 2 {
		t.Errorf("rotation = %d, want 2", g.Rotation)
	}
	for _, m := range g.Members {
		if m.IsWinner {
			t.Errorf("%s still flagged winner after rotation reset", m.UserID)
		}
	}
	if g.Status != models.GroupStatusActive {
		t.Errorf("status = %s, want active under the never policy", g.Status)
	}

	f.pay(t, g.ID, "alice", "bob", "carol")
	if n := len(EligibleForDraw(f.load(t, g.ID))); n != 3 {
		t.Errorf("new rotation eligible = %d, want 3", n)
	}

	cycles, err := f.svc.ListCycles(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	for i, c := range cycles {
		if c.CycleNumber != i+1 {
			t.Errorf("cycle[%d].CycleNumber = %d, want %d", i, c.CycleNumber, i+1)
		}
	}
}

func TestDrawWinner_CompleteAfterRotation(t *testing.T) {
	f := newFixture(t, WithCompletionPolicy(CompleteAfterRotation))
	ctx := context.Background()
	g := f.lotteryGroup(t, 2, "bob")
	f.fund(t, 1000, "alice", "bob")

	for i := 0; i < 2; i++ {
		f.pay(t, g.ID, "alice", "bob")
		if _, err := f.svc.DrawWinner(ctx, g.ID); err != nil {
			t.Fatalf("draw %d failed: %v", i+1, err)
		}
	}

	g = f.load(t, g.ID)
	if g.Status != models.GroupStatusCompleted {
		t.Errorf("status = %s, want completed", g.Status)
	}
	if _, err := f.svc.RecordContribution(ctx, g.ID, "alice", hundred); !errors.Is(err, ErrGroupNotActive) {
		t.Errorf("contribution to completed group error = %v, want ErrGroupNotActive", err)
	}
}

func TestDrawWinner_PayoutFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 2, "bob")
	f.fund(t, 100, "alice", "bob")
	f.pay(t, g.ID, "alice", "bob")

	f.ledger.SetFailPayouts(true)
	_, err := f.svc.DrawWinner(ctx, g.ID)
	if !errors.Is(err, ErrPayoutFailed) {
		t.Fatalf("error = %v, want ErrPayoutFailed", err)
	}

	after := f.load(t, g.ID)
	assertInvariants(t, after)
	if after.CurrentCycle != 1 || len(after.PaidMembers()) != 2 {
		t.Errorf("failed draw mutated group: cycle=%d paid=%d", after.CurrentCycle, len(after.PaidMembers()))
	}
	for _, m := range after.Members {
		if m.IsWinner {
			t.Errorf("%s marked winner after failed payout", m.UserID)
		}
	}
	cycles, _ := f.svc.ListCycles(ctx, g.ID)
	if len(cycles) != 0 {
		t.Errorf("cycle recorded after failed payout: %+v", cycles)
	}

	// The draw can be retried once the ledger recovers.
	f.ledger.SetFailPayouts(false)
	if _, err := f.svc.DrawWinner(ctx, g.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestDrawWinner_ReversesPrizeWhenRecordFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 2, "bob")
	f.fund(t, 100, "alice", "bob")
	f.pay(t, g.ID, "alice", "bob")

	f.store.SetFailSaves(true)
	if _, err := f.svc.DrawWinner(ctx, g.ID); err == nil {
		t.Fatal("expected error when the draw cannot be recorded")
	}
	f.store.SetFailSaves(false)

	for _, u := range []string{"alice", "bob"} {
		if !f.balance(t, u).IsZero() {
			t.Errorf("%s wallet = %s, want 0 after prize reversal", u, f.balance(t, u))
		}
	}
	after := f.load(t, g.ID)
	assertInvariants(t, after)
	if after.CurrentCycle != 1 || len(after.PaidMembers()) != 2 {
		t.Errorf("failed draw mutated group: cycle=%d paid=%d", after.CurrentCycle, len(after.PaidMembers()))
	}
	for _, m := range after.Members {
		if m.IsWinner {
			t.Errorf("%s marked winner after failed record", m.UserID)
		}
	}
	if cycles, _ := f.svc.ListCycles(ctx, g.ID); len(cycles) != 0 {
		t.Errorf("cycle recorded after failed draw: %+v", cycles)
	}

	cycle, err := f.svc.DrawWinner(ctx, g.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	cycles, err := f.svc.ListCycles(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("cycles = %d, want 1", len(cycles))
	}
	if got := f.balance(t, cycle.WinnerUserID); !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("winner wallet = %s, want 200", got)
	}

	var paidOut, chargedBack decimal.Decimal
	for _, tx := range f.ledger.Transactions() {
		switch {
		case tx.Kind == ledger.KindPayout:
			paidOut = paidOut.Add(tx.Amount)
		case tx.Kind == ledger.KindCharge && tx.Amount.Equal(decimal.NewFromInt(200)):
			chargedBack = chargedBack.Add(tx.Amount)
		}
	}
	if net := paidOut.Sub(chargedBack); !net.Equal(cycles[0].PrizeAmount) {
		t.Errorf("net prize paid = %s, want %s for one recorded cycle", net, cycles[0].PrizeAmount)
	}
}

func TestLeaveGroup_SettlesRotation(t *testing.T) {
	tests := []struct {
		name         string
		policy       CompletionPolicy
		wantStatus   models.GroupStatus
		wantRotation int
	}{
		{"never", CompleteNever, models.GroupStatusActive, 2},
		{"after rotation", CompleteAfterRotation, models.GroupStatusCompleted, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WithCompletionPolicy(tt.policy))
			ctx := context.Background()
			g := f.lotteryGroup(t, 3, "bob", "carol")
			f.fund(t, 1000, "alice", "bob", "carol")
			f.rand.vals = []int{0}

			for _, want := range []string{"alice", "bob"} {
				f.pay(t, g.ID, "alice", "bob", "carol")
				cycle, err := f.svc.DrawWinner(ctx, g.ID)
				if err != nil {
					t.Fatalf("DrawWinner failed: %v", err)
				}
				if cycle.WinnerUserID != want {
					t.Fatalf("winner = %s, want %s", cycle.WinnerUserID, want)
				}
			}

			if err := f.svc.LeaveGroup(ctx, g.ID, "carol"); err != nil {
				t.Fatalf("LeaveGroup failed: %v", err)
			}
			got := f.load(t, g.ID)
			assertInvariants(t, got)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.Rotation != tt.wantRotation {
				t.Errorf("rotation = %d, want %d", got.Rotation, tt.wantRotation)
			}
		})
	}
}

func TestJoinGroup_RejoinKeepsWinnerFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 3, "bob", "carol")
	f.fund(t, 1000, "alice", "bob", "carol")

	g.Member("carol").Role = models.MemberRoleAdmin
	if err := f.store.SaveGroup(ctx, g); err != nil {
		t.Fatalf("SaveGroup failed: %v", err)
	}

	f.rand.vals = []int{2}
	f.pay(t, g.ID, "alice", "bob", "carol")
	cycle, err := f.svc.DrawWinner(ctx, g.ID)
	if err != nil {
		t.Fatalf("DrawWinner failed: %v", err)
	}
	if cycle.WinnerUserID != "carol" {
		t.Fatalf("winner = %s, want carol", cycle.WinnerUserID)
	}

	if err := f.svc.LeaveGroup(ctx, g.ID, "carol"); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}
	m, err := f.svc.JoinGroup(ctx, g.ID, "carol")
	if err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	if m.Role != models.MemberRoleMember {
		t.Errorf("role = %s, want member", m.Role)
	}
	if !m.IsWinner {
		t.Error("rejoined member lost the winner flag for the current rotation")
	}
	if m.Position == nil || *m.Position != 3 {
		t.Errorf("position = %v, want 3", m.Position)
	}

	f.pay(t, g.ID, "alice", "bob", "carol")
	for _, e := range EligibleForDraw(f.load(t, g.ID)) {
		if e.UserID == "carol" {
			t.Error("carol is eligible again in the same rotation")
		}
	}
}

func TestCanDraw_OrderMethod(t *testing.T) {
	f := newFixture(t)
	g := f.groupWith(t, models.PayoutOrder, 2, "bob")
	f.fund(t, 100, "alice", "bob")
	f.pay(t, g.ID, "alice", "bob")

	g = f.load(t, g.ID)
	if CanDraw(g) {
		t.Error("CanDraw = true for an order-based group")
	}
	if _, err := f.svc.DrawWinner(context.Background(), g.ID); !errors.Is(err, ErrNotEligibleForDraw) {
		t.Errorf("error = %v, want ErrNotEligibleForDraw", err)
	}
	if p := g.Member("bob").Position; p == nil || *p != 2 {
		t.Errorf("bob position = %v, want 2", p)
	}
}

func TestAdvanceCycle(t *testing.T) {
	g := &models.Group{
		ContributionAmount: hundred,
		CurrentCycle:       4,
		TotalPool:          decimal.NewFromInt(200),
		Members: []models.Member{
			{UserID: "a", Status: models.MemberStatusActive, Paid: true, IsWinner: true},
			{UserID: "b", Status: models.MemberStatusActive, Paid: true},
			{UserID: "c", Status: models.MemberStatusPending},
		},
	}

	AdvanceCycle(g)

	if g.CurrentCycle != 5 {
		t.Errorf("cycle = %d, want 5", g.CurrentCycle)
	}
	if !g.TotalPool.IsZero() {
		t.Errorf("pool = %s, want 0", g.TotalPool)
	}
	for _, m := range g.Members {
		if m.Paid {
			t.Errorf("%s still paid", m.UserID)
		}
	}
	if !g.Members[0].IsWinner {
		t.Error("AdvanceCycle must keep winner bookkeeping")
	}
	if len(g.Members) != 3 {
		t.Error("AdvanceCycle must not change membership")
	}
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 3, "bob")

	if _, err := f.svc.SetStatus(ctx, g.ID, "bob", models.GroupStatusPaused); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("member pause error = %v, want ErrNotAuthorized", err)
	}
	if _, err := f.svc.SetStatus(ctx, g.ID, "alice", models.GroupStatusActive); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("active->active error = %v, want ErrInvalidTransition", err)
	}

	got, err := f.svc.SetStatus(ctx, g.ID, "alice", models.GroupStatusPaused)
	if err != nil || got.Status != models.GroupStatusPaused {
		t.Fatalf("pause = %v, %v", got, err)
	}
	got, err = f.svc.SetStatus(ctx, g.ID, "alice", models.GroupStatusActive)
	if err != nil || got.Status != models.GroupStatusActive {
		t.Fatalf("resume = %v, %v", got, err)
	}

	f.fund(t, 100, "bob")
	f.pay(t, g.ID, "bob")
	if _, err := f.svc.SetStatus(ctx, g.ID, "alice", models.GroupStatusCancelled); !errors.Is(err, ErrContributionLocked) {
		t.Errorf("cancel with funded pool error = %v, want ErrContributionLocked", err)
	}
}

func TestDrawWinner_ConcurrentCallsProduceOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.lotteryGroup(t, 3, "bob", "carol")
	f.fund(t, 100, "alice", "bob", "carol")
	f.pay(t, g.ID, "alice", "bob", "carol")

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.DrawWinner(ctx, g.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNotEligibleForDraw):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("successful draws = %d, want 1", wins)
	}
	cycles, _ := f.svc.ListCycles(ctx, g.ID)
	if len(cycles) != 1 {
		t.Errorf("cycle records = %d, want 1", len(cycles))
	}
	if n := len(f.ledger.Transactions()); n != 3+3+1 {
		t.Errorf("ledger transactions = %d, want 7 (3 deposits, 3 charges, 1 payout)", n)
	}
}

func TestRecordContribution_ConcurrentMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	members := []string{"bob", "carol", "dave", "erin", "frank"}
	g := f.lotteryGroup(t, 6, members...)
	f.fund(t, 100, append(members, "alice")...)

	var wg sync.WaitGroup
	for _, u := range append(members, "alice") {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			// Two attempts per member: exactly one must succeed.
			_, err1 := f.svc.RecordContribution(ctx, g.ID, u, hundred)
			_, err2 := f.svc.RecordContribution(ctx, g.ID, u, hundred)
			if err1 != nil || !errors.Is(err2, ErrAlreadyPaid) {
				t.Errorf("%s: first=%v second=%v", u, err1, err2)
			}
		}(u)
	}
	wg.Wait()

	got := f.load(t, g.ID)
	assertInvariants(t, got)
	if !got.TotalPool.Equal(decimal.NewFromInt(600)) {
		t.Errorf("pool = %s, want 600", got.TotalPool)
	}
	if !CanDraw(got) {
		t.Error("expected group to be drawable once everyone paid")
	}
}

func TestParseCompletionPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    CompletionPolicy
		wantErr bool
	}{
		{"", CompleteNever, false},
		{"never", CompleteNever, false},
		{"AFTER_ROTATION", CompleteAfterRotation, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCompletionPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCompletionPolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}
