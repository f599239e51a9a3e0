// Package postgres implements storage.Store and a wallet ledger on
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kiumaa/kixikila-sub001/internal/models"
	"github.com/kiumaa/kixikila-sub001/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create DB pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	return pool, nil
}

// Store keeps groups, users and wallets in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool. The schema must already exist (see Migrate).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	for i := range group.Members {
		group.Members[i].GroupID = group.ID
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO groups (
				id, owner_id, name, description, contribution_amount, contribution_frequency,
				max_members, payout_method, status, is_private, requires_approval, current_members,
				current_cycle, total_pool, rotation, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5::text::numeric, $6,
				$7, $8, $9, $10, $11, $12,
				$13, $14::text::numeric, $15, $16, $17
			)
		`,
			group.ID, group.OwnerID, group.Name, group.Description, group.ContributionAmount.String(),
			string(group.ContributionFrequency), group.MaxMembers, string(group.PayoutMethod),
			string(group.Status), group.IsPrivate, group.RequiresApproval, group.CurrentMembers,
			group.CurrentCycle, group.TotalPool.String(), group.Rotation, group.CreatedAt, group.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		return upsertMembers(ctx, tx, group)
	})
}

func (s *Store) LoadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return loadGroup(ctx, s.pool, groupID)
}

func (s *Store) SaveGroup(ctx context.Context, group *models.Group) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return saveGroup(ctx, tx, group)
	})
}

func (s *Store) AppendCycle(ctx context.Context, groupID string, cycle *models.Cycle) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return appendCycle(ctx, tx, groupID, cycle)
	})
}

func (s *Store) RecordDraw(ctx context.Context, group *models.Group, cycle *models.Cycle) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := appendCycle(ctx, tx, group.ID, cycle); err != nil {
			return err
		}
		return saveGroup(ctx, tx, group)
	})
}

func (s *Store) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM groups ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan group ids: %w", err)
	}

	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		g, err := loadGroup(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *Store) ListCycles(ctx context.Context, groupID string) ([]*models.Cycle, error) {
	if err := groupExists(ctx, s.pool, groupID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT cycle_number, winner_user_id, prize_amount::text, draw_date, participants, payout_tx_id
		FROM cycles
		WHERE group_id = $1
		ORDER BY cycle_number
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*models.Cycle
	for rows.Next() {
		c := &models.Cycle{GroupID: groupID}
		var prize string
		if err := rows.Scan(&c.CycleNumber, &c.WinnerUserID, &prize, &c.DrawDate, &c.Participants, &c.PayoutTxID); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if c.PrizeAmount, err = decimal.NewFromString(prize); err != nil {
			return nil, fmt.Errorf("parse prize amount: %w", err)
		}
		c.DrawDate = c.DrawDate.UTC()
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

func loadGroup(ctx context.Context, q querier, groupID string) (*models.Group, error) {
	g := &models.Group{}
	var contribution, pool, frequency, method, status string
	err := q.QueryRow(ctx, `
		SELECT id, owner_id, name, description, contribution_amount::text, contribution_frequency,
			max_members, payout_method, status, is_private, requires_approval, current_members,
			current_cycle, total_pool::text, rotation, created_at, updated_at
		FROM groups
		WHERE id = $1
	`, groupID).Scan(
		&g.ID, &g.OwnerID, &g.Name, &g.Description, &contribution, &frequency,
		&g.MaxMembers, &method, &status, &g.IsPrivate, &g.RequiresApproval, &g.CurrentMembers,
		&g.CurrentCycle, &pool, &g.Rotation, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g.ContributionAmount, err = decimal.NewFromString(contribution); err != nil {
		return nil, fmt.Errorf("parse contribution amount: %w", err)
	}
	if g.TotalPool, err = decimal.NewFromString(pool); err != nil {
		return nil, fmt.Errorf("parse total pool: %w", err)
	}
	g.ContributionFrequency = models.Frequency(frequency)
	g.PayoutMethod = models.PayoutMethod(method)
	g.Status = models.GroupStatus(status)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()

	rows, err := q.Query(ctx, `
		SELECT user_id, role, status, paid, position, is_winner,
			total_contributed::text, current_balance::text, joined_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY position NULLS LAST, joined_at
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := models.Member{GroupID: groupID}
		var role, mstatus, contributed, balance string
		if err := rows.Scan(&m.UserID, &role, &mstatus, &m.Paid, &m.Position, &m.IsWinner,
			&contributed, &balance, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = models.MemberRole(role)
		m.Status = models.MemberStatus(mstatus)
		if m.TotalContributed, err = decimal.NewFromString(contributed); err != nil {
			return nil, fmt.Errorf("parse total contributed: %w", err)
		}
		if m.CurrentBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse current balance: %w", err)
		}
		m.JoinedAt = m.JoinedAt.UTC()
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return g, nil
}

func saveGroup(ctx context.Context, q querier, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	tag, err := q.Exec(ctx, `
		UPDATE groups
		SET name = $2,
			description = $3,
			status = $4,
			is_private = $5,
			requires_approval = $6,
			current_members = $7,
			current_cycle = $8,
			total_pool = $9::text::numeric,
			rotation = $10,
			updated_at = $11
		WHERE id = $1
	`,
		group.ID, group.Name, group.Description, string(group.Status), group.IsPrivate,
		group.RequiresApproval, group.CurrentMembers, group.CurrentCycle, group.TotalPool.String(),
		group.Rotation, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
	}
	return upsertMembers(ctx, q, group)
}

func upsertMembers(ctx context.Context, q querier, group *models.Group) error {
	for _, m := range group.Members {
		_, err := q.Exec(ctx, `
			INSERT INTO group_members (
				group_id, user_id, role, status, paid, position, is_winner,
				total_contributed, current_balance, joined_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9::text::numeric, $10)
			ON CONFLICT (group_id, user_id) DO UPDATE
			SET role = EXCLUDED.role,
				status = EXCLUDED.status,
				paid = EXCLUDED.paid,
				position = EXCLUDED.position,
				is_winner = EXCLUDED.is_winner,
				total_contributed = EXCLUDED.total_contributed,
				current_balance = EXCLUDED.current_balance,
				joined_at = EXCLUDED.joined_at
		`,
			group.ID, m.UserID, string(m.Role), string(m.Status), m.Paid, m.Position, m.IsWinner,
			m.TotalContributed.String(), m.CurrentBalance.String(), m.JoinedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert member %s: %w", m.UserID, err)
		}
	}
	return nil
}

func appendCycle(ctx context.Context, q querier, groupID string, cycle *models.Cycle) error {
	if err := groupExists(ctx, q, groupID); err != nil {
		return err
	}
	participants := cycle.Participants
	if participants == nil {
		participants = []string{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO cycles (group_id, cycle_number, winner_user_id, prize_amount, draw_date, participants, payout_tx_id)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7)
	`,
		groupID, cycle.CycleNumber, cycle.WinnerUserID, cycle.PrizeAmount.String(),
		cycle.DrawDate, participants, cycle.PayoutTxID,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("cycle %d: %w", cycle.CycleNumber, storage.ErrCycleExists)
	}
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

func groupExists(ctx context.Context, q querier, groupID string) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, groupID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check group existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}
