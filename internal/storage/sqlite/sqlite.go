// Package sqlite provides a SQLite-backed implementation of the storage.Store
// interface and of a wallet ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/kiumaa/kixikila-sub001/internal/models"
	"github.com/kiumaa/kixikila-sub001/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGroup persists a new group with its members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate ID if not set
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, owner_id, name, description, contribution_amount, contribution_frequency,
		   max_members, payout_method, status, is_private, requires_approval, current_members,
		   current_cycle, total_pool, rotation, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.OwnerID, group.Name, group.Description, group.ContributionAmount,
		string(group.ContributionFrequency), group.MaxMembers, string(group.PayoutMethod),
		string(group.Status), group.IsPrivate, group.RequiresApproval, group.CurrentMembers,
		group.CurrentCycle, group.TotalPool, group.Rotation,
		group.CreatedAt.UnixMilli(), group.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := upsertMembers(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadGroup retrieves a group with all of its members.
func (s *SQLiteStore) LoadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return loadGroup(ctx, s.db, groupID)
}

// SaveGroup overwrites the group's mutable columns and upserts its members.
func (s *SQLiteStore) SaveGroup(ctx context.Context, group *models.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveGroup(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendCycle adds a cycle record to the group's history.
func (s *SQLiteStore) AppendCycle(ctx context.Context, groupID string, cycle *models.Cycle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendCycle(ctx, tx, groupID, cycle); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecordDraw appends the cycle and saves the group in a single transaction.
func (s *SQLiteStore) RecordDraw(ctx context.Context, group *models.Group, cycle *models.Cycle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendCycle(ctx, tx, group.ID, cycle); err != nil {
		return err
	}
	if err := saveGroup(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListGroups returns all groups, newest first.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM groups ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	// Rows are closed before loading: the pool holds a single connection.
	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		g, err := loadGroup(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// ListCycles returns the group's cycle history ordered by cycle number.
func (s *SQLiteStore) ListCycles(ctx context.Context, groupID string) ([]*models.Cycle, error) {
	if err := groupExists(ctx, s.db, groupID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_number, winner_user_id, prize_amount, draw_date, payout_tx_id
		 FROM cycles WHERE group_id = ? ORDER BY cycle_number`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}

	var cycles []*models.Cycle
	byNumber := make(map[int]*models.Cycle)
	for rows.Next() {
		c := &models.Cycle{GroupID: groupID}
		var drawDate int64
		if err := rows.Scan(&c.CycleNumber, &c.WinnerUserID, &c.PrizeAmount, &drawDate, &c.PayoutTxID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.DrawDate = time.UnixMilli(drawDate).UTC()
		cycles = append(cycles, c)
		byNumber[c.CycleNumber] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycles: %w", err)
	}

	prows, err := s.db.QueryContext(ctx,
		`SELECT cycle_number, user_id FROM cycle_participants
		 WHERE group_id = ? ORDER BY cycle_number, ordinal`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle participants: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var number int
		var userID string
		if err := prows.Scan(&number, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan cycle participant: %w", err)
		}
		if c, ok := byNumber[number]; ok {
			c.Participants = append(c.Participants, userID)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycle participants: %w", err)
	}

	return cycles, nil
}

func loadGroup(ctx context.Context, q queryer, groupID string) (*models.Group, error) {
	g := &models.Group{}
	var frequency, method, status string
	var createdAt, updatedAt int64
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, contribution_amount, contribution_frequency,
		   max_members, payout_method, status, is_private, requires_approval, current_members,
		   current_cycle, total_pool, rotation, created_at, updated_at
		 FROM groups WHERE id = ?`,
		groupID,
	).Scan(&g.ID, &g.OwnerID, &g.Name, &g.Description, &g.ContributionAmount, &frequency,
		&g.MaxMembers, &method, &status, &g.IsPrivate, &g.RequiresApproval, &g.CurrentMembers,
		&g.CurrentCycle, &g.TotalPool, &g.Rotation, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	g.ContributionFrequency = models.Frequency(frequency)
	g.PayoutMethod = models.PayoutMethod(method)
	g.Status = models.GroupStatus(status)
	g.CreatedAt = time.UnixMilli(createdAt).UTC()
	g.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	rows, err := q.QueryContext(ctx,
		`SELECT user_id, role, status, paid, position, is_winner, total_contributed, current_balance, joined_at
		 FROM group_members WHERE group_id = ?
		 ORDER BY CASE WHEN position IS NULL THEN 1 ELSE 0 END, position, joined_at`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := models.Member{GroupID: groupID}
		var role, mstatus string
		var position sql.NullInt64
		var joinedAt int64
		if err := rows.Scan(&m.UserID, &role, &mstatus, &m.Paid, &position, &m.IsWinner,
			&m.TotalContributed, &m.CurrentBalance, &joinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = models.MemberRole(role)
		m.Status = models.MemberStatus(mstatus)
		if position.Valid {
			p := int(position.Int64)
			m.Position = &p
		}
		m.JoinedAt = time.UnixMilli(joinedAt).UTC()
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return g, nil
}

func saveGroup(ctx context.Context, q queryer, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	res, err := q.ExecContext(ctx,
		`UPDATE groups SET name = ?, description = ?, status = ?, is_private = ?, requires_approval = ?,
		   current_members = ?, current_cycle = ?, total_pool = ?, rotation = ?, updated_at = ?
		 WHERE id = ?`,
		group.Name, group.Description, string(group.Status), group.IsPrivate, group.RequiresApproval,
		group.CurrentMembers, group.CurrentCycle, group.TotalPool, group.Rotation,
		group.UpdatedAt.UnixMilli(), group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
	}
	return upsertMembers(ctx, q, group)
}

func upsertMembers(ctx context.Context, q queryer, group *models.Group) error {
	for _, m := range group.Members {
		var position any
		if m.Position != nil {
			position = *m.Position
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, role, status, paid, position, is_winner,
			   total_contributed, current_balance, joined_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (group_id, user_id) DO UPDATE SET
			   role = excluded.role,
			   status = excluded.status,
			   paid = excluded.paid,
			   position = excluded.position,
			   is_winner = excluded.is_winner,
			   total_contributed = excluded.total_contributed,
			   current_balance = excluded.current_balance,
			   joined_at = excluded.joined_at`,
			group.ID, m.UserID, string(m.Role), string(m.Status), m.Paid, position, m.IsWinner,
			m.TotalContributed, m.CurrentBalance, m.JoinedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert member %s: %w", m.UserID, err)
		}
	}
	return nil
}

func appendCycle(ctx context.Context, q queryer, groupID string, cycle *models.Cycle) error {
	if err := groupExists(ctx, q, groupID); err != nil {
		return err
	}

	var exists int
	err := q.QueryRowContext(ctx,
		"SELECT 1 FROM cycles WHERE group_id = ? AND cycle_number = ?",
		groupID, cycle.CycleNumber,
	).Scan(&exists)
	if err == nil {
		return fmt.Errorf("cycle %d: %w", cycle.CycleNumber, storage.ErrCycleExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check cycle existence: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO cycles (group_id, cycle_number, winner_user_id, prize_amount, draw_date, payout_tx_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		groupID, cycle.CycleNumber, cycle.WinnerUserID, cycle.PrizeAmount,
		cycle.DrawDate.UnixMilli(), cycle.PayoutTxID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}

	for i, userID := range cycle.Participants {
		_, err = q.ExecContext(ctx,
			"INSERT INTO cycle_participants (group_id, cycle_number, ordinal, user_id) VALUES (?, ?, ?, ?)",
			groupID, cycle.CycleNumber, i, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cycle participant: %w", err)
		}
	}
	return nil
}

func groupExists(ctx context.Context, q queryer, groupID string) error {
	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check group existence: %w", err)
	}
	return nil
}
