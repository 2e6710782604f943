package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/internal/funnel"
)

const component = "store"

const recordColumns = `user_id, username, first_name, last_name, added_at, status, subscribed,
	contact_provided, contact_name, contact_phone, last_event_at, warmup1_sent, warmup2_sent`

const (
	insertRecordSQL = `INSERT INTO funnel_users (` + recordColumns + `)
VALUES (:user_id, :username, :first_name, :last_name, :added_at, :status, :subscribed,
	:contact_provided, :contact_name, :contact_phone, :last_event_at, :warmup1_sent, :warmup2_sent)
ON CONFLICT (user_id) DO NOTHING`

	selectRecordSQL = `SELECT ` + recordColumns + ` FROM funnel_users WHERE user_id = $1`

	updateRecordSQL = `UPDATE funnel_users SET
	username = :username,
	first_name = :first_name,
	last_name = :last_name,
	status = :status,
	subscribed = :subscribed,
	contact_provided = :contact_provided,
	contact_name = :contact_name,
	contact_phone = :contact_phone,
	last_event_at = :last_event_at,
	warmup1_sent = :warmup1_sent,
	warmup2_sent = :warmup2_sent
WHERE user_id = :user_id`

	deleteRecordSQL = `DELETE FROM funnel_users WHERE user_id = $1`

	statsSQL = `SELECT status, contact_provided, subscribed, COUNT(*) AS n
FROM funnel_users GROUP BY status, contact_provided, subscribed`
)

var warmupColumn = map[funnel.Stage]string{
	funnel.StageWarmup1: "warmup1_sent",
	funnel.StageWarmup2: "warmup2_sent",
}

var audienceWhere = map[Audience]string{
	AudienceAll:            "TRUE",
	AudienceWithContact:    "contact_provided = TRUE",
	AudienceWithoutContact: "contact_provided = FALSE",
	AudienceSubscribed:     "subscribed = TRUE",
}

// Postgres stores records in the funnel_users table.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) Create(ctx context.Context, rec funnel.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, fmt.Errorf("store: create %d: %w", rec.UserID, err)
	}
	res, err := p.db.NamedExecContext(ctx, insertRecordSQL, rec)
	if err != nil {
		return false, fmt.Errorf("store: create %d: %w", rec.UserID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: create %d rows affected: %w", rec.UserID, err)
	}
	return n == 1, nil
}

func (p *Postgres) Get(ctx context.Context, userID int64) (funnel.Record, error) {
	var rec funnel.Record
	err := p.db.GetContext(ctx, &rec, selectRecordSQL, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return funnel.Record{}, funnel.ErrNotFound
	}
	if err != nil {
		return funnel.Record{}, fmt.Errorf("store: get %d: %w", userID, err)
	}
	return rec, nil
}

// Update locks the row for the duration of fn.
func (p *Postgres) Update(ctx context.Context, userID int64, fn func(*funnel.Record) error) (funnel.Record, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return funnel.Record{}, fmt.Errorf("store: update %d begin: %w", userID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev funnel.Record
	err = tx.GetContext(ctx, &prev, selectRecordSQL+" FOR UPDATE", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return funnel.Record{}, funnel.ErrNotFound
	}
	if err != nil {
		return funnel.Record{}, fmt.Errorf("store: update %d select: %w", userID, err)
	}

	next := prev
	if err := fn(&next); err != nil {
		return prev, err
	}
	if err := funnel.ValidateTransition(prev, next); err != nil {
		logger.Warn(ctx, component, "update.rejected",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return prev, fmt.Errorf("store: update %d: %w", userID, err)
	}
	if _, err := tx.NamedExecContext(ctx, updateRecordSQL, next); err != nil {
		return prev, fmt.Errorf("store: update %d exec: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return prev, fmt.Errorf("store: update %d commit: %w", userID, err)
	}
	return next, nil
}

func (p *Postgres) Remove(ctx context.Context, userID int64) error {
	if _, err := p.db.ExecContext(ctx, deleteRecordSQL, userID); err != nil {
		return fmt.Errorf("store: remove %d: %w", userID, err)
	}
	return nil
}

func (p *Postgres) DueForWarmup(ctx context.Context, stage funnel.Stage, cutoff time.Time) ([]int64, error) {
	col, ok := warmupColumn[stage]
	if !ok {
		return nil, fmt.Errorf("store: unknown warm-up stage %d", stage)
	}
	query := `SELECT user_id FROM funnel_users
WHERE status = $1 AND contact_provided = FALSE AND subscribed = TRUE
	AND ` + col + ` = FALSE AND last_event_at <= $2
ORDER BY last_event_at, user_id`

	var ids []int64
	if err := p.db.SelectContext(ctx, &ids, query, funnel.StatusOfferSent, cutoff); err != nil {
		return nil, fmt.Errorf("store: due for %s: %w", stage, err)
	}
	return ids, nil
}

func (p *Postgres) Recipients(ctx context.Context, audience Audience) ([]int64, error) {
	where, ok := audienceWhere[audience]
	if !ok {
		return nil, fmt.Errorf("store: unknown audience %d", audience)
	}
	var ids []int64
	query := `SELECT user_id FROM funnel_users WHERE ` + where + ` ORDER BY user_id`
	if err := p.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("store: recipients %s: %w", audience, err)
	}
	return ids, nil
}

type statsRow struct {
	Status     funnel.Status `db:"status"`
	Contact    bool          `db:"contact_provided"`
	Subscribed bool          `db:"subscribed"`
	N          int           `db:"n"`
}

func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var rows []statsRow
	if err := p.db.SelectContext(ctx, &rows, statsSQL); err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	var st Stats
	for _, r := range rows {
		st.add(r.Status, r.Contact, r.Subscribed, r.N)
	}
	return st, nil
}
