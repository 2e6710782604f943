package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/funnelbot/internal/funnel"
)

var columns = []string{
	"user_id", "username", "first_name", "last_name", "added_at", "status", "subscribed",
	"contact_provided", "contact_name", "contact_phone", "last_event_at", "warmup1_sent", "warmup2_sent",
}

func setupPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgres(sqlx.NewDb(db, "postgres")), mock
}

func recordRow(r funnel.Record) *sqlmock.Rows {
	return sqlmock.NewRows(columns).AddRow(
		r.UserID, r.Username, r.FirstName, r.LastName, r.AddedAt, r.Status.String(), r.Subscribed,
		r.ContactProvided, r.ContactName, r.ContactPhone, r.LastEventAt, r.Warmup1Sent, r.Warmup2Sent,
	)
}

func TestPostgresCreate(t *testing.T) {
	p, mock := setupPostgres(t)
	rec := funnel.NewRecord(42, funnel.Meta{Username: "ivan"}, base)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO funnel_users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := p.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, created)

	mock.ExpectExec("ON CONFLICT \\(user_id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = p.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPostgresCreateRejectsInvalidRecord(t *testing.T) {
	p, _ := setupPostgres(t)
	_, err := p.Create(context.Background(), funnel.Record{UserID: 1})
	assert.ErrorIs(t, err, funnel.ErrInvariant)
}

func TestPostgresGet(t *testing.T) {
	p, mock := setupPostgres(t)
	rec := offerSent(42, base.Add(time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM funnel_users WHERE user_id = \\$1").
		WithArgs(int64(42)).
		WillReturnRows(recordRow(rec))
	got, err := p.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	mock.ExpectQuery("SELECT (.+) FROM funnel_users").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)
	_, err = p.Get(context.Background(), 7)
	assert.ErrorIs(t, err, funnel.ErrNotFound)
}

func TestPostgresUpdateCommits(t *testing.T) {
	p, mock := setupPostgres(t)
	rec := offerSent(42, base.Add(time.Hour))
	now := base.Add(3 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(recordRow(rec))
	mock.ExpectExec("UPDATE funnel_users SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := p.Update(context.Background(), 42, func(r *funnel.Record) error {
		r.Warmup1Sent = true
		r.LastEventAt = now
		return nil
	})
	require.NoError(t, err)
	assert.True(t, next.Warmup1Sent)
	assert.Equal(t, now, next.LastEventAt)
}

func TestPostgresUpdateRollsBackOnInvariant(t *testing.T) {
	p, mock := setupPostgres(t)
	rec := funnel.NewRecord(42, funnel.Meta{}, base)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(recordRow(rec))
	mock.ExpectRollback()

	_, err := p.Update(context.Background(), 42, func(r *funnel.Record) error {
		r.Warmup1Sent = true
		return nil
	})
	assert.ErrorIs(t, err, funnel.ErrInvariant)
}

func TestPostgresUpdateMissing(t *testing.T) {
	p, mock := setupPostgres(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := p.Update(context.Background(), 42, func(*funnel.Record) error { return nil })
	assert.ErrorIs(t, err, funnel.ErrNotFound)
}

func TestPostgresDueForWarmup(t *testing.T) {
	p, mock := setupPostgres(t)
	cutoff := base.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT user_id FROM funnel_users(.+)warmup2_sent = FALSE AND last_event_at <= \\$2").
		WithArgs("offer_sent", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(3)).AddRow(int64(1)))

	ids, err := p.DueForWarmup(context.Background(), funnel.StageWarmup2, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids)

	_, err = p.DueForWarmup(context.Background(), funnel.Stage(9), cutoff)
	assert.Error(t, err)
}

func TestPostgresRecipients(t *testing.T) {
	p, mock := setupPostgres(t)

	mock.ExpectQuery("SELECT user_id FROM funnel_users WHERE contact_provided = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(5)))

	ids, err := p.Recipients(context.Background(), AudienceWithoutContact)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)
}

func TestPostgresStats(t *testing.T) {
	p, mock := setupPostgres(t)

	mock.ExpectQuery("SELECT status, contact_provided, subscribed, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "contact_provided", "subscribed", "n"}).
			AddRow("offer_sent", false, true, 3).
			AddRow("contact_provided", true, true, 1).
			AddRow("exhausted", false, false, 2))

	st, err := p.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, st.Total)
	assert.Equal(t, 1, st.WithContact)
	assert.Equal(t, 5, st.WithoutContact)
	assert.Equal(t, 4, st.Subscribed)
	assert.Equal(t, 2, st.ByStatus[funnel.StatusExhausted])
}

func TestPostgresRemove(t *testing.T) {
	p, mock := setupPostgres(t)
	mock.ExpectExec("DELETE FROM funnel_users WHERE user_id = \\$1").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.Remove(context.Background(), 42))
}
