package pg

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

const testID = "8f6b3c1e-2a4d-4c5e-9f01-23456789abcd"

func newConnWithMock(t *testing.T) (*Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewConnection(db), mock
}

func exact(q string) string { return "^" + regexp.QuoteMeta(q) + "$" }

func TestUserCreate_Success(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectQuery(exact(qInsertUser)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testID))

	u, err := c.Users().Create(context.Background(), repository.CreateUserInput{Username: "ana", PasswordHash: "h"})
	require.NoError(t, err)
	require.Equal(t, testID, u.ID)
	require.Equal(t, "ana", u.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate_UniqueViolation(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectQuery(exact(qInsertUser)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := c.Users().Create(context.Background(), repository.CreateUserInput{Username: "ana"})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestUserGetByUsername(t *testing.T) {
	c, mock := newConnWithMock(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(exact(qUserByUsername)).
		WithArgs("Ana").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc", "created_at"}).
			AddRow(testID, []byte(`{"username":"ana","passwordHash":"h","gmailLinked":true}`), created))

	u, err := c.Users().GetByUsername(context.Background(), "Ana")
	require.NoError(t, err)
	require.Equal(t, testID, u.ID)
	require.True(t, u.GmailLinked)
	require.Equal(t, created, u.CreatedAt)
}

func TestUserGetByID_InvalidAndMissing(t *testing.T) {
	c, mock := newConnWithMock(t)

	_, err := c.Users().GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, repository.ErrNotFound)

	mock.ExpectQuery(exact(qUserByID)).WithArgs(testID).WillReturnError(sql.ErrNoRows)
	_, err = c.Users().GetByID(context.Background(), testID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserClearGmail_NotFound(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectExec(exact(qClearUserGmail)).WithArgs(testID).WillReturnResult(sqlmock.NewResult(0, 0))
	err := c.Users().ClearGmailCredential(context.Background(), testID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecipientsCreateMany_Transaction(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(exact(qInsertRecipient)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))
	mock.ExpectQuery(exact(qInsertRecipient)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := c.Recipients().CreateMany(context.Background(), []repository.CreateRecipientInput{
		{OwnerID: "o1", Email: "a@x.com"},
		{OwnerID: "o1", Email: "b@x.com"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientsListByOwner_WithList(t *testing.T) {
	c, mock := newConnWithMock(t)

	q := qRecipientsByOwner + ` AND doc->>'listId' = $2 ORDER BY created_at ASC, id ASC`
	mock.ExpectQuery(exact(q)).
		WithArgs("o1", "L1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc", "created_at"}).
			AddRow("r1", []byte(`{"ownerId":"o1","email":"a@x.com","listId":"L1"}`), time.Now()).
			AddRow("r2", []byte(`{"ownerId":"o1","email":"b@x.com","listId":"L1"}`), time.Now()))

	got, err := c.Recipients().ListByOwner(context.Background(), "o1", repository.RecipientFilter{ListID: "L1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "b@x.com", got[1].Email)
}

func TestEmailClaim_Success(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectQuery(exact(claimQuery(2))).
		WithArgs(testID, sqlmock.AnyArg(), "draft", "scheduled").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc", "created_at"}).
			AddRow(testID, []byte(`{"ownerId":"o1","subject":"s","status":"sending"}`), time.Now()))

	e, err := c.Emails().Claim(context.Background(), testID, repository.ClaimableStatuses)
	require.NoError(t, err)
	require.Equal(t, repository.EmailSending, e.Status)
}

func TestEmailClaim_Lost(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectQuery(exact(claimQuery(2))).
		WithArgs(testID, sqlmock.AnyArg(), "draft", "scheduled").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(exact(qEmailExists)).
		WithArgs(testID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := c.Emails().Claim(context.Background(), testID, repository.ClaimableStatuses)
	require.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailClaim_Missing(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectQuery(exact(claimQuery(2))).
		WithArgs(testID, sqlmock.AnyArg(), "draft", "scheduled").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(exact(qEmailExists)).
		WithArgs(testID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := c.Emails().Claim(context.Background(), testID, repository.ClaimableStatuses)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEmailListByOwner_StatusFilter(t *testing.T) {
	c, mock := newConnWithMock(t)

	q := qEmailsByOwner + ` AND doc->>'status' = $2 ORDER BY created_at DESC`
	mock.ExpectQuery(exact(q)).
		WithArgs("o1", "scheduled").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc", "created_at"}).
			AddRow(testID, []byte(`{"ownerId":"o1","status":"scheduled","scheduledFor":"2026-01-01T10:00"}`), time.Now()))

	got, err := c.Emails().ListByOwner(context.Background(), "o1", repository.EmailFilter{Status: repository.EmailScheduled})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "2026-01-01T10:00", got[0].ScheduledFor)
}

func TestEmailUpdateStatus(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectExec(exact(qPatchEmail)).
		WithArgs(testID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent := time.Now()
	err := c.Emails().UpdateStatus(context.Background(), testID, repository.StatusUpdate{
		Status: repository.EmailSent,
		SentAt: &sent,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotFound(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectExec(exact(qDeleteList)).WithArgs(testID).WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, c.Lists().Delete(context.Background(), testID), repository.ErrNotFound)
}

func TestClaimQuery(t *testing.T) {
	require.Equal(t,
		`UPDATE emails SET doc = doc || $2::jsonb WHERE id = $1 AND doc->>'status' IN ($3, $4) RETURNING id, doc, created_at`,
		claimQuery(2))
}

func TestEmailReschedule_Guarded(t *testing.T) {
	c, mock := newConnWithMock(t)

	mock.ExpectExec(exact(rescheduleQuery(3))).
		WithArgs(testID, sqlmock.AnyArg(), nil, "draft", "scheduled", "failed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.Emails().Reschedule(context.Background(), testID, "2027-01-01T00:00",
		repository.Guard{From: repository.ReschedulableStatuses})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailReschedule_SendingIsRejected(t *testing.T) {
	c, mock := newConnWithMock(t)

	// el email ya fue reclamado: el UPDATE no matchea pero la fila existe
	mock.ExpectExec(exact(rescheduleQuery(3))).
		WithArgs(testID, sqlmock.AnyArg(), nil, "draft", "scheduled", "failed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(exact(qEmailExists)).
		WithArgs(testID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := c.Emails().Reschedule(context.Background(), testID, "2027-01-01T00:00",
		repository.Guard{From: repository.ReschedulableStatuses})
	require.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailReschedule_StaleCutoffIsPassed(t *testing.T) {
	c, mock := newConnWithMock(t)
	cutoff := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(exact(rescheduleQuery(1))).
		WithArgs(testID, sqlmock.AnyArg(), cutoff, "failed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.Emails().Reschedule(context.Background(), testID, "2027-01-01T00:00",
		repository.Guard{From: []repository.EmailStatus{repository.EmailFailed}, StaleBefore: cutoff})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleQuery(t *testing.T) {
	require.Equal(t,
		`UPDATE emails SET doc = (doc - 'lastError') || $2::jsonb WHERE id = $1 AND (doc->>'status' IN ($4, $5)`+
			` OR (doc->>'status' = 'sending' AND $3::timestamptz IS NOT NULL AND (doc->>'updatedAt')::timestamptz < $3::timestamptz))`,
		rescheduleQuery(2))
}
