package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenRepo(t *testing.T) (*TokenRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	r := NewTokenRepo(db)
	r.now = func() time.Time { return fixedTime }
	return r, mock
}

func TestValidateRefresh(t *testing.T) {
	r, mock := newTokenRepo(t)
	q := regexp.QuoteMeta("SELECT user_id FROM refresh_tokens")
	mock.ExpectQuery(q).WithArgs("live", fixedTime).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7))
	mock.ExpectQuery(q).WithArgs("dead", fixedTime).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	id, err := r.ValidateRefresh(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	_, err = r.ValidateRefresh(context.Background(), "dead")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAndPurge(t *testing.T) {
	r, mock := newTokenRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL")).
		WithArgs(fixedTime, 7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	cutoff := fixedTime.Add(-24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WithArgs(cutoff, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))

	require.NoError(t, r.RevokeAllForUser(context.Background(), 7))
	n, err := r.PurgeExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
