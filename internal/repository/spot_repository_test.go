package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	occupySQL   = "UPDATE parking_spots SET status = 'O' WHERE id = ? AND status = 'A'"
	releaseSQL  = "UPDATE parking_spots SET status = 'A' WHERE id = ? AND status = 'O'"
	lockSpotSQL = "SELECT status FROM parking_spots WHERE id = ? FOR UPDATE"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func TestTrySetOccupied(t *testing.T) {
	ctx := context.Background()

	t.Run("available spot flips", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(occupySQL)).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.InTx(ctx, func(tx Tx) error { return tx.Spots().TrySetOccupied(ctx, 7) })
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("occupied spot is rejected", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(occupySQL)).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(lockSpotSQL)).WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("O"))
		mock.ExpectRollback()

		err := store.InTx(ctx, func(tx Tx) error { return tx.Spots().TrySetOccupied(ctx, 7) })
		assert.ErrorIs(t, err, ErrSpotOccupied)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing spot", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(occupySQL)).WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(lockSpotSQL)).WithArgs(9).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		err := store.InTx(ctx, func(tx Tx) error { return tx.Spots().TrySetOccupied(ctx, 9) })
		assert.ErrorIs(t, err, ErrSpotNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSetAvailableReportsInconsistency(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(releaseSQL)).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(lockSpotSQL)).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("A"))
	mock.ExpectRollback()

	err := store.InTx(ctx, func(tx Tx) error { return tx.Spots().SetAvailable(ctx, 3) })
	assert.ErrorIs(t, err, ErrInconsistent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnCallbackError(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.InTx(ctx, func(tx Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAvailableUnknownLot(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(s.id)")).WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"n"}))

	_, err := store.CountAvailable(context.Background(), 4)
	assert.ErrorIs(t, err, ErrLotNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSpotRefusesOccupied(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT lot_id, status FROM parking_spots WHERE id = ? FOR UPDATE")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"lot_id", "status"}).AddRow(1, "O"))
	mock.ExpectRollback()

	err := store.DeleteSpot(context.Background(), 5)
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
