package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
)

func TestAppendAndClose(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	parked := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations (spot_id, user_id, vehicle_number, parked_at)")).
		WithArgs(2, 11, "KA01AB1234", parked).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	r := model.Reservation{SpotID: 2, UserID: 11, VehicleNumber: "KA01AB1234", ParkedAt: parked}
	err := store.InTx(ctx, func(tx Tx) error { return tx.Ledger().Append(ctx, &r) })
	require.NoError(t, err)
	assert.Equal(t, uint64(42), r.ID)
	assert.True(t, r.IsOpen())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET left_at = ?, cost_cents = ? WHERE id = ? AND left_at IS NULL")).
		WithArgs(sqlmock.AnyArg(), 40, 42).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = store.InTx(ctx, func(tx Tx) error { return tx.Ledger().Close(ctx, 42, parked.Add(time.Hour), 40) })
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdateMissing(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ? FOR UPDATE")).WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id", "spot_id", "user_id", "vehicle_number", "parked_at", "left_at", "cost_cents"}))
	mock.ExpectRollback()

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.Ledger().GetForUpdate(ctx, 8)
		return err
	})
	assert.ErrorIs(t, err, ErrReservationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSessionsBuildsFilter(t *testing.T) {
	store, mock := newMockStore(t)
	since := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	parked := since.Add(26 * time.Hour)
	left := parked.Add(90 * time.Minute)

	cols := []string{"id", "spot_id", "user_id", "vehicle_number", "parked_at", "left_at", "cost_cents",
		"lot_id", "name", "address", "price_cents"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.user_id = ? AND r.parked_at >= ? ORDER BY r.parked_at, r.id")).
		WithArgs(11, since).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 2, 11, "KA01", parked, left, 30, 5, "Central", "MG Road", 15).
			AddRow(2, 3, 11, "KA01", parked.Add(time.Hour), nil, nil, 5, "Central", "MG Road", 15))

	got, err := store.ListSessions(context.Background(), model.SessionFilter{UserID: 11, Since: &since})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Central", got[0].LotName)
	require.NotNil(t, got[0].CostCents)
	assert.Equal(t, int64(30), *got[0].CostCents)
	assert.True(t, got[1].IsOpen())
	assert.Nil(t, got[1].CostCents)
	require.NoError(t, mock.ExpectationsWereMet())
}
