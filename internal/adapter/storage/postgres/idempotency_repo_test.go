package postgres

import (
	"context"
	"errors"
	"testing"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyLog() *domain.IdempotencyLog {
	return &domain.IdempotencyLog{
		Key:          "append:ops:key-1",
		RecordID:     uuid.New(),
		ResponseJSON: []byte(`{"record":{"kind":"TRANSFER"}}`),
		CreatedAt:    testNow,
	}
}

func TestIdempotencyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log := newIdempotencyLog()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_logs").
		WithArgs(log.Key, log.RecordID, log.ResponseJSON, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, NewIdempotencyRepo(mock).Create(context.Background(), tx, log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Create_KeyTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_logs").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "idempotency_logs_pkey"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = NewIdempotencyRepo(mock).Create(context.Background(), tx, newIdempotencyLog())
	assert.ErrorIs(t, err, ports.ErrIdempotencyConflict)
}

func TestIdempotencyRepo_Create_OtherFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_logs").WillReturnError(errors.New("connection reset"))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = NewIdempotencyRepo(mock).Create(context.Background(), tx, newIdempotencyLog())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrIdempotencyConflict)
	assert.ErrorContains(t, err, "insert idempotency log")
}

func TestIdempotencyRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := newIdempotencyLog()
	mock.ExpectQuery("SELECT key, record_id, response_json, created_at FROM idempotency_logs").
		WithArgs(want.Key).
		WillReturnRows(pgxmock.NewRows([]string{"key", "record_id", "response_json", "created_at"}).
			AddRow(want.Key, want.RecordID, want.ResponseJSON, want.CreatedAt))

	got, err := NewIdempotencyRepo(mock).Get(context.Background(), nil, want.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.RecordID, got.RecordID)
	assert.JSONEq(t, string(want.ResponseJSON), string(got.ResponseJSON))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_InTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM idempotency_logs").WithArgs("append:missing").
		WillReturnError(pgx.ErrNoRows)

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := NewIdempotencyRepo(mock).Get(context.Background(), tx, "append:missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
