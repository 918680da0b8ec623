package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactor_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	err = NewTransactor(mock).WithinTransaction(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "SELECT 1")
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackAndReturnsErrorUnchanged(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sentinel := errors.New("insufficient")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = NewTransactor(mock).WithinTransaction(context.Background(), func(pgx.Tx) error {
		return sentinel
	})
	assert.Same(t, sentinel, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err = NewTransactor(mock).WithinTransaction(context.Background(), func(pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorContains(t, err, "begin transaction")
}

func TestTransactor_HealthCheck_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	h := NewHealthCheck(mock)
	assert.NoError(t, h.Ping(context.Background()))
	assert.Equal(t, "postgresql", h.Name())
}
