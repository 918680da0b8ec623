package service

import (
	"context"
	"io"
	"testing"

	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTx is the pgx.Tx handed to unit-of-work closures in mock-driven tests.
// Begin returns another mockTx so savepoints work.
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error        { return nil }
func (m *mockTx) Commit(_ context.Context) error          { return nil }
func (m *mockTx) Begin(_ context.Context) (pgx.Tx, error) { return &mockTx{}, nil }

// runInTx is a DoAndReturn body for MockUnitOfWork.WithinTransaction.
func runInTx(_ context.Context, fn func(pgx.Tx) error) error {
	return fn(&mockTx{})
}

// counterValue sums every sample of the named metric family.
func counterValue(t *testing.T, mx *metrics.Collector, name string) float64 {
	t.Helper()
	families, err := mx.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}
