package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/internal/core"
	"ledger/internal/gateway"
	"ledger/internal/gateway/gatewaytest"
)

func TestSQLiteConformance(t *testing.T) {
	suite.Run(t, &gatewaytest.Suite{New: func() gateway.Gateway {
		return New(filepath.Join(t.TempDir(), "ledger.db"), nil)
	}})
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	s := New(path, nil)
	require.NoError(t, s.Init(ctx))
	id, err := s.Insert(ctx, gateway.TableUsers, gateway.Record{"email": "a@example.com", "password_hash": "h"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = New(path, nil)
	require.NoError(t, s.Init(ctx))
	defer s.Close()
	rec, err := s.QueryOne(ctx, gateway.TableUsers, gateway.ByID(id))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a@example.com", rec.String("email"))
}

func TestClassify(t *testing.T) {
	err := classify("insert users", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"))
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	err = classify("insert expenses", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"))
	assert.ErrorIs(t, err, core.ErrForeignKey)

	cause := errors.New("disk I/O error")
	err = classify("insert users", cause)
	assert.True(t, core.IsBackendFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "disk I/O")
}
