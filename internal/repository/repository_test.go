package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

func TestApplyPaginationDefaults(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"zero limit gets default", 0, 0, defaultFilterLimit, 0},
		{"limit is clamped", maxFilterLimit + 1, 5, maxFilterLimit, 5},
		{"negative offset is reset", 10, -1, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := tt.limit, tt.offset
			applyPaginationDefaults(&limit, &offset)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestPgErrorHelpers(t *testing.T) {
	assert.True(t, isPgUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isPgUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isPgForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isPgUniqueViolation(errors.New("plain")))

	code, constraint := pgErrorCode(&pgconn.PgError{Code: "23505", ConstraintName: constraintOneInFlight})
	assert.Equal(t, pgUniqueViolation, code)
	assert.Equal(t, constraintOneInFlight, constraint)
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	require.NotNil(t, nullString("x"))
	assert.Equal(t, "x", derefString(nullString("x")))
	assert.Equal(t, "", derefString(nil))
}

func TestPgTransactor_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		item := domain.NewWorkflowItem(uuid.New(), domain.RoleHOD)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO workflow_items").
			WithArgs(anyArgs(8)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err = NewPgTransactor(mock).WithinTx(ctx, func(repos Repositories) error {
			return repos.WorkflowItems.Create(ctx, item)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		sentinel := errors.New("stop")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err = NewPgTransactor(mock).WithinTx(ctx, func(Repositories) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is wrapped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		err = NewPgTransactor(mock).WithinTx(ctx, func(Repositories) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin transaction")
	})
}
