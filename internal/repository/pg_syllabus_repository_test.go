package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

var syllabusRowColumns = []string{
	"id", "root_id", "version_no", "status", "content", "rejection_reason", "created_by",
	"created_at", "updated_at", "submitted_at", "reviewed_at", "approved_at", "rejected_at", "published_at",
}

func newTestSyllabus() *domain.SyllabusVersion {
	return domain.NewSyllabusVersion(uuid.Nil, 1, "lecturer-1", domain.SyllabusContent{
		SubjectCode: "CS101",
		SubjectName: "Intro to Programming",
		CLOPairIDs:  []string{"11", "12"},
	})
}

func syllabusRows(versions ...*domain.SyllabusVersion) *pgxmock.Rows {
	rows := pgxmock.NewRows(syllabusRowColumns)
	for _, v := range versions {
		content, _ := json.Marshal(v.Content)
		rows.AddRow(
			v.ID, v.RootID, v.VersionNo, string(v.Status), content, nullString(v.RejectionReason), v.CreatedBy,
			v.CreatedAt, v.UpdatedAt, v.SubmittedAt, v.ReviewedAt, v.ApprovedAt, v.RejectedAt, v.PublishedAt,
		)
	}
	return rows
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPgSyllabusRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates version successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)
		v := newTestSyllabus()

		mock.ExpectExec("INSERT INTO syllabus_versions").
			WithArgs(anyArgs(14)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, v))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validates required fields", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)

		tests := []struct {
			name   string
			mutate func(v *domain.SyllabusVersion)
			field  string
		}{
			{"missing id", func(v *domain.SyllabusVersion) { v.ID = uuid.Nil }, "id"},
			{"missing root", func(v *domain.SyllabusVersion) { v.RootID = uuid.Nil }, "root_id"},
			{"zero version", func(v *domain.SyllabusVersion) { v.VersionNo = 0 }, "version_no"},
			{"missing author", func(v *domain.SyllabusVersion) { v.CreatedBy = "" }, "created_by"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				v := newTestSyllabus()
				tt.mutate(v)

				err := repo.Create(ctx, v)
				var validationErr *domain.ValidationError
				require.True(t, errors.As(err, &validationErr))
				assert.Equal(t, tt.field, validationErr.Field)
			})
		}
	})

	t.Run("maps duplicate version number to already exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)

		mock.ExpectExec("INSERT INTO syllabus_versions").
			WithArgs(anyArgs(14)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraintRootVersionUniq})

		err = repo.Create(ctx, newTestSyllabus())
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

func TestPgSyllabusRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns version", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)
		v := newTestSyllabus()
		submitted := time.Now().UTC()
		v.Status = domain.SyllabusStatusPendingReview
		v.SubmittedAt = &submitted

		mock.ExpectQuery("SELECT .* FROM syllabus_versions WHERE id = \\$1").
			WithArgs(v.ID).
			WillReturnRows(syllabusRows(v))

		got, err := repo.Get(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, got.ID)
		assert.Equal(t, domain.SyllabusStatusPendingReview, got.Status)
		assert.Equal(t, []string{"11", "12"}, got.Content.CLOPairIDs)
		require.NotNil(t, got.SubmittedAt)
		assert.Nil(t, got.ReviewedAt)
		assert.Empty(t, got.RejectionReason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT .* FROM syllabus_versions WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(syllabusRowColumns))

		_, err = repo.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgSyllabusRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("maps in-flight index violation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)
		v := newTestSyllabus()
		v.Status = domain.SyllabusStatusPendingReview

		mock.ExpectExec("UPDATE syllabus_versions SET").
			WithArgs(anyArgs(10)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraintOneInFlight})

		err = repo.Save(ctx, v)
		assert.ErrorIs(t, err, domain.ErrInFlight)

		var conflict *domain.InFlightConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, v.RootID.String(), conflict.RootID)
	})

	t.Run("returns not found when no row updated", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)

		mock.ExpectExec("UPDATE syllabus_versions SET").
			WithArgs(anyArgs(10)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.Save(ctx, newTestSyllabus())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgSyllabusRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("locks, applies and saves in a transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)
		v := newTestSyllabus()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM syllabus_versions WHERE id = \\$1 FOR UPDATE").
			WithArgs(v.ID).
			WillReturnRows(syllabusRows(v))
		mock.ExpectExec("UPDATE syllabus_versions SET").
			WithArgs(anyArgs(10)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.Update(ctx, v.ID, func(sv *domain.SyllabusVersion) error {
			sv.Content.SubjectName = "Programming I"
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)
		v := newTestSyllabus()
		sentinel := errors.New("abort")

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM syllabus_versions WHERE id = \\$1 FOR UPDATE").
			WithArgs(v.ID).
			WillReturnRows(syllabusRows(v))
		mock.ExpectRollback()

		err = repo.Update(ctx, v.ID, func(*domain.SyllabusVersion) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgSyllabusRepository_LatestByRoot(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgSyllabusRepository(mock)
	v := newTestSyllabus()
	v.VersionNo = 3

	mock.ExpectQuery("SELECT .* FROM syllabus_versions WHERE root_id = \\$1 ORDER BY version_no DESC LIMIT 1").
		WithArgs(v.RootID).
		WillReturnRows(syllabusRows(v))

	got, err := repo.LatestByRoot(ctx, v.RootID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.VersionNo)

	mock.ExpectQuery("SELECT .* FROM syllabus_versions WHERE root_id = \\$1 ORDER BY version_no DESC LIMIT 1").
		WithArgs(v.RootID).
		WillReturnRows(pgxmock.NewRows(syllabusRowColumns))

	_, err = repo.LatestByRoot(ctx, v.RootID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPgSyllabusRepository_List(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by author and status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSyllabusRepository(mock)
		a, b := newTestSyllabus(), newTestSyllabus()

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM syllabus_versions WHERE TRUE AND created_by = \\$1 AND status::text = ANY\\(\\$2\\)").
			WithArgs("lecturer-1", []string{"DRAFT"}).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
		mock.ExpectQuery("SELECT .* FROM syllabus_versions").
			WithArgs("lecturer-1", []string{"DRAFT"}, 100, 0).
			WillReturnRows(syllabusRows(a, b))

		got, total, err := repo.List(ctx, SyllabusFilter{
			CreatedBy: "lecturer-1",
			Status:    []domain.SyllabusStatus{domain.SyllabusStatusDraft},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, got, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		_, _, err = NewPgSyllabusRepository(mock).List(ctx, SyllabusFilter{
			Status: []domain.SyllabusStatus{"ARCHIVED"},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestSyllabusFilter_Validate(t *testing.T) {
	f := SyllabusFilter{Limit: 5000, Offset: -3}
	require.NoError(t, f.Validate())
	assert.Equal(t, maxFilterLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)

	f = SyllabusFilter{}
	require.NoError(t, f.Validate())
	assert.Equal(t, defaultFilterLimit, f.Limit)
}
