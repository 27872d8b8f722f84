package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal/internal/models"
)

func TestDashboardCountUsersByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery("SELECT role AS key, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("STUDENT", 120).AddRow("TEACHER", 14))

	counts, err := repo.CountUsersByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, counts[models.RoleStudent])
	assert.Equal(t, 14, counts[models.RoleTeacher])
	assert.Zero(t, counts[models.RoleAdmin])
}

func TestDashboardStudentsByGrade(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery("GROUP BY s.grade_level").
		WillReturnRows(sqlmock.NewRows([]string{"grade_level", "count"}).AddRow(10, 40).AddRow(11, 38))

	grades, err := repo.StudentsByGrade(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.GradeCount{{GradeLevel: 10, Count: 40}, {GradeLevel: 11, Count: 38}}, grades)
}
