package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-portal/internal/models"
)

// DashboardRepository runs the aggregate queries behind the dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

type groupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// CountUsersByRole returns the number of active accounts per role.
func (r *DashboardRepository) CountUsersByRole(ctx context.Context) (map[models.UserRole]int, error) {
	const query = `SELECT role AS key, COUNT(*) AS count FROM users WHERE status = 'active' GROUP BY role`
	var rows []groupCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	result := make(map[models.UserRole]int, len(rows))
	for _, row := range rows {
		result[models.UserRole(row.Key)] = row.Count
	}
	return result, nil
}

// CountUsersByStatus returns the number of accounts per lifecycle status.
func (r *DashboardRepository) CountUsersByStatus(ctx context.Context) (map[models.UserStatus]int, error) {
	const query = `SELECT status AS key, COUNT(*) AS count FROM users GROUP BY status`
	var rows []groupCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count users by status: %w", err)
	}
	result := make(map[models.UserStatus]int, len(rows))
	for _, row := range rows {
		result[models.UserStatus(row.Key)] = row.Count
	}
	return result, nil
}

// CountRegistrationsSince counts student accounts created at or after since.
func (r *DashboardRepository) CountRegistrationsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE created_at >= $1`, since); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

// StudentsByGrade breaks registered students down by grade level.
func (r *DashboardRepository) StudentsByGrade(ctx context.Context) ([]models.GradeCount, error) {
	const query = `SELECT s.grade_level, COUNT(*) AS count FROM students s
JOIN users u ON u.id = s.user_id WHERE u.status = 'active' GROUP BY s.grade_level ORDER BY s.grade_level`
	var rows []models.GradeCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count students by grade: %w", err)
	}
	return rows, nil
}
