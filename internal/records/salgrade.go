package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SalGrade is a salary band.
type SalGrade struct {
	Grade int64   `json:"grade"`
	LoSal float64 `json:"losal"`
	HiSal float64 `json:"hisal"`
}

// SalGradePatch carries the fields of an update; nil fields are left alone.
type SalGradePatch struct {
	LoSal *float64 `json:"losal"`
	HiSal *float64 `json:"hisal"`
}

const salGradeColumns = "grade, losal, hisal"

func scanSalGrade(row rowScanner) (SalGrade, error) {
	var g SalGrade
	if err := row.Scan(&g.Grade, &g.LoSal, &g.HiSal); err != nil {
		return SalGrade{}, err
	}
	return g, nil
}

// ListSalGrades returns every band ordered by grade.
func (s *Store) ListSalGrades(ctx context.Context) ([]SalGrade, error) {
	items, err := queryAll(ctx, s.db, scanSalGrade, "SELECT "+salGradeColumns+" FROM salgrade ORDER BY grade")
	if err != nil {
		return nil, fmt.Errorf("list salary grades: %w", err)
	}
	return items, nil
}

// GetSalGrade fetches one band.
func (s *Store) GetSalGrade(ctx context.Context, grade int64) (SalGrade, error) {
	g, err := scanSalGrade(s.db.QueryRowContext(ctx, "SELECT "+salGradeColumns+" FROM salgrade WHERE grade = ?", grade))
	if errors.Is(err, sql.ErrNoRows) {
		return SalGrade{}, fmt.Errorf("salary grade %d: %w", grade, ErrNotFound)
	}
	if err != nil {
		return SalGrade{}, fmt.Errorf("get salary grade: %w", err)
	}
	return g, nil
}

// SalGradeFor returns the band whose range contains sal.
func (s *Store) SalGradeFor(ctx context.Context, sal float64) (SalGrade, error) {
	g, err := scanSalGrade(s.db.QueryRowContext(ctx,
		"SELECT "+salGradeColumns+" FROM salgrade WHERE losal <= ? AND hisal >= ? ORDER BY grade LIMIT 1", sal, sal))
	if errors.Is(err, sql.ErrNoRows) {
		return SalGrade{}, fmt.Errorf("no salary grade matches %g: %w", sal, ErrNotFound)
	}
	if err != nil {
		return SalGrade{}, fmt.Errorf("find salary grade: %w", err)
	}
	return g, nil
}

// CreateSalGrade inserts a band. losal must not exceed hisal.
func (s *Store) CreateSalGrade(ctx context.Context, g SalGrade) (SalGrade, error) {
	if g.Grade <= 0 {
		return SalGrade{}, invalidf("grade must be positive")
	}
	if err := validateBand(g); err != nil {
		return SalGrade{}, err
	}
	taken, err := s.exists(ctx, "SELECT 1 FROM salgrade WHERE grade = ?", g.Grade)
	if err != nil {
		return SalGrade{}, fmt.Errorf("check salary grade: %w", err)
	}
	if taken {
		return SalGrade{}, fmt.Errorf("salary grade %d already exists: %w", g.Grade, ErrConflict)
	}
	if _, err := s.execWithRetry(ctx, "INSERT INTO salgrade (grade, losal, hisal) VALUES (?, ?, ?)", g.Grade, g.LoSal, g.HiSal); err != nil {
		return SalGrade{}, fmt.Errorf("insert salary grade: %w", err)
	}
	return g, nil
}

// UpdateSalGrade applies patch to an existing band.
func (s *Store) UpdateSalGrade(ctx context.Context, grade int64, patch SalGradePatch) (SalGrade, error) {
	g, err := s.GetSalGrade(ctx, grade)
	if err != nil {
		return SalGrade{}, err
	}
	if patch.LoSal != nil {
		g.LoSal = *patch.LoSal
	}
	if patch.HiSal != nil {
		g.HiSal = *patch.HiSal
	}
	if err := validateBand(g); err != nil {
		return SalGrade{}, err
	}
	if _, err := s.execWithRetry(ctx, "UPDATE salgrade SET losal = ?, hisal = ? WHERE grade = ?", g.LoSal, g.HiSal, grade); err != nil {
		return SalGrade{}, fmt.Errorf("update salary grade: %w", err)
	}
	return g, nil
}

// DeleteSalGrade removes a band.
func (s *Store) DeleteSalGrade(ctx context.Context, grade int64) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM salgrade WHERE grade = ?", grade)
	if err != nil {
		return fmt.Errorf("delete salary grade %d: %w", grade, err)
	}
	return requireAffected(res, fmt.Sprintf("salary grade %d", grade))
}

func validateBand(g SalGrade) error {
	if g.LoSal < 0 {
		return invalidf("losal must not be negative")
	}
	if g.LoSal > g.HiSal {
		return invalidf("losal %g exceeds hisal %g", g.LoSal, g.HiSal)
	}
	return nil
}
