package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Bonus is a bonus row. The id is assigned on insert.
type Bonus struct {
	ID    int64    `json:"id"`
	EName string   `json:"ename"`
	Job   string   `json:"job"`
	Sal   *float64 `json:"sal"`
	Comm  *float64 `json:"comm"`
}

// BonusPatch carries the fields of an update; nil fields are left alone.
type BonusPatch struct {
	EName *string  `json:"ename"`
	Job   *string  `json:"job"`
	Sal   *float64 `json:"sal"`
	Comm  *float64 `json:"comm"`
}

const bonusColumns = "id, ename, job, sal, comm"

func scanBonus(row rowScanner) (Bonus, error) {
	var (
		b    Bonus
		sal  sql.NullFloat64
		comm sql.NullFloat64
	)
	if err := row.Scan(&b.ID, &b.EName, &b.Job, &sal, &comm); err != nil {
		return Bonus{}, err
	}
	b.Sal = floatPtr(sal)
	b.Comm = floatPtr(comm)
	return b, nil
}

// ListBonuses returns every bonus row.
func (s *Store) ListBonuses(ctx context.Context) ([]Bonus, error) {
	items, err := queryAll(ctx, s.db, scanBonus, "SELECT "+bonusColumns+" FROM bonus ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list bonuses: %w", err)
	}
	return items, nil
}

// GetBonus fetches one bonus row.
func (s *Store) GetBonus(ctx context.Context, id int64) (Bonus, error) {
	b, err := scanBonus(s.db.QueryRowContext(ctx, "SELECT "+bonusColumns+" FROM bonus WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Bonus{}, fmt.Errorf("bonus %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Bonus{}, fmt.Errorf("get bonus: %w", err)
	}
	return b, nil
}

// BonusesByEName lists bonuses paid to ename.
func (s *Store) BonusesByEName(ctx context.Context, ename string) ([]Bonus, error) {
	items, err := queryAll(ctx, s.db, scanBonus, "SELECT "+bonusColumns+" FROM bonus WHERE ename = ? ORDER BY id", strings.TrimSpace(ename))
	if err != nil {
		return nil, fmt.Errorf("list bonuses by name: %w", err)
	}
	return items, nil
}

// BonusesByJob lists bonuses for job.
func (s *Store) BonusesByJob(ctx context.Context, job string) ([]Bonus, error) {
	items, err := queryAll(ctx, s.db, scanBonus, "SELECT "+bonusColumns+" FROM bonus WHERE job = ? ORDER BY id", normalizeJob(job))
	if err != nil {
		return nil, fmt.Errorf("list bonuses by job: %w", err)
	}
	return items, nil
}

// CreateBonus inserts a bonus row and returns it with its id.
func (s *Store) CreateBonus(ctx context.Context, b Bonus) (Bonus, error) {
	b.EName = strings.TrimSpace(b.EName)
	b.Job = normalizeJob(b.Job)
	if b.EName == "" {
		return Bonus{}, invalidf("ename is required")
	}
	if b.Job == "" {
		return Bonus{}, invalidf("job is required")
	}
	if err := validateAmounts(b.Sal, b.Comm); err != nil {
		return Bonus{}, err
	}

	res, err := s.execWithRetry(ctx,
		"INSERT INTO bonus (ename, job, sal, comm) VALUES (?, ?, ?, ?)",
		b.EName, b.Job, nullableFloat(b.Sal), nullableFloat(b.Comm),
	)
	if err != nil {
		return Bonus{}, fmt.Errorf("insert bonus: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Bonus{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetBonus(ctx, id)
}

// UpdateBonus applies patch to an existing bonus row.
func (s *Store) UpdateBonus(ctx context.Context, id int64, patch BonusPatch) (Bonus, error) {
	b, err := s.GetBonus(ctx, id)
	if err != nil {
		return Bonus{}, err
	}
	if patch.EName != nil {
		if b.EName = strings.TrimSpace(*patch.EName); b.EName == "" {
			return Bonus{}, invalidf("ename must not be empty")
		}
	}
	if patch.Job != nil {
		if b.Job = normalizeJob(*patch.Job); b.Job == "" {
			return Bonus{}, invalidf("job must not be empty")
		}
	}
	if patch.Sal != nil {
		b.Sal = patch.Sal
	}
	if patch.Comm != nil {
		b.Comm = patch.Comm
	}
	if err := validateAmounts(b.Sal, b.Comm); err != nil {
		return Bonus{}, err
	}

	_, err = s.execWithRetry(ctx,
		"UPDATE bonus SET ename = ?, job = ?, sal = ?, comm = ? WHERE id = ?",
		b.EName, b.Job, nullableFloat(b.Sal), nullableFloat(b.Comm), id,
	)
	if err != nil {
		return Bonus{}, fmt.Errorf("update bonus: %w", err)
	}
	return b, nil
}

// DeleteBonus removes a bonus row.
func (s *Store) DeleteBonus(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM bonus WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete bonus %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("bonus %d", id))
}

func validateAmounts(sal, comm *float64) error {
	if sal != nil && *sal < 0 {
		return invalidf("sal must not be negative")
	}
	if comm != nil && *comm < 0 {
		return invalidf("comm must not be negative")
	}
	return nil
}
