package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Dept is a department row.
type Dept struct {
	DeptNo int64  `json:"deptno"`
	DName  string `json:"dname"`
	Loc    string `json:"loc"`
}

// DeptPatch carries the fields of an update; nil fields are left alone.
type DeptPatch struct {
	DName *string `json:"dname"`
	Loc   *string `json:"loc"`
}

const deptColumns = "deptno, dname, loc"

func scanDept(row rowScanner) (Dept, error) {
	var d Dept
	if err := row.Scan(&d.DeptNo, &d.DName, &d.Loc); err != nil {
		return Dept{}, err
	}
	return d, nil
}

// ListDepts returns every department ordered by number.
func (s *Store) ListDepts(ctx context.Context) ([]Dept, error) {
	depts, err := queryAll(ctx, s.db, scanDept, "SELECT "+deptColumns+" FROM dept ORDER BY deptno")
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

// GetDept fetches one department.
func (s *Store) GetDept(ctx context.Context, deptno int64) (Dept, error) {
	d, err := scanDept(s.db.QueryRowContext(ctx, "SELECT "+deptColumns+" FROM dept WHERE deptno = ?", deptno))
	if errors.Is(err, sql.ErrNoRows) {
		return Dept{}, fmt.Errorf("department %d: %w", deptno, ErrNotFound)
	}
	if err != nil {
		return Dept{}, fmt.Errorf("get department: %w", err)
	}
	return d, nil
}

// CreateDept inserts a department. The number must be unused.
func (s *Store) CreateDept(ctx context.Context, d Dept) (Dept, error) {
	d.DName = strings.TrimSpace(d.DName)
	d.Loc = strings.TrimSpace(d.Loc)
	if d.DeptNo <= 0 {
		return Dept{}, invalidf("deptno must be positive")
	}
	if d.DName == "" {
		return Dept{}, invalidf("dname is required")
	}

	taken, err := s.exists(ctx, "SELECT 1 FROM dept WHERE deptno = ?", d.DeptNo)
	if err != nil {
		return Dept{}, fmt.Errorf("check department: %w", err)
	}
	if taken {
		return Dept{}, fmt.Errorf("department %d already exists: %w", d.DeptNo, ErrConflict)
	}

	if _, err := s.execWithRetry(ctx, "INSERT INTO dept (deptno, dname, loc) VALUES (?, ?, ?)", d.DeptNo, d.DName, d.Loc); err != nil {
		return Dept{}, fmt.Errorf("insert department: %w", err)
	}
	return s.GetDept(ctx, d.DeptNo)
}

// UpdateDept applies patch to an existing department.
func (s *Store) UpdateDept(ctx context.Context, deptno int64, patch DeptPatch) (Dept, error) {
	current, err := s.GetDept(ctx, deptno)
	if err != nil {
		return Dept{}, err
	}
	if patch.DName != nil {
		current.DName = strings.TrimSpace(*patch.DName)
		if current.DName == "" {
			return Dept{}, invalidf("dname must not be empty")
		}
	}
	if patch.Loc != nil {
		current.Loc = strings.TrimSpace(*patch.Loc)
	}

	if _, err := s.execWithRetry(ctx, "UPDATE dept SET dname = ?, loc = ? WHERE deptno = ?", current.DName, current.Loc, deptno); err != nil {
		return Dept{}, fmt.Errorf("update department: %w", err)
	}
	return current, nil
}

// DeleteDept removes a department. Departments that still have employees
// are rejected with ErrConflict.
func (s *Store) DeleteDept(ctx context.Context, deptno int64) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM dept WHERE deptno = ?", deptno)
	if err != nil {
		return fmt.Errorf("delete department %d: %w", deptno, err)
	}
	return requireAffected(res, fmt.Sprintf("department %d", deptno))
}
