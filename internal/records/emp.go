package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of hire dates.
const DateLayout = "2006-01-02"

// Emp is an employee row.
type Emp struct {
	EmpNo    int64    `json:"empno"`
	EName    string   `json:"ename"`
	Job      string   `json:"job"`
	Mgr      *int64   `json:"mgr"`
	HireDate *string  `json:"hiredate"`
	Sal      *float64 `json:"sal"`
	Comm     *float64 `json:"comm"`
	DeptNo   int64    `json:"deptno"`
}

// EmpPatch carries the fields of an update; nil fields are left alone.
type EmpPatch struct {
	EName    *string  `json:"ename"`
	Job      *string  `json:"job"`
	Mgr      *int64   `json:"mgr"`
	HireDate *string  `json:"hiredate"`
	Sal      *float64 `json:"sal"`
	Comm     *float64 `json:"comm"`
	DeptNo   *int64   `json:"deptno"`
}

const empColumns = "empno, ename, job, mgr, hiredate, sal, comm, deptno"

func scanEmp(row rowScanner) (Emp, error) {
	var (
		e        Emp
		mgr      sql.NullInt64
		hiredate sql.NullString
		sal      sql.NullFloat64
		comm     sql.NullFloat64
	)
	if err := row.Scan(&e.EmpNo, &e.EName, &e.Job, &mgr, &hiredate, &sal, &comm, &e.DeptNo); err != nil {
		return Emp{}, err
	}
	e.Mgr = intPtr(mgr)
	e.HireDate = stringPtr(hiredate)
	e.Sal = floatPtr(sal)
	e.Comm = floatPtr(comm)
	return e, nil
}

// ListEmps returns every employee ordered by number.
func (s *Store) ListEmps(ctx context.Context) ([]Emp, error) {
	emps, err := queryAll(ctx, s.db, scanEmp, "SELECT "+empColumns+" FROM emp ORDER BY empno")
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return emps, nil
}

// GetEmp fetches one employee.
func (s *Store) GetEmp(ctx context.Context, empno int64) (Emp, error) {
	e, err := scanEmp(s.db.QueryRowContext(ctx, "SELECT "+empColumns+" FROM emp WHERE empno = ?", empno))
	if errors.Is(err, sql.ErrNoRows) {
		return Emp{}, fmt.Errorf("employee %d: %w", empno, ErrNotFound)
	}
	if err != nil {
		return Emp{}, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

// EmpsByDept lists the employees of a department, failing with ErrNotFound
// when the department itself does not exist.
func (s *Store) EmpsByDept(ctx context.Context, deptno int64) ([]Emp, error) {
	if _, err := s.GetDept(ctx, deptno); err != nil {
		return nil, err
	}
	emps, err := queryAll(ctx, s.db, scanEmp, "SELECT "+empColumns+" FROM emp WHERE deptno = ? ORDER BY empno", deptno)
	if err != nil {
		return nil, fmt.Errorf("list employees by department: %w", err)
	}
	return emps, nil
}

// EmpsByJob lists employees holding job, matched case-insensitively.
func (s *Store) EmpsByJob(ctx context.Context, job string) ([]Emp, error) {
	emps, err := queryAll(ctx, s.db, scanEmp, "SELECT "+empColumns+" FROM emp WHERE job = ? ORDER BY empno", normalizeJob(job))
	if err != nil {
		return nil, fmt.Errorf("list employees by job: %w", err)
	}
	return emps, nil
}

// CreateEmp inserts an employee into an existing department.
func (s *Store) CreateEmp(ctx context.Context, e Emp) (Emp, error) {
	e.EName = strings.TrimSpace(e.EName)
	e.Job = normalizeJob(e.Job)
	if e.EmpNo <= 0 {
		return Emp{}, invalidf("empno must be positive")
	}
	if e.EName == "" {
		return Emp{}, invalidf("ename is required")
	}
	if e.Job == "" {
		return Emp{}, invalidf("job is required")
	}
	if err := validateEmpFields(e); err != nil {
		return Emp{}, err
	}

	taken, err := s.exists(ctx, "SELECT 1 FROM emp WHERE empno = ?", e.EmpNo)
	if err != nil {
		return Emp{}, fmt.Errorf("check employee: %w", err)
	}
	if taken {
		return Emp{}, fmt.Errorf("employee %d already exists: %w", e.EmpNo, ErrConflict)
	}
	if err := s.requireDept(ctx, e.DeptNo); err != nil {
		return Emp{}, err
	}

	_, err = s.execWithRetry(ctx,
		"INSERT INTO emp ("+empColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.EmpNo, e.EName, e.Job, nullableInt(e.Mgr), nullableString(e.HireDate),
		nullableFloat(e.Sal), nullableFloat(e.Comm), e.DeptNo,
	)
	if err != nil {
		return Emp{}, fmt.Errorf("insert employee: %w", err)
	}
	return s.GetEmp(ctx, e.EmpNo)
}

// UpdateEmp applies patch to an existing employee.
func (s *Store) UpdateEmp(ctx context.Context, empno int64, patch EmpPatch) (Emp, error) {
	e, err := s.GetEmp(ctx, empno)
	if err != nil {
		return Emp{}, err
	}
	if patch.EName != nil {
		e.EName = strings.TrimSpace(*patch.EName)
		if e.EName == "" {
			return Emp{}, invalidf("ename must not be empty")
		}
	}
	if patch.Job != nil {
		e.Job = normalizeJob(*patch.Job)
		if e.Job == "" {
			return Emp{}, invalidf("job must not be empty")
		}
	}
	if patch.Mgr != nil {
		e.Mgr = patch.Mgr
	}
	if patch.HireDate != nil {
		e.HireDate = patch.HireDate
	}
	if patch.Sal != nil {
		e.Sal = patch.Sal
	}
	if patch.Comm != nil {
		e.Comm = patch.Comm
	}
	if patch.DeptNo != nil && *patch.DeptNo != e.DeptNo {
		if err := s.requireDept(ctx, *patch.DeptNo); err != nil {
			return Emp{}, err
		}
		e.DeptNo = *patch.DeptNo
	}
	if err := validateEmpFields(e); err != nil {
		return Emp{}, err
	}

	_, err = s.execWithRetry(ctx,
		`UPDATE emp SET ename = ?, job = ?, mgr = ?, hiredate = ?, sal = ?, comm = ?, deptno = ?
         WHERE empno = ?`,
		e.EName, e.Job, nullableInt(e.Mgr), nullableString(e.HireDate),
		nullableFloat(e.Sal), nullableFloat(e.Comm), e.DeptNo, empno,
	)
	if err != nil {
		return Emp{}, fmt.Errorf("update employee: %w", err)
	}
	return e, nil
}

// DeleteEmp removes an employee.
func (s *Store) DeleteEmp(ctx context.Context, empno int64) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM emp WHERE empno = ?", empno)
	if err != nil {
		return fmt.Errorf("delete employee %d: %w", empno, err)
	}
	return requireAffected(res, fmt.Sprintf("employee %d", empno))
}

func (s *Store) requireDept(ctx context.Context, deptno int64) error {
	ok, err := s.exists(ctx, "SELECT 1 FROM dept WHERE deptno = ?", deptno)
	if err != nil {
		return fmt.Errorf("check department: %w", err)
	}
	if !ok {
		return invalidf("department %d does not exist", deptno)
	}
	return nil
}

func validateEmpFields(e Emp) error {
	if e.HireDate != nil && *e.HireDate != "" {
		if _, err := time.Parse(DateLayout, *e.HireDate); err != nil {
			return invalidf("hiredate must be YYYY-MM-DD")
		}
	}
	return validateAmounts(e.Sal, e.Comm)
}
