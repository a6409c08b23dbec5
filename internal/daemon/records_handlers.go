package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"scott/internal/api"
	"scott/internal/records"
)

const maxBodyBytes = 1 << 20

func (s *apiServer) registerRecordRoutes(r *mux.Router) {
	collection(r, "/api/dept", s.handleListDepts, http.MethodGet)
	collection(r, "/api/dept", s.handleCreateDept, http.MethodPost)
	r.HandleFunc("/api/dept/{deptno:[0-9]+}", s.handleGetDept).Methods(http.MethodGet)
	r.HandleFunc("/api/dept/{deptno:[0-9]+}", s.handleUpdateDept).Methods(http.MethodPut)
	r.HandleFunc("/api/dept/{deptno:[0-9]+}", s.handleDeleteDept).Methods(http.MethodDelete)

	collection(r, "/api/emp", s.handleListEmps, http.MethodGet)
	collection(r, "/api/emp", s.handleCreateEmp, http.MethodPost)
	r.HandleFunc("/api/emp/dept/{deptno:[0-9]+}", s.handleEmpsByDept).Methods(http.MethodGet)
	r.HandleFunc("/api/emp/job/{job}", s.handleEmpsByJob).Methods(http.MethodGet)
	r.HandleFunc("/api/emp/{empno:[0-9]+}", s.handleGetEmp).Methods(http.MethodGet)
	r.HandleFunc("/api/emp/{empno:[0-9]+}", s.handleUpdateEmp).Methods(http.MethodPut)
	r.HandleFunc("/api/emp/{empno:[0-9]+}", s.handleDeleteEmp).Methods(http.MethodDelete)

	collection(r, "/api/bonus", s.handleListBonuses, http.MethodGet)
	collection(r, "/api/bonus", s.handleCreateBonus, http.MethodPost)
	r.HandleFunc("/api/bonus/ename/{ename}", s.handleBonusesByEName).Methods(http.MethodGet)
	r.HandleFunc("/api/bonus/job/{job}", s.handleBonusesByJob).Methods(http.MethodGet)
	r.HandleFunc("/api/bonus/{id:[0-9]+}", s.handleGetBonus).Methods(http.MethodGet)
	r.HandleFunc("/api/bonus/{id:[0-9]+}", s.handleUpdateBonus).Methods(http.MethodPut)
	r.HandleFunc("/api/bonus/{id:[0-9]+}", s.handleDeleteBonus).Methods(http.MethodDelete)

	collection(r, "/api/salgrade", s.handleListSalGrades, http.MethodGet)
	collection(r, "/api/salgrade", s.handleCreateSalGrade, http.MethodPost)
	r.HandleFunc("/api/salgrade/sal/{sal:[0-9]+(?:\\.[0-9]+)?}", s.handleSalGradeFor).Methods(http.MethodGet)
	r.HandleFunc("/api/salgrade/{grade:[0-9]+}", s.handleGetSalGrade).Methods(http.MethodGet)
	r.HandleFunc("/api/salgrade/{grade:[0-9]+}", s.handleUpdateSalGrade).Methods(http.MethodPut)
	r.HandleFunc("/api/salgrade/{grade:[0-9]+}", s.handleDeleteSalGrade).Methods(http.MethodDelete)

	collection(r, "/api/customer", s.handleListCustomers, http.MethodGet)
	collection(r, "/api/customer", s.handleCreateCustomer, http.MethodPost)
	r.HandleFunc("/api/customer/search", s.handleSearchCustomers).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/stats", s.handleCustomerStats).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/status/{value}", s.customersBy(func(f *records.CustomerFilter, v string) { f.Status = v })).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/credit-rating/{value}", s.customersBy(func(f *records.CustomerFilter, v string) { f.CreditRating = v })).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/city/{value}", s.customersBy(func(f *records.CustomerFilter, v string) { f.City = v })).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/industry/{value}", s.customersBy(func(f *records.CustomerFilter, v string) { f.Industry = v })).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/{id:[0-9]+}", s.handleGetCustomer).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/{id:[0-9]+}", s.handleUpdateCustomer).Methods(http.MethodPut)
	r.HandleFunc("/api/customer/{id:[0-9]+}", s.handleDeleteCustomer).Methods(http.MethodDelete)
}

// pathID parses a numeric route variable. Routes constrain the pattern, so
// failure means an out-of-range value.
func pathID(r *http.Request, name string) (int64, error) {
	value, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return value, nil
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body must be a JSON object")
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

// Departments.

func (s *apiServer) handleListDepts(w http.ResponseWriter, r *http.Request) {
	depts, err := s.store.ListDepts(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "departments retrieved", depts)
}

func (s *apiServer) handleGetDept(w http.ResponseWriter, r *http.Request) {
	deptno, err := pathID(r, "deptno")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dept, err := s.store.GetDept(r.Context(), deptno)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "department retrieved", dept)
}

func (s *apiServer) handleCreateDept(w http.ResponseWriter, r *http.Request) {
	var in records.Dept
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dept, err := s.store.CreateDept(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "department created", dept)
}

func (s *apiServer) handleUpdateDept(w http.ResponseWriter, r *http.Request) {
	deptno, err := pathID(r, "deptno")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch records.DeptPatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dept, err := s.store.UpdateDept(r.Context(), deptno, patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "department updated", dept)
}

func (s *apiServer) handleDeleteDept(w http.ResponseWriter, r *http.Request) {
	deptno, err := pathID(r, "deptno")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteDept(r.Context(), deptno); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "department deleted", nil)
}

// Employees.

func (s *apiServer) handleListEmps(w http.ResponseWriter, r *http.Request) {
	emps, err := s.store.ListEmps(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "employees retrieved", emps)
}

func (s *apiServer) handleGetEmp(w http.ResponseWriter, r *http.Request) {
	empno, err := pathID(r, "empno")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	emp, err := s.store.GetEmp(r.Context(), empno)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "employee retrieved", emp)
}

func (s *apiServer) handleEmpsByDept(w http.ResponseWriter, r *http.Request) {
	deptno, err := pathID(r, "deptno")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	emps, err := s.store.EmpsByDept(r.Context(), deptno)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "department employees retrieved", emps)
}

func (s *apiServer) handleEmpsByJob(w http.ResponseWriter, r *http.Request) {
	emps, err := s.store.EmpsByJob(r.Context(), mux.Vars(r)["job"])
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "employees retrieved", emps)
}

func (s *apiServer) handleCreateEmp(w http.ResponseWriter, r *http.Request) {
	var in records.Emp
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	emp, err := s.store.CreateEmp(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "employee created", emp)
}

func (s *apiServer) handleUpdateEmp(w http.ResponseWriter, r *http.Request) {
	empno, err := pathID(r, "empno")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch records.EmpPatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	emp, err := s.store.UpdateEmp(r.Context(), empno, patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "employee updated", emp)
}

func (s *apiServer) handleDeleteEmp(w http.ResponseWriter, r *http.Request) {
	empno, err := pathID(r, "empno")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteEmp(r.Context(), empno); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "employee deleted", nil)
}

// Bonuses.

func (s *apiServer) handleListBonuses(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListBonuses(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "bonuses retrieved", items)
}

func (s *apiServer) handleGetBonus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bonus, err := s.store.GetBonus(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "bonus retrieved", bonus)
}

func (s *apiServer) handleBonusesByEName(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.BonusesByEName(r.Context(), mux.Vars(r)["ename"])
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "bonuses retrieved", items)
}

func (s *apiServer) handleBonusesByJob(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.BonusesByJob(r.Context(), mux.Vars(r)["job"])
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "bonuses retrieved", items)
}

func (s *apiServer) handleCreateBonus(w http.ResponseWriter, r *http.Request) {
	var in records.Bonus
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bonus, err := s.store.CreateBonus(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "bonus created", bonus)
}

func (s *apiServer) handleUpdateBonus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch records.BonusPatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bonus, err := s.store.UpdateBonus(r.Context(), id, patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "bonus updated", bonus)
}

func (s *apiServer) handleDeleteBonus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteBonus(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "bonus deleted", nil)
}

// Salary grades.

func (s *apiServer) handleListSalGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := s.store.ListSalGrades(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "salary grades retrieved", grades)
}

func (s *apiServer) handleGetSalGrade(w http.ResponseWriter, r *http.Request) {
	grade, err := pathID(r, "grade")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := s.store.GetSalGrade(r.Context(), grade)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "salary grade retrieved", g)
}

func (s *apiServer) handleSalGradeFor(w http.ResponseWriter, r *http.Request) {
	sal, err := strconv.ParseFloat(mux.Vars(r)["sal"], 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sal")
		return
	}
	g, err := s.store.SalGradeFor(r.Context(), sal)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "salary grade retrieved", g)
}

func (s *apiServer) handleCreateSalGrade(w http.ResponseWriter, r *http.Request) {
	var in records.SalGrade
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := s.store.CreateSalGrade(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "salary grade created", g)
}

func (s *apiServer) handleUpdateSalGrade(w http.ResponseWriter, r *http.Request) {
	grade, err := pathID(r, "grade")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch records.SalGradePatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := s.store.UpdateSalGrade(r.Context(), grade, patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "salary grade updated", g)
}

func (s *apiServer) handleDeleteSalGrade(w http.ResponseWriter, r *http.Request) {
	grade, err := pathID(r, "grade")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteSalGrade(r.Context(), grade); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "salary grade deleted", nil)
}

// Customers.

func (s *apiServer) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := records.CustomerFilter{
		Status:       query.Get("status"),
		CreditRating: query.Get("credit_rating"),
		City:         query.Get("city"),
		Industry:     query.Get("industry"),
		Search:       query.Get("search"),
		Page:         queryInt(query.Get("page"), 1),
		PerPage:      queryInt(query.Get("per_page"), 0),
	}
	page, err := s.store.ListCustomers(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "customers retrieved", api.FromCustomerPage(page))
}

func (s *apiServer) handleSearchCustomers(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		s.writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	s.findCustomers(w, r, records.CustomerFilter{Search: keyword})
}

// customersBy serves the single-filter listings such as /status/{status}.
func (s *apiServer) customersBy(set func(*records.CustomerFilter, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter records.CustomerFilter
		set(&filter, mux.Vars(r)["value"])
		s.findCustomers(w, r, filter)
	}
}

func (s *apiServer) findCustomers(w http.ResponseWriter, r *http.Request, filter records.CustomerFilter) {
	items, err := s.store.FindCustomers(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "customers retrieved", items)
}

func (s *apiServer) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.store.GetCustomer(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "customer retrieved", c)
}

func (s *apiServer) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in records.Customer
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.store.CreateCustomer(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, "customer created", c)
}

func (s *apiServer) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch records.CustomerPatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.store.UpdateCustomer(r.Context(), id, patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "customer updated", c)
}

func (s *apiServer) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteCustomer(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "customer deleted", nil)
}

func (s *apiServer) handleCustomerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CustomerStats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "customer statistics retrieved", stats)
}

// queryInt parses an optional integer parameter, falling back on garbage.
func queryInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
