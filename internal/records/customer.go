package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// TimestampLayout is the format of customer created/modified stamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Customer status values.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// CreditRatings lists the accepted credit ratings.
var CreditRatings = []string{"A", "B", "C", "D"}

const (
	defaultPerPage = 20
	maxPerPage     = 100
	topStatsLimit  = 10
)

// Customer is a customers row.
type Customer struct {
	CustomerID    int64    `json:"customer_id"`
	CompanyName   string   `json:"company_name"`
	ContactName   *string  `json:"contact_name"`
	ContactTitle  *string  `json:"contact_title"`
	Phone         *string  `json:"phone"`
	Email         *string  `json:"email"`
	Address       *string  `json:"address"`
	City          *string  `json:"city"`
	Country       *string  `json:"country"`
	CreditLimit   *float64 `json:"credit_limit"`
	CreditRating  *string  `json:"credit_rating"`
	CreatedDate   string   `json:"created_date"`
	LastModified  string   `json:"last_modified"`
	Status        string   `json:"status"`
	Industry      *string  `json:"industry"`
	AnnualRevenue *float64 `json:"annual_revenue"`
	EmployeeCount *int64   `json:"employee_count"`
}

// CustomerPatch carries the fields of an update; nil fields are left alone.
type CustomerPatch struct {
	CompanyName   *string  `json:"company_name"`
	ContactName   *string  `json:"contact_name"`
	ContactTitle  *string  `json:"contact_title"`
	Phone         *string  `json:"phone"`
	Email         *string  `json:"email"`
	Address       *string  `json:"address"`
	City          *string  `json:"city"`
	Country       *string  `json:"country"`
	CreditLimit   *float64 `json:"credit_limit"`
	CreditRating  *string  `json:"credit_rating"`
	Status        *string  `json:"status"`
	Industry      *string  `json:"industry"`
	AnnualRevenue *float64 `json:"annual_revenue"`
	EmployeeCount *int64   `json:"employee_count"`
}

// CustomerFilter narrows a customer listing. Empty fields match everything.
// Search matches company or contact name substrings.
type CustomerFilter struct {
	Status       string
	CreditRating string
	City         string
	Industry     string
	Search       string
	Page         int
	PerPage      int
}

// CustomerPage is one page of a filtered listing.
type CustomerPage struct {
	Items   []Customer `json:"items"`
	Total   int        `json:"total"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
	Pages   int        `json:"pages"`
	HasNext bool       `json:"has_next"`
	HasPrev bool       `json:"has_prev"`
}

// NamedCount is one row of a grouped count.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CustomerStats summarizes the customers table.
type CustomerStats struct {
	Total          int            `json:"total_customers"`
	Active         int            `json:"active_customers"`
	Inactive       int            `json:"inactive_customers"`
	ByCreditRating map[string]int `json:"credit_rating_stats"`
	TopCities      []NamedCount   `json:"top_cities"`
	TopIndustries  []NamedCount   `json:"top_industries"`
}

const customerColumns = `customer_id, company_name, contact_name, contact_title, phone, email,
    address, city, country, credit_limit, credit_rating, created_date, last_modified,
    status, industry, annual_revenue, employee_count`

func scanCustomer(row rowScanner) (Customer, error) {
	var (
		c                                        Customer
		contactName, contactTitle, phone, email  sql.NullString
		address, city, country, rating, industry sql.NullString
		creditLimit, revenue                     sql.NullFloat64
		employees                                sql.NullInt64
	)
	err := row.Scan(&c.CustomerID, &c.CompanyName, &contactName, &contactTitle, &phone, &email,
		&address, &city, &country, &creditLimit, &rating, &c.CreatedDate, &c.LastModified,
		&c.Status, &industry, &revenue, &employees)
	if err != nil {
		return Customer{}, err
	}
	c.ContactName = stringPtr(contactName)
	c.ContactTitle = stringPtr(contactTitle)
	c.Phone = stringPtr(phone)
	c.Email = stringPtr(email)
	c.Address = stringPtr(address)
	c.City = stringPtr(city)
	c.Country = stringPtr(country)
	c.CreditLimit = floatPtr(creditLimit)
	c.CreditRating = stringPtr(rating)
	c.Industry = stringPtr(industry)
	c.AnnualRevenue = floatPtr(revenue)
	c.EmployeeCount = intPtr(employees)
	return c, nil
}

// customerWhere builds the WHERE clause shared by listing and counting.
func customerWhere(f CustomerFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if v := normalizeCode(f.Status); v != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, v)
	}
	if v := normalizeCode(f.CreditRating); v != "" {
		clauses = append(clauses, "credit_rating = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.City); v != "" {
		clauses = append(clauses, "city = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.Industry); v != "" {
		clauses = append(clauses, "industry = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.Search); v != "" {
		pattern := "%" + escapeLike(v) + "%"
		clauses = append(clauses, `(company_name LIKE ? ESCAPE '\' OR contact_name LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// ListCustomers returns one page of customers matching f.
func (s *Store) ListCustomers(ctx context.Context, f CustomerFilter) (CustomerPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}

	where, args := customerWhere(f)
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM customers"+where, args...).Scan(&total); err != nil {
		return CustomerPage{}, fmt.Errorf("count customers: %w", err)
	}

	pageArgs := append(append([]any(nil), args...), f.PerPage, (f.Page-1)*f.PerPage)
	items, err := queryAll(ctx, s.db, scanCustomer,
		"SELECT "+customerColumns+" FROM customers"+where+" ORDER BY customer_id LIMIT ? OFFSET ?", pageArgs...)
	if err != nil {
		return CustomerPage{}, fmt.Errorf("list customers: %w", err)
	}

	pages := (total + f.PerPage - 1) / f.PerPage
	return CustomerPage{
		Items:   items,
		Total:   total,
		Page:    f.Page,
		PerPage: f.PerPage,
		Pages:   pages,
		HasNext: f.Page < pages,
		HasPrev: f.Page > 1,
	}, nil
}

// FindCustomers returns every customer matching f, ignoring paging.
func (s *Store) FindCustomers(ctx context.Context, f CustomerFilter) ([]Customer, error) {
	where, args := customerWhere(f)
	items, err := queryAll(ctx, s.db, scanCustomer, "SELECT "+customerColumns+" FROM customers"+where+" ORDER BY customer_id", args...)
	if err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	return items, nil
}

// GetCustomer fetches one customer.
func (s *Store) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, "SELECT "+customerColumns+" FROM customers WHERE customer_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// CreateCustomer inserts a customer. Company names are unique.
func (s *Store) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	c.CompanyName = strings.TrimSpace(c.CompanyName)
	if c.CompanyName == "" {
		return Customer{}, invalidf("company_name is required")
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	if err := normalizeCustomer(&c); err != nil {
		return Customer{}, err
	}

	taken, err := s.exists(ctx, "SELECT 1 FROM customers WHERE company_name = ?", c.CompanyName)
	if err != nil {
		return Customer{}, fmt.Errorf("check customer: %w", err)
	}
	if taken {
		return Customer{}, fmt.Errorf("company %q already exists: %w", c.CompanyName, ErrConflict)
	}

	now := s.clock.Now().UTC().Format(TimestampLayout)
	res, err := s.execWithRetry(ctx,
		`INSERT INTO customers (
            company_name, contact_name, contact_title, phone, email, address, city, country,
            credit_limit, credit_rating, created_date, last_modified, status, industry,
            annual_revenue, employee_count
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CompanyName, nullableString(c.ContactName), nullableString(c.ContactTitle),
		nullableString(c.Phone), nullableString(c.Email), nullableString(c.Address),
		nullableString(c.City), nullableString(c.Country), nullableFloat(c.CreditLimit),
		nullableString(c.CreditRating), now, now, c.Status, nullableString(c.Industry),
		nullableFloat(c.AnnualRevenue), nullableInt(c.EmployeeCount),
	)
	if err != nil {
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Customer{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCustomer(ctx, id)
}

// UpdateCustomer applies patch to an existing customer and bumps its
// modification stamp.
func (s *Store) UpdateCustomer(ctx context.Context, id int64, patch CustomerPatch) (Customer, error) {
	c, err := s.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if patch.CompanyName != nil {
		name := strings.TrimSpace(*patch.CompanyName)
		if name == "" {
			return Customer{}, invalidf("company_name must not be empty")
		}
		if name != c.CompanyName {
			taken, err := s.exists(ctx, "SELECT 1 FROM customers WHERE company_name = ? AND customer_id <> ?", name, id)
			if err != nil {
				return Customer{}, fmt.Errorf("check customer: %w", err)
			}
			if taken {
				return Customer{}, fmt.Errorf("company %q already exists: %w", name, ErrConflict)
			}
		}
		c.CompanyName = name
	}
	applyString(&c.ContactName, patch.ContactName)
	applyString(&c.ContactTitle, patch.ContactTitle)
	applyString(&c.Phone, patch.Phone)
	applyString(&c.Email, patch.Email)
	applyString(&c.Address, patch.Address)
	applyString(&c.City, patch.City)
	applyString(&c.Country, patch.Country)
	applyString(&c.CreditRating, patch.CreditRating)
	applyString(&c.Industry, patch.Industry)
	if patch.CreditLimit != nil {
		c.CreditLimit = patch.CreditLimit
	}
	if patch.AnnualRevenue != nil {
		c.AnnualRevenue = patch.AnnualRevenue
	}
	if patch.EmployeeCount != nil {
		c.EmployeeCount = patch.EmployeeCount
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if err := normalizeCustomer(&c); err != nil {
		return Customer{}, err
	}

	c.LastModified = s.clock.Now().UTC().Format(TimestampLayout)
	_, err = s.execWithRetry(ctx,
		`UPDATE customers SET
            company_name = ?, contact_name = ?, contact_title = ?, phone = ?, email = ?,
            address = ?, city = ?, country = ?, credit_limit = ?, credit_rating = ?,
            last_modified = ?, status = ?, industry = ?, annual_revenue = ?, employee_count = ?
         WHERE customer_id = ?`,
		c.CompanyName, nullableString(c.ContactName), nullableString(c.ContactTitle),
		nullableString(c.Phone), nullableString(c.Email), nullableString(c.Address),
		nullableString(c.City), nullableString(c.Country), nullableFloat(c.CreditLimit),
		nullableString(c.CreditRating), c.LastModified, c.Status, nullableString(c.Industry),
		nullableFloat(c.AnnualRevenue), nullableInt(c.EmployeeCount), id,
	)
	if err != nil {
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

// DeleteCustomer removes a customer.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM customers WHERE customer_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("customer %d", id))
}

// CustomerStats counts customers by status and credit rating and lists the
// busiest cities and industries.
func (s *Store) CustomerStats(ctx context.Context) (CustomerStats, error) {
	stats := CustomerStats{ByCreditRating: make(map[string]int, len(CreditRatings))}
	for _, rating := range CreditRatings {
		stats.ByCreditRating[rating] = 0
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
         FROM customers`, StatusActive, StatusInactive,
	).Scan(&stats.Total, &stats.Active, &stats.Inactive)
	if err != nil {
		return CustomerStats{}, fmt.Errorf("count customers: %w", err)
	}

	ratings, err := s.groupCounts(ctx, "credit_rating", len(CreditRatings)+1)
	if err != nil {
		return CustomerStats{}, err
	}
	for _, rc := range ratings {
		if _, ok := stats.ByCreditRating[rc.Name]; ok {
			stats.ByCreditRating[rc.Name] = rc.Count
		}
	}
	if stats.TopCities, err = s.groupCounts(ctx, "city", topStatsLimit); err != nil {
		return CustomerStats{}, err
	}
	if stats.TopIndustries, err = s.groupCounts(ctx, "industry", topStatsLimit); err != nil {
		return CustomerStats{}, err
	}
	return stats, nil
}

// groupCounts counts customers per non-null value of column, largest first.
// column is always a literal from this file.
func (s *Store) groupCounts(ctx context.Context, column string, limit int) ([]NamedCount, error) {
	query := fmt.Sprintf(
		"SELECT %[1]s, COUNT(1) AS n FROM customers WHERE %[1]s IS NOT NULL GROUP BY %[1]s ORDER BY n DESC, %[1]s LIMIT ?",
		column)
	counts, err := queryAll(ctx, s.db, func(row rowScanner) (NamedCount, error) {
		var nc NamedCount
		err := row.Scan(&nc.Name, &nc.Count)
		return nc, err
	}, query, limit)
	if err != nil {
		return nil, fmt.Errorf("count customers by %s: %w", column, err)
	}
	return counts, nil
}

func normalizeCustomer(c *Customer) error {
	c.Status = normalizeCode(c.Status)
	switch c.Status {
	case StatusActive, StatusInactive:
	default:
		return invalidf("status must be %s or %s", StatusActive, StatusInactive)
	}
	if c.CreditRating != nil {
		rating := normalizeCode(*c.CreditRating)
		if rating == "" {
			c.CreditRating = nil
		} else if !ValidCreditRating(rating) {
			return invalidf("credit_rating must be one of %s", strings.Join(CreditRatings, ", "))
		} else {
			c.CreditRating = &rating
		}
	}
	if c.CreditLimit != nil && *c.CreditLimit < 0 {
		return invalidf("credit_limit must not be negative")
	}
	if c.EmployeeCount != nil && *c.EmployeeCount < 0 {
		return invalidf("employee_count must not be negative")
	}
	return nil
}

// ValidCreditRating reports whether rating is an accepted rating.
func ValidCreditRating(rating string) bool {
	for _, r := range CreditRatings {
		if r == rating {
			return true
		}
	}
	return false
}

// ValidStatus reports whether status is an accepted customer status.
func ValidStatus(status string) bool {
	return status == StatusActive || status == StatusInactive
}

func applyString(dst **string, src *string) {
	if src == nil {
		return
	}
	v := strings.TrimSpace(*src)
	if v == "" {
		*dst = nil
		return
	}
	*dst = &v
}
