package bonus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/compensation/internal/platform/db"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store is the persistence surface of the bonus engine.
type Store interface {
	CalculatorStore
	ListVendorsByIDs(ctx context.Context, ids []int64) ([]Vendor, error)
	ListInvoiceRows(ctx context.Context, filter ReportFilter, skip, limit int) ([]Invoice, int, error)
	ReportTotals(ctx context.Context, filter ReportFilter) (decimal.Decimal, []VendorSubtotal, error)
	ReportWatermark(ctx context.Context, filter ReportFilter) (string, error)
	AssignClient(ctx context.Context, assignment CommissionAssignment) error
	WithReadTx(ctx context.Context, fn func(context.Context, Store) error) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository builds a Repository backed by pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithReadTx runs fn against a repository bound to a read-only snapshot.
func (r *Repository) WithReadTx(ctx context.Context, fn func(context.Context, Store) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx})
	})
}

const vendorColumns = `id, full_name, tax_id, base_salary`

// ListVendors returns vendors ordered by ID, with their assignments.
func (r *Repository) ListVendors(ctx context.Context, filter VendorFilter) ([]Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors`
	var args []interface{}
	if filter.ID != nil {
		query += ` WHERE id = $1`
		args = append(args, *filter.ID)
	}
	query += ` ORDER BY id`
	return r.queryVendors(ctx, query, args...)
}

// ListVendorsByIDs returns the subset of ids that exist, with assignments.
func (r *Repository) ListVendorsByIDs(ctx context.Context, ids []int64) ([]Vendor, error) {
	if len(ids) == 0 {
		return []Vendor{}, nil
	}
	return r.queryVendors(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = ANY($1) ORDER BY id`, ids)
}

func (r *Repository) queryVendors(ctx context.Context, query string, args ...interface{}) ([]Vendor, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vendors := make([]Vendor, 0)
	index := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		var v Vendor
		var salary pgtype.Numeric
		if err := rows.Scan(&v.ID, &v.Name, &v.TaxID, &salary); err != nil {
			return nil, err
		}
		v.BaseSalary = numericToDecimal(salary)
		index[v.ID] = len(vendors)
		ids = append(ids, v.ID)
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return vendors, nil
	}

	assignments, err := r.db.Query(ctx, `SELECT vendor_id, client_id, rate FROM vendor_client_rates WHERE vendor_id = ANY($1) ORDER BY vendor_id, client_id`, ids)
	if err != nil {
		return nil, err
	}
	defer assignments.Close()
	for assignments.Next() {
		var a CommissionAssignment
		var rate pgtype.Numeric
		if err := assignments.Scan(&a.VendorID, &a.ClientID, &rate); err != nil {
			return nil, err
		}
		a.Rate = numericToDecimal(rate)
		if pos, ok := index[a.VendorID]; ok {
			vendors[pos].Assignments = append(vendors[pos].Assignments, a)
		}
	}
	return vendors, assignments.Err()
}

const invoiceColumns = `i.id, i.order_number, i.case_number, i.issued_on, i.fees, i.expenses, i.vendor_id, i.client_id, i.created_at`

// ListVendorInvoices returns invoices of vendorID issued within [start, end].
func (r *Repository) ListVendorInvoices(ctx context.Context, vendorID int64, start, end time.Time) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		WHERE i.vendor_id = $1 AND i.issued_on BETWEEN $2 AND $3
		ORDER BY i.issued_on DESC, i.id DESC`,
		vendorID, dateParam(start), dateParam(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

// ListInvoiceRows returns one page of invoices matching filter and the
// total number of matches.
func (r *Repository) ListInvoiceRows(ctx context.Context, filter ReportFilter, skip, limit int) ([]Invoice, int, error) {
	where, args, argPos := reportWhere(filter)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM invoices i LEFT JOIN vendors v ON v.id = i.vendor_id %s", where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM invoices i
		LEFT JOIN vendors v ON v.id = i.vendor_id
		%s
		ORDER BY i.issued_on DESC, i.id DESC
		LIMIT $%d OFFSET $%d
	`, invoiceColumns, where, argPos, argPos+1)
	args = append(args, limit, skip)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	invoices, err := scanInvoices(rows)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// ReportTotals sums fees over every invoice matching filter, overall and
// per vendor. Subtotals are ordered by fees descending then vendor ID.
func (r *Repository) ReportTotals(ctx context.Context, filter ReportFilter) (decimal.Decimal, []VendorSubtotal, error) {
	where, args, _ := reportWhere(filter)

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT i.vendor_id, COALESCE(v.full_name, ''), SUM(i.fees)
		FROM invoices i
		LEFT JOIN vendors v ON v.id = i.vendor_id
		%s
		GROUP BY i.vendor_id, v.full_name
		ORDER BY SUM(i.fees) DESC, i.vendor_id
	`, where), args...)
	if err != nil {
		return decimal.Zero, nil, err
	}
	defer rows.Close()

	total := decimal.Zero
	subtotals := make([]VendorSubtotal, 0)
	for rows.Next() {
		var s VendorSubtotal
		var fees pgtype.Numeric
		if err := rows.Scan(&s.VendorID, &s.VendorName, &fees); err != nil {
			return decimal.Zero, nil, err
		}
		s.TotalFees = numericToDecimal(fees)
		total = total.Add(s.TotalFees)
		subtotals = append(subtotals, s)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, nil, err
	}
	return total, subtotals, nil
}

// ReportWatermark summarises the state behind a report: the matching
// invoices (count, newest insert, row checksum), the rate table and the
// vendor and client records. Any committed change to them yields a new value.
func (r *Repository) ReportWatermark(ctx context.Context, filter ReportFilter) (string, error) {
	where, args, _ := reportWhere(filter)

	var count, checksum int64
	var lastCreated, rates, names string
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(MAX(i.created_at)::text, ''),
			COALESCE(SUM(hashtext(concat_ws('|', i.id, i.vendor_id, i.client_id, i.case_number, i.issued_on, i.fees, i.expenses))), 0),
			(SELECT COUNT(*)::text || ':' || COALESCE(SUM(rate), 0)::text FROM vendor_client_rates),
			(SELECT COALESCE(MAX(updated_at)::text, '') FROM vendors) || ':' ||
				(SELECT COALESCE(MAX(updated_at)::text, '') FROM clients)
		FROM invoices i
		LEFT JOIN vendors v ON v.id = i.vendor_id
		%s
	`, where), args...).Scan(&count, &lastCreated, &checksum, &rates, &names)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%s/%d/%s/%s", count, lastCreated, checksum, rates, names), nil
}

// ListClients returns the clients among ids that exist.
func (r *Repository) ListClients(ctx context.Context, ids []int64) ([]Client, error) {
	if len(ids) == 0 {
		return []Client{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, legal_name, tax_id, COALESCE(industry, ''), COALESCE(location, '')
		FROM clients
		WHERE id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]Client, 0, len(ids))
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.Industry, &c.Location); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// AssignClient stores a new vendor/client rate.
func (r *Repository) AssignClient(ctx context.Context, assignment CommissionAssignment) error {
	_, err := r.db.Exec(ctx, `INSERT INTO vendor_client_rates (vendor_id, client_id, rate) VALUES ($1, $2, $3)`,
		assignment.VendorID, assignment.ClientID, assignment.Rate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ErrDuplicateAssignment
			case pgForeignKeyViolation:
				return fmt.Errorf("%w: vendor %d or client %d", ErrNotFound, assignment.VendorID, assignment.ClientID)
			}
		}
		return err
	}
	return nil
}

func reportWhere(filter ReportFilter) (string, []interface{}, int) {
	var conditions []string
	var args []interface{}
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("i.issued_on BETWEEN $%d AND $%d", argPos, argPos+1))
	args = append(args, dateParam(filter.StartDate), dateParam(filter.EndDate))
	argPos += 2

	if filter.CaseNumber != nil && strings.TrimSpace(*filter.CaseNumber) != "" {
		conditions = append(conditions, fmt.Sprintf("i.case_number ILIKE $%d", argPos))
		args = append(args, "%"+strings.TrimSpace(*filter.CaseNumber)+"%")
		argPos++
	}
	if filter.VendorID != nil {
		conditions = append(conditions, fmt.Sprintf("i.vendor_id = $%d", argPos))
		args = append(args, *filter.VendorID)
		argPos++
	}
	if filter.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("i.client_id = $%d", argPos))
		args = append(args, *filter.ClientID)
		argPos++
	}
	if filter.VendorTaxID != nil {
		if cleaned := NormalizeTaxID(*filter.VendorTaxID); cleaned != "" {
			conditions = append(conditions, fmt.Sprintf("regexp_replace(COALESCE(v.tax_id, ''), '[.-]', '', 'g') ILIKE $%d", argPos))
			args = append(args, "%"+cleaned+"%")
			argPos++
		}
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, argPos
}

func scanInvoices(rows pgx.Rows) ([]Invoice, error) {
	invoices := make([]Invoice, 0)
	for rows.Next() {
		var inv Invoice
		var caseNumber pgtype.Text
		var issued pgtype.Date
		var fees, expenses pgtype.Numeric
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&inv.ID, &inv.OrderNumber, &caseNumber, &issued, &fees, &expenses, &inv.VendorID, &inv.ClientID, &createdAt); err != nil {
			return nil, err
		}
		if caseNumber.Valid {
			inv.CaseNumber = &caseNumber.String
		}
		if issued.Valid {
			inv.IssuedAt = issued.Time
		}
		if createdAt.Valid {
			inv.CreatedAt = createdAt.Time
		}
		inv.Fees = numericToDecimal(fees)
		inv.Expenses = numericToDecimal(expenses)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// NormalizeTaxID strips the dot and dash separators of a tax ID.
func NormalizeTaxID(raw string) string {
	return strings.NewReplacer(".", "", "-", "").Replace(strings.TrimSpace(raw))
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil || n.NaN {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func dateParam(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: DateOnly(t), Valid: true}
}
