package primary

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gymdesk/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is the remote relational primary store.
type Postgres struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:     db,
		tracer: otel.Tracer("gymdesk/primary"),
	}
}

// OpenPostgres opens and pings a Postgres database.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgres(db), nil
}

// EnsureSchema creates the tables and views when they are missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

func (s *Postgres) start(ctx context.Context, op, entity string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("entity", entity))
	return s.tracer.Start(ctx, "primary."+op, trace.WithAttributes(attrs...))
}

func (s *Postgres) fail(span trace.Span, op, entity string, err error) error {
	err = storeErr(op, entity, classify(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Detail)
	}
	return err
}

func (s *Postgres) ListMembers(ctx context.Context) ([]domain.Member, error) {
	ctx, span := s.start(ctx, "list", "member")
	defer span.End()

	query := "SELECT " + strings.Join(memberColumns, ", ") + " FROM members ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, s.fail(span, "list", "member", err)
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		var row memberRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, s.fail(span, "list", "member", fmt.Errorf("scan member: %w", err))
		}
		members = append(members, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(span, "list", "member", err)
	}

	span.SetAttributes(attribute.Int("rows", len(members)))
	return members, nil
}

func (s *Postgres) GetMember(ctx context.Context, id string) (domain.Member, error) {
	ctx, span := s.start(ctx, "get", "member", attribute.String("id", id))
	defer span.End()

	query := "SELECT " + strings.Join(memberColumns, ", ") + " FROM members WHERE id = $1"
	var row memberRow
	if err := s.db.QueryRowContext(ctx, query, id).Scan(row.dest()...); err != nil {
		return domain.Member{}, s.fail(span, "get", "member", err)
	}
	return row.toDomain(), nil
}

// UpsertMember probes for the id and then updates or inserts. The two steps
// are not atomic: two writers racing on a new id can both take the insert
// branch, and the loser gets ErrDuplicate.
func (s *Postgres) UpsertMember(ctx context.Context, m domain.Member) error {
	ctx, span := s.start(ctx, "upsert", "member", attribute.String("id", m.ID))
	defer span.End()

	exists, err := s.exists(ctx, "members", m.ID)
	if err != nil {
		return s.fail(span, "upsert", "member", err)
	}

	row := toMemberRow(m)
	if exists {
		span.SetAttributes(attribute.String("branch", "update"))
		sets := make([]string, 0, len(memberColumns)-1)
		for i, col := range memberColumns[1:] {
			sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
		}
		query := "UPDATE members SET " + strings.Join(sets, ", ") + ", updated_at = NOW() WHERE id = $1"
		if _, err := s.db.ExecContext(ctx, query, row.args()...); err != nil {
			return s.fail(span, "upsert", "member", err)
		}
		return nil
	}

	span.SetAttributes(attribute.String("branch", "insert"))
	query := "INSERT INTO members (" + strings.Join(memberColumns, ", ") + ") VALUES (" + placeholders(len(memberColumns)) + ")"
	if _, err := s.db.ExecContext(ctx, query, row.args()...); err != nil {
		return s.fail(span, "upsert", "member", err)
	}
	return nil
}

func (s *Postgres) DeleteMember(ctx context.Context, id string) error {
	ctx, span := s.start(ctx, "delete", "member", attribute.String("id", id))
	defer span.End()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = $1", id); err != nil {
		return s.fail(span, "delete", "member", err)
	}
	return nil
}

func (s *Postgres) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	ctx, span := s.start(ctx, "list", "payment")
	defer span.End()

	payments, err := s.queryPayments(ctx, "SELECT "+strings.Join(paymentColumns, ", ")+" FROM payments ORDER BY date DESC")
	if err != nil {
		return nil, s.fail(span, "list", "payment", err)
	}
	span.SetAttributes(attribute.Int("rows", len(payments)))
	return payments, nil
}

func (s *Postgres) ListPaymentsByMember(ctx context.Context, memberID string) ([]domain.Payment, error) {
	ctx, span := s.start(ctx, "list_by_member", "payment", attribute.String("member_id", memberID))
	defer span.End()

	payments, err := s.queryPayments(ctx, "SELECT "+strings.Join(paymentColumns, ", ")+" FROM payments WHERE member_id = $1 ORDER BY date DESC", memberID)
	if err != nil {
		return nil, s.fail(span, "list_by_member", "payment", err)
	}
	return payments, nil
}

func (s *Postgres) queryPayments(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var row paymentRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, row.toDomain())
	}
	return payments, rows.Err()
}

func (s *Postgres) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	ctx, span := s.start(ctx, "get", "payment", attribute.String("id", id))
	defer span.End()

	query := "SELECT " + strings.Join(paymentColumns, ", ") + " FROM payments WHERE id = $1"
	var row paymentRow
	if err := s.db.QueryRowContext(ctx, query, id).Scan(row.dest()...); err != nil {
		return domain.Payment{}, s.fail(span, "get", "payment", err)
	}
	return row.toDomain(), nil
}

// UpsertPayment follows the same probe-then-write sequence as UpsertMember.
func (s *Postgres) UpsertPayment(ctx context.Context, p domain.Payment) error {
	ctx, span := s.start(ctx, "upsert", "payment", attribute.String("id", p.ID))
	defer span.End()

	exists, err := s.exists(ctx, "payments", p.ID)
	if err != nil {
		return s.fail(span, "upsert", "payment", err)
	}

	row := toPaymentRow(p)
	if exists {
		span.SetAttributes(attribute.String("branch", "update"))
		query := `
			UPDATE payments
			SET member_id = $2, amount = $3, date = $4, type = $5, description = $6, method = $7, updated_at = NOW()
			WHERE id = $1
		`
		if _, err := s.db.ExecContext(ctx, query, row.args()...); err != nil {
			return s.fail(span, "upsert", "payment", err)
		}
		return nil
	}

	span.SetAttributes(attribute.String("branch", "insert"))
	query := "INSERT INTO payments (" + strings.Join(paymentColumns, ", ") + ") VALUES (" + placeholders(len(paymentColumns)) + ")"
	if _, err := s.db.ExecContext(ctx, query, row.args()...); err != nil {
		return s.fail(span, "upsert", "payment", err)
	}
	return nil
}

func (s *Postgres) GetSettings(ctx context.Context) (domain.Settings, error) {
	ctx, span := s.start(ctx, "get", "settings")
	defer span.End()

	var row settingsRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, gym_name, address, phone, email, membership_prices
		FROM settings
		ORDER BY created_at ASC
		LIMIT 1
	`).Scan(&row.ID, &row.GymName, &row.Address, &row.Phone, &row.Email, &row.MembershipPrices)
	if err != nil {
		return domain.Settings{}, s.fail(span, "get", "settings", err)
	}
	settings, err := row.toDomain()
	if err != nil {
		return domain.Settings{}, s.fail(span, "get", "settings", err)
	}
	return settings, nil
}

// UpsertSettings updates the single settings record, inserting it if none exists.
func (s *Postgres) UpsertSettings(ctx context.Context, settings domain.Settings) error {
	ctx, span := s.start(ctx, "upsert", "settings")
	defer span.End()

	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM settings ORDER BY created_at ASC LIMIT 1").Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return s.fail(span, "upsert", "settings", err)
	}
	insert := id == ""
	if insert {
		id = uuid.NewString()
	}

	row, err := toSettingsRow(id, settings)
	if err != nil {
		return s.fail(span, "upsert", "settings", err)
	}

	if insert {
		span.SetAttributes(attribute.String("branch", "insert"))
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO settings (id, gym_name, address, phone, email, membership_prices)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, row.ID, row.GymName, row.Address, row.Phone, row.Email, row.MembershipPrices)
	} else {
		span.SetAttributes(attribute.String("branch", "update"))
		_, err = s.db.ExecContext(ctx, `
			UPDATE settings
			SET gym_name = $2, address = $3, phone = $4, email = $5, membership_prices = $6, updated_at = NOW()
			WHERE id = $1
		`, row.ID, row.GymName, row.Address, row.Phone, row.Email, row.MembershipPrices)
	}
	if err != nil {
		return s.fail(span, "upsert", "settings", err)
	}
	return nil
}

// MemberPaymentHistory reads the member_payment_history view.
func (s *Postgres) MemberPaymentHistory(ctx context.Context, memberNumber string) ([]domain.PaymentHistoryEntry, error) {
	ctx, span := s.start(ctx, "history", "payment", attribute.String("member_number", memberNumber))
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT member_number, first_name, last_name, amount, date, type, method, description
		FROM member_payment_history
		WHERE member_number = $1
		ORDER BY date DESC
	`, memberNumber)
	if err != nil {
		return nil, s.fail(span, "history", "payment", err)
	}
	defer rows.Close()

	entries := make([]domain.PaymentHistoryEntry, 0)
	for rows.Next() {
		var e domain.PaymentHistoryEntry
		if err := rows.Scan(&e.MemberNumber, &e.FirstName, &e.LastName, &e.Amount, &e.Date, &e.Type, &e.Method, &e.Description); err != nil {
			return nil, s.fail(span, "history", "payment", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(span, "history", "payment", err)
	}
	return entries, nil
}

// PaymentSummary reads the payment_summary view, newest month first.
func (s *Postgres) PaymentSummary(ctx context.Context) ([]domain.PaymentSummaryRow, error) {
	ctx, span := s.start(ctx, "summary", "payment")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT month, type, method, payment_count, total_amount, average_amount
		FROM payment_summary
		ORDER BY month DESC, type, method
	`)
	if err != nil {
		return nil, s.fail(span, "summary", "payment", err)
	}
	defer rows.Close()

	summary := make([]domain.PaymentSummaryRow, 0)
	for rows.Next() {
		var r domain.PaymentSummaryRow
		if err := rows.Scan(&r.Month, &r.Type, &r.Method, &r.PaymentCount, &r.TotalAmount, &r.AverageAmount); err != nil {
			return nil, s.fail(span, "summary", "payment", err)
		}
		summary = append(summary, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(span, "summary", "payment", err)
	}
	return summary, nil
}

func (s *Postgres) exists(ctx context.Context, table, id string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = $1", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ps, ", ")
}
