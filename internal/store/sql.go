package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
)

const leadColumns = `id, owner_handle, project_name, project_url, project_description, email,
last_activity, created_at, status, email_sent, email_sent_at, email_approved,
email_pending_approval, ai_score, ai_recommendation, ai_analysis`

// SQLStore is the database-backed LeadStore. The unique index on
// (owner_handle, project_name) carries the identity invariant, so several
// processes may write concurrently.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	log     *zap.Logger
	now     func() time.Time
}

func NewSQLStore(ctx context.Context, db *sql.DB, d Dialect, log *zap.Logger) (*SQLStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := Migrate(ctx, db, d); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{db: db, dialect: d, log: log.Named("store.sql"), now: time.Now}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) List(ctx context.Context) ([]domain.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY seq;`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := []domain.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			s.log.Warn("skipping malformed row", zap.Error(err))
			continue
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, id string) (domain.Lead, error) {
	q := s.dialect.rebind(`SELECT ` + leadColumns + ` FROM leads WHERE id = ?;`)
	return getLead(s.db.QueryRowContext(ctx, q, id))
}

func (s *SQLStore) Exists(ctx context.Context, owner, project string) (bool, error) {
	var one int
	q := s.dialect.rebind(`SELECT 1 FROM leads WHERE owner_handle = ? AND project_name = ? LIMIT 1;`)
	err := s.db.QueryRowContext(ctx, q, owner, project).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStore) Insert(ctx context.Context, c domain.Lead) (domain.Lead, bool, error) {
	l, err := prepare(c, s.now())
	if err != nil {
		return domain.Lead{}, false, err
	}

	q := s.dialect.rebind(`
INSERT INTO leads (` + leadColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (owner_handle, project_name) DO NOTHING;`)
	res, err := s.db.ExecContext(ctx, q, leadArgs(l)...)
	if err != nil {
		return domain.Lead{}, false, fmt.Errorf("insert lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Lead{}, false, err
	}
	if n > 0 {
		return l, true, nil
	}

	q = s.dialect.rebind(`SELECT ` + leadColumns + ` FROM leads WHERE owner_handle = ? AND project_name = ?;`)
	existing, err := getLead(s.db.QueryRowContext(ctx, q, l.OwnerHandle, l.ProjectName))
	if err != nil {
		return domain.Lead{}, false, err
	}
	return existing, false, nil
}

func (s *SQLStore) Update(ctx context.Context, id string, p domain.Patch) (domain.Lead, error) {
	if !validPatch(p) {
		return domain.Lead{}, ErrInvalidLead
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() { _ = tx.Rollback() }()

	sel := `SELECT ` + leadColumns + ` FROM leads WHERE id = ?`
	if s.dialect == DialectPostgres {
		sel += ` FOR UPDATE`
	}
	cur, err := getLead(tx.QueryRowContext(ctx, s.dialect.rebind(sel+`;`), id))
	if err != nil {
		return domain.Lead{}, err
	}
	l := p.Apply(cur)

	q := s.dialect.rebind(`
UPDATE leads SET
  project_url = ?, project_description = ?, email = ?, last_activity = ?,
  status = ?, email_sent = ?, email_sent_at = ?, email_approved = ?,
  email_pending_approval = ?, ai_score = ?, ai_recommendation = ?, ai_analysis = ?
WHERE id = ?;`)
	if _, err := tx.ExecContext(ctx, q,
		l.ProjectURL, l.ProjectDescription, l.Email, formatTime(l.LastActivity),
		string(l.Status), l.EmailSent, formatTimePtr(l.EmailSentAt), l.EmailApproved,
		l.EmailPendingApproval, nullFloat(l.AIScore), string(l.AIRecommendation), l.AIAnalysis,
		l.ID,
	); err != nil {
		return domain.Lead{}, fmt.Errorf("update lead: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

func leadArgs(l domain.Lead) []any {
	return []any{
		l.ID, l.OwnerHandle, l.ProjectName, l.ProjectURL, l.ProjectDescription, l.Email,
		formatTime(l.LastActivity), formatTime(l.CreatedAt), string(l.Status), l.EmailSent,
		formatTimePtr(l.EmailSentAt), l.EmailApproved, l.EmailPendingApproval,
		nullFloat(l.AIScore), string(l.AIRecommendation), l.AIAnalysis,
	}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

func getLead(r scanner) (domain.Lead, error) {
	l, err := scanLead(r)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return l, err
}

// scanLead reuses the cell decoder so SQL rows obey the same rules as CSV rows.
func scanLead(r scanner) (domain.Lead, error) {
	var (
		cells                           = make([]string, len(Header))
		sent, approved, pending         bool
		score                           sql.NullFloat64
		lastActivity, createdAt, sentAt string
		status, recommendation          string
	)
	err := r.Scan(
		&cells[0], &cells[1], &cells[2], &cells[3], &cells[4], &cells[5],
		&lastActivity, &createdAt, &status, &sent, &sentAt, &approved,
		&pending, &score, &recommendation, &cells[15],
	)
	if err != nil {
		return domain.Lead{}, err
	}
	cells[6] = lastActivity
	cells[7] = createdAt
	cells[8] = status
	cells[9] = fmt.Sprint(sent)
	cells[10] = sentAt
	cells[11] = fmt.Sprint(approved)
	cells[12] = fmt.Sprint(pending)
	if score.Valid {
		cells[13] = formatFloatPtr(&score.Float64)
	}
	cells[14] = recommendation
	return DecodeFields(cells)
}
