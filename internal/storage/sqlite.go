package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "econbot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (State, error) {
	st := NewState()
	m, err := s.loadNotified(ctx)
	switch {
	case errors.Is(err, ErrCorrupt):
		s.log.Warn("notified records unreadable, starting empty", logx.Err(err))
	case err != nil:
		return State{}, fmt.Errorf("sqlite load notified: %w", err)
	default:
		st.Notified = m
	}
	p, err := s.loadPending(ctx)
	switch {
	case errors.Is(err, ErrCorrupt):
		s.log.Warn("pending results unreadable, starting empty", logx.Err(err))
	case err != nil:
		return State{}, fmt.Errorf("sqlite load pending: %w", err)
	default:
		st.Pending = p
	}
	return st, nil
}

func (s *sqliteStore) loadNotified(ctx context.Context) (map[string]NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id, phase, sent_at FROM notification_records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]NotificationRecord{}
	for rows.Next() {
		var id, phase, sentAt string
		if err := rows.Scan(&id, &phase, &sentAt); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, sentAt)
		if err != nil {
			return nil, fmt.Errorf("%w: sent_at %q", ErrCorrupt, sentAt)
		}
		p := Phase(phase)
		if p != PhasePre && p != PhasePost {
			continue
		}
		out[RecordKey(id, p)] = NotificationRecord{EventID: id, Phase: p, SentAt: at.UTC()}
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadPending(ctx context.Context) (map[string]PendingResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, scheduled_at, country, title, estimate, previous, created_at FROM pending_results`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]PendingResult{}
	for rows.Next() {
		var (
			p                  PendingResult
			scheduled, created string
			estimate, previous sql.NullString
		)
		if err := rows.Scan(&p.EventID, &scheduled, &p.Country, &p.Title, &estimate, &previous, &created); err != nil {
			return nil, err
		}
		if p.ScheduledAt, err = time.Parse(time.RFC3339Nano, scheduled); err != nil {
			return nil, fmt.Errorf("%w: scheduled_at %q", ErrCorrupt, scheduled)
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("%w: created_at %q", ErrCorrupt, created)
		}
		p.ScheduledAt, p.CreatedAt = p.ScheduledAt.UTC(), p.CreatedAt.UTC()
		p.Estimate, p.Previous = estimate.String, previous.String
		out[p.EventID] = p
	}
	return out, rows.Err()
}

// Save replaces both tables in one transaction.
func (s *sqliteStore) Save(ctx context.Context, st State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notification_records`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_results`); err != nil {
		return err
	}
	for _, r := range st.Notified {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notification_records(event_id, phase, sent_at) VALUES(?,?,?)`,
			r.EventID, string(r.Phase), r.SentAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
	}
	for id, p := range st.Pending {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pending_results(event_id, scheduled_at, country, title, estimate, previous, created_at)
			 VALUES(?,?,?,?,?,?,?)`,
			id, p.ScheduledAt.UTC().Format(time.RFC3339Nano), p.Country, p.Title,
			nullStr(p.Estimate), nullStr(p.Previous), p.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
