package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/leozw/uptime-dashboard/internal/checks"
	"github.com/leozw/uptime-dashboard/internal/histogram"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Site operations
func (r *Repository) CreateSite(ctx context.Context, s *Site) error {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Checks == nil {
		s.Checks = KindList{}
	}
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `
        INSERT INTO sites (
            id, name, url, checks, interval_seconds, enabled,
            last_checked_at, created_at, updated_at
        ) VALUES (
            :id, :name, :url, :checks, :interval_seconds, :enabled,
            :last_checked_at, :created_at, :updated_at
        )`

	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

func (r *Repository) GetSite(ctx context.Context, id string) (*Site, error) {
	var s Site
	query := r.db.Rebind(`SELECT * FROM sites WHERE id = ?`)
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("site %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return &s, nil
}

func (r *Repository) ListSites(ctx context.Context) ([]*Site, error) {
	sites := []*Site{}
	if err := r.db.SelectContext(ctx, &sites, `SELECT * FROM sites ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

func (r *Repository) UpdateSite(ctx context.Context, s *Site) error {
	s.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE sites SET
            name = :name,
            url = :url,
            checks = :checks,
            interval_seconds = :interval_seconds,
            enabled = :enabled,
            updated_at = :updated_at
        WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("failed to update site: %w", err)
	}
	return expectRow(res, "site", s.ID)
}

func (r *Repository) DeleteSite(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sites WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	return expectRow(res, "site", id)
}

// DueSites returns the enabled sites whose interval has elapsed at now.
func (r *Repository) DueSites(ctx context.Context, now time.Time) ([]*Site, error) {
	sites := []*Site{}
	query := r.db.Rebind(`SELECT * FROM sites WHERE enabled = ? ORDER BY last_checked_at, id`)
	if err := r.db.SelectContext(ctx, &sites, query, true); err != nil {
		return nil, fmt.Errorf("failed to list due sites: %w", err)
	}

	due := sites[:0]
	for _, s := range sites {
		if s.Due(now) {
			due = append(due, s)
		}
	}
	return due, nil
}

// Check records

// SaveCheckRecords stores one run of checks and moves the site's
// last_checked_at forward.
func (r *Repository) SaveCheckRecords(ctx context.Context, siteID string, records []*CheckRecord, checkedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO check_records (
            id, site_id, kind, status, message, error, duration_ms, checked_at
        ) VALUES (
            :id, :site_id, :kind, :status, :message, :error, :duration_ms, :checked_at
        )`

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		rec.SiteID = siteID
		if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
			return fmt.Errorf("failed to save %s record: %w", rec.Kind, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE sites SET last_checked_at = ? WHERE id = ?`),
		checkedAt.UTC(), siteID)
	if err != nil {
		return fmt.Errorf("failed to update last check: %w", err)
	}
	if err := expectRow(res, "site", siteID); err != nil {
		return err
	}

	return tx.Commit()
}

// LatestCheckRecords returns the most recent record of every kind checked
// for the site.
func (r *Repository) LatestCheckRecords(ctx context.Context, siteID string) ([]*CheckRecord, error) {
	records := []*CheckRecord{}
	query := r.db.Rebind(`
        SELECT r.* FROM check_records r
        JOIN (
            SELECT kind, MAX(checked_at) AS checked_at
            FROM check_records
            WHERE site_id = ?
            GROUP BY kind
        ) latest ON r.kind = latest.kind AND r.checked_at = latest.checked_at
        WHERE r.site_id = ?
        ORDER BY r.kind`)

	if err := r.db.SelectContext(ctx, &records, query, siteID, siteID); err != nil {
		return nil, fmt.Errorf("failed to get latest records: %w", err)
	}
	return records, nil
}

// CheckHistory returns the newest records of one kind, newest first.
func (r *Repository) CheckHistory(ctx context.Context, siteID string, kind checks.Kind, limit int) ([]*CheckRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	records := []*CheckRecord{}
	query := r.db.Rebind(`
        SELECT * FROM check_records
        WHERE site_id = ? AND kind = ?
        ORDER BY checked_at DESC
        LIMIT ?`)

	if err := r.db.SelectContext(ctx, &records, query, siteID, kind, limit); err != nil {
		return nil, fmt.Errorf("failed to get check history: %w", err)
	}
	return records, nil
}

// UptimeSamples returns the uptime outcomes since the given time, oldest
// first. Anything but success counts as down.
func (r *Repository) UptimeSamples(ctx context.Context, siteID string, since time.Time) ([]histogram.Sample, error) {
	var rows []struct {
		CheckedAt time.Time     `db:"checked_at"`
		Status    checks.Status `db:"status"`
	}
	query := r.db.Rebind(`
        SELECT checked_at, status FROM check_records
        WHERE site_id = ? AND kind = ? AND checked_at >= ?
        ORDER BY checked_at`)

	if err := r.db.SelectContext(ctx, &rows, query, siteID, checks.KindUptime, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get uptime samples: %w", err)
	}

	samples := make([]histogram.Sample, len(rows))
	for i, row := range rows {
		samples[i] = histogram.Sample{CheckedAt: row.CheckedAt, Up: row.Status == checks.StatusSuccess}
	}
	return samples, nil
}

// Settings

func (r *Repository) GetSetting(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	query := r.db.Rebind(`SELECT * FROM settings WHERE key = ?`)
	if err := r.db.GetContext(ctx, &s, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("setting %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return &s, nil
}

func (r *Repository) PutSetting(ctx context.Context, key string, value RawJSON) (*Setting, error) {
	s := &Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	query := `
        INSERT INTO settings (key, value, updated_at)
        VALUES (:key, :value, :updated_at)
        ON CONFLICT (key) DO UPDATE SET
            value = excluded.value,
            updated_at = excluded.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return nil, fmt.Errorf("failed to put setting: %w", err)
	}
	return s, nil
}

func (r *Repository) DeleteSetting(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM settings WHERE key = ?`), key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return expectRow(res, "setting", key)
}

func (r *Repository) ListSettings(ctx context.Context) ([]*Setting, error) {
	settings := []*Setting{}
	if err := r.db.SelectContext(ctx, &settings, `SELECT * FROM settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

func expectRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}
