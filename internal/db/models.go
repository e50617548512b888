package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leozw/uptime-dashboard/internal/checks"
)

type Site struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	URL             string     `json:"url" db:"url"`
	Checks          KindList   `json:"checks" db:"checks"`
	IntervalSeconds int64      `json:"interval_seconds" db:"interval_seconds"`
	Enabled         bool       `json:"enabled" db:"enabled"`
	LastCheckedAt   *time.Time `json:"last_checked_at" db:"last_checked_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Due reports whether the site should be checked at now.
func (s *Site) Due(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.LastCheckedAt == nil {
		return true
	}
	return !now.Before(s.LastCheckedAt.Add(time.Duration(s.IntervalSeconds) * time.Second))
}

// CheckRecord is one normalized result of one check kind.
type CheckRecord struct {
	ID         string        `json:"id" db:"id"`
	SiteID     string        `json:"site_id" db:"site_id"`
	Kind       checks.Kind   `json:"kind" db:"kind"`
	Status     checks.Status `json:"status" db:"status"`
	Message    string        `json:"message" db:"message"`
	Error      string        `json:"error,omitempty" db:"error"`
	DurationMs float64       `json:"duration_ms" db:"duration_ms"`
	CheckedAt  time.Time     `json:"checked_at" db:"checked_at"`
}

// RecordsFromResults flattens classified results into records sharing one
// timestamp, in canonical kind order.
func RecordsFromResults(siteID string, results map[checks.Kind]checks.Result, durationMs float64, checkedAt time.Time) []*CheckRecord {
	records := make([]*CheckRecord, 0, len(results))
	for _, kind := range checks.AllKinds {
		res, ok := results[kind]
		if !ok {
			continue
		}
		records = append(records, &CheckRecord{
			ID:         uuid.New().String(),
			SiteID:     siteID,
			Kind:       kind,
			Status:     res.Status,
			Message:    res.Message,
			Error:      res.Error,
			DurationMs: durationMs,
			CheckedAt:  checkedAt.UTC(),
		})
	}
	return records
}

// Setting is an opaque JSON value stored under a key.
type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     RawJSON   `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// KindList is stored as a JSON array in a text column.
type KindList []checks.Kind

func (k KindList) Value() (driver.Value, error) {
	if k == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]checks.Kind(k))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (k *KindList) Scan(value interface{}) error {
	data, err := textBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*k = KindList{}
		return nil
	}
	return json.Unmarshal(data, k)
}

// RawJSON is a JSON document stored verbatim in a text column.
type RawJSON json.RawMessage

func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	return string(j), nil
}

func (j *RawJSON) Scan(value interface{}) error {
	data, err := textBytes(value)
	if err != nil {
		return err
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

func textBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}
