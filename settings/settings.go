// Package settings persists the user's pilot preferences in SQLite: which
// platforms are enabled, the last tone used, the rewrite API endpoint and
// whether onboarding is done. No message content is ever stored here.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/proseai/dbopen"
	"github.com/hazyhaar/proseai/horosafe"
	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/watch"
)

// Storage keys.
const (
	KeyOnboardingCompleted = "onboardingCompleted"
	KeySelectedApps        = "selectedApps"
	KeyLastUsedTone        = "lastUsedTone"
	KeyAPIEndpoint         = "apiEndpoint"
)

// DefaultAPIEndpoint is the rewrite API used before one is configured.
const DefaultAPIEndpoint = "http://localhost:3000"

// ErrUnknownKey is returned for keys outside the four above.
var ErrUnknownKey = errors.New("settings: unknown key")

// Settings is the full preference set.
type Settings struct {
	SelectedPlatforms   []string `json:"selectedApps"`
	LastUsedTone        string   `json:"lastUsedTone"`
	APIEndpoint         string   `json:"apiEndpoint"`
	OnboardingCompleted bool     `json:"onboardingCompleted"`
}

// Defaults returns the preferences of a fresh install.
func Defaults() Settings {
	return Settings{
		SelectedPlatforms: []string{},
		LastUsedTone:      rewrite.DefaultTone,
		APIEndpoint:       DefaultAPIEndpoint,
	}
}

// Enabled reports whether platform id is selected.
func (s Settings) Enabled(id string) bool {
	return slices.Contains(s.SelectedPlatforms, id)
}

// Keys lists the storage keys in display order.
func Keys() []string {
	return []string{KeyOnboardingCompleted, KeySelectedApps, KeyLastUsedTone, KeyAPIEndpoint}
}

// Store reads and writes Settings in a settings table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wraps db. The schema must already be applied (Init).
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Get returns the stored settings over Defaults. Unknown keys are ignored.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: get: %w", err)
	}
	defer rows.Close()

	out := Defaults()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("settings: scan: %w", err)
		}
		if err := decodeInto(&out, key, value); err != nil {
			s.logger.WarnContext(ctx, "settings: bad stored value", "key", key, "error", err)
		}
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("settings: rows: %w", err)
	}
	return out, nil
}

func decodeInto(st *Settings, key, value string) error {
	var target any
	switch key {
	case KeyOnboardingCompleted:
		target = &st.OnboardingCompleted
	case KeySelectedApps:
		target = &st.SelectedPlatforms
	case KeyLastUsedTone:
		target = &st.LastUsedTone
	case KeyAPIEndpoint:
		target = &st.APIEndpoint
	default:
		return nil
	}
	return json.Unmarshal([]byte(value), target)
}

// Rev returns the current revision. It increases on every write.
func (s *Store) Rev(ctx context.Context) (int64, error) {
	return watch.MaxColumnDetector("settings", "rev")(ctx, s.db)
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("settings: encode %s: %w", key, err)
	}
	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, rev, updated_at)
			VALUES (?, ?, (SELECT COALESCE(MAX(rev), 0) + 1 FROM settings), ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value, rev = excluded.rev, updated_at = excluded.updated_at`,
			key, string(data), time.Now().Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("settings: put %s: %w", key, err)
	}
	s.logger.DebugContext(ctx, "settings: updated", "key", key)
	return nil
}

// SetLastUsedTone records the tone of the last applied rewrite.
func (s *Store) SetLastUsedTone(ctx context.Context, tone string) error {
	if !rewrite.IsValidTone(tone) {
		return fmt.Errorf("settings: unknown tone %q", tone)
	}
	return s.put(ctx, KeyLastUsedTone, tone)
}

// SetSelectedPlatforms replaces the enabled platform list. IDs are
// deduplicated; empty IDs are dropped.
func (s *Store) SetSelectedPlatforms(ctx context.Context, ids []string) error {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		if err := horosafe.ValidateIdentifier(id); err != nil {
			return fmt.Errorf("settings: platform %q: %w", id, err)
		}
		out = append(out, id)
	}
	return s.put(ctx, KeySelectedApps, out)
}

// SetOnboardingCompleted marks onboarding done or not.
func (s *Store) SetOnboardingCompleted(ctx context.Context, done bool) error {
	return s.put(ctx, KeyOnboardingCompleted, done)
}

// SetAPIEndpoint sets the rewrite API base URL. Loopback and private hosts
// are allowed since the API usually runs next to the pilot.
func (s *Store) SetAPIEndpoint(ctx context.Context, endpoint string) error {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if _, err := horosafe.ValidateEndpoint(endpoint, horosafe.EndpointPolicy{AllowLoopback: true, AllowPrivate: true}); err != nil {
		return fmt.Errorf("settings: endpoint: %w", err)
	}
	return s.put(ctx, KeyAPIEndpoint, endpoint)
}

// SetString parses raw for key the way the CLI accepts it: a bool for
// onboardingCompleted, a comma-separated list for selectedApps. Platform
// IDs are checked against reg when it is non-nil.
func (s *Store) SetString(ctx context.Context, key, raw string, reg *platform.Registry) error {
	switch key {
	case KeyOnboardingCompleted:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("settings: %s: %w", key, err)
		}
		return s.SetOnboardingCompleted(ctx, b)
	case KeySelectedApps:
		ids := strings.Split(raw, ",")
		if reg != nil {
			for _, id := range ids {
				id = strings.TrimSpace(id)
				if _, ok := reg.Get(id); id != "" && !ok {
					return fmt.Errorf("settings: unknown platform %q", id)
				}
			}
		}
		return s.SetSelectedPlatforms(ctx, ids)
	case KeyLastUsedTone:
		return s.SetLastUsedTone(ctx, strings.TrimSpace(raw))
	case KeyAPIEndpoint:
		return s.SetAPIEndpoint(ctx, raw)
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Watch calls fn with fresh settings whenever any connection writes to the
// table. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, interval time.Duration, fn func(context.Context, Settings) error) {
	w := watch.New(s.db, watch.Options{
		Interval: interval,
		Detector: watch.MaxColumnDetector("settings", "rev"),
		Logger:   s.logger,
	})
	w.OnChange(ctx, func(ctx context.Context) error {
		st, err := s.Get(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, st)
	})
}
