package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const (
	KeyCountry  = "country_code"
	KeyCurrency = "currency_code"
	KeyLanguage = "language_code"
)

// Store supplies the user's locale preferences. The polling core only reads
// them.
type Store interface {
	CountryCode() string
	CurrencyCode() string
	LanguageCode() string
}

type Static struct {
	Country  string
	Currency string
	Language string
}

func (s Static) CountryCode() string  { return s.Country }
func (s Static) CurrencyCode() string { return s.Currency }
func (s Static) LanguageCode() string { return s.Language }

// SQLStore reads preferences from a key/value table and keeps them in memory.
// Missing keys fall back to the defaults it was built with.
type SQLStore struct {
	db       *sql.DB
	defaults Static
	logger   *slog.Logger

	mu     sync.RWMutex
	values map[string]string
}

const schema = `CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create preferences table: %w", err)
	}
	return nil
}

func NewSQLStore(ctx context.Context, db *sql.DB, defaults Static, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{
		db:       db,
		defaults: defaults,
		logger:   logger,
		values:   map[string]string{},
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Refresh(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences WHERE key IN (?, ?, ?)`,
		KeyCountry, KeyCurrency, KeyLanguage)
	if err != nil {
		return fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scan preference: %w", err)
		}
		values[k] = strings.TrimSpace(v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate preferences: %w", err)
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()

	s.logger.Debug("preferences loaded", "count", len(values))
	return nil
}

func (s *SQLStore) get(key, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v := s.values[key]; v != "" {
		return v
	}
	return fallback
}

func (s *SQLStore) CountryCode() string {
	return strings.ToUpper(s.get(KeyCountry, s.defaults.Country))
}

func (s *SQLStore) CurrencyCode() string {
	return strings.ToUpper(s.get(KeyCurrency, s.defaults.Currency))
}

func (s *SQLStore) LanguageCode() string {
	return strings.ToLower(s.get(KeyLanguage, s.defaults.Language))
}
