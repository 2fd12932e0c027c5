// Package persist keeps the timer programme and device settings in a small
// sqlite database, taking the place of the EEPROM on earlier hardware.
package persist

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sweeney/lamp-timer/internal/schedule"
	_ "modernc.org/sqlite"
)

// Bumping this reprograms the defaults on the next Open.
const schemaVersion = 1

// DefaultScreenBlankTimeout is the display blank delay in minutes applied
// on first programming.
const DefaultScreenBlankTimeout = 5

const (
	classWeekday = "weekday"
	classWeekend = "weekend"
)

// Store implements schedule.Store on a sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. A missing or mismatched
// schema version triggers a first programming, writing the default
// weekday and weekend rules.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timers (
		class TEXT PRIMARY KEY,
		on_kind INTEGER NOT NULL,
		on_minutes INTEGER NOT NULL,
		off_kind INTEGER NOT NULL,
		off_minutes INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT value FROM settings WHERE name = 'schema_version'`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.firstProgramming()
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case version != schemaVersion:
		log.Printf("settings database has schema version %d, want %d, reprogramming defaults", version, schemaVersion)
		return s.firstProgramming()
	}
	return nil
}

func (s *Store) firstProgramming() error {
	if err := s.SetWeekTimer(schedule.DefaultWeekday); err != nil {
		return err
	}
	if err := s.SetWeekendTimer(schedule.DefaultWeekend); err != nil {
		return err
	}
	if err := s.SetScreenBlankTimeout(DefaultScreenBlankTimeout); err != nil {
		return err
	}
	return s.setSetting("schema_version", schemaVersion)
}

// WeekTimer returns the Monday to Thursday rule. A missing or corrupt row
// yields the default rule rather than an error.
func (s *Store) WeekTimer() (schedule.Rule, error) {
	return s.timer(classWeekday, schedule.DefaultWeekday)
}

// SetWeekTimer stores the Monday to Thursday rule.
func (s *Store) SetWeekTimer(r schedule.Rule) error {
	return s.setTimer(classWeekday, r)
}

// WeekendTimer returns the Friday to Sunday rule.
func (s *Store) WeekendTimer() (schedule.Rule, error) {
	return s.timer(classWeekend, schedule.DefaultWeekend)
}

// SetWeekendTimer stores the Friday to Sunday rule.
func (s *Store) SetWeekendTimer(r schedule.Rule) error {
	return s.setTimer(classWeekend, r)
}

func (s *Store) timer(class string, fallback schedule.Rule) (schedule.Rule, error) {
	query := `SELECT on_kind, on_minutes, off_kind, off_minutes FROM timers WHERE class = ?`

	var r schedule.Rule
	err := s.db.QueryRow(query, class).Scan(&r.On.Kind, &r.On.Minutes, &r.Off.Kind, &r.Off.Minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("reading %s timer: %w", class, err)
	}
	if !r.On.Kind.Valid() || !r.Off.Kind.Valid() {
		log.Printf("stored %s timer has an unknown switch kind, using defaults", class)
		return fallback, nil
	}
	return r, nil
}

func (s *Store) setTimer(class string, r schedule.Rule) error {
	query := `INSERT OR REPLACE INTO timers (class, on_kind, on_minutes, off_kind, off_minutes)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, class, r.On.Kind, r.On.Minutes, r.Off.Kind, r.Off.Minutes)
	if err != nil {
		return fmt.Errorf("storing %s timer: %w", class, err)
	}
	return nil
}

// ScreenBlankTimeout returns the display blank delay in minutes.
func (s *Store) ScreenBlankTimeout() (int, error) {
	var minutes int
	err := s.db.QueryRow(`SELECT value FROM settings WHERE name = 'screen_blank_timeout'`).Scan(&minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultScreenBlankTimeout, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading screen blank timeout: %w", err)
	}
	return minutes, nil
}

// SetScreenBlankTimeout stores the display blank delay in minutes.
func (s *Store) SetScreenBlankTimeout(minutes int) error {
	if minutes < 0 || minutes > 255 {
		return fmt.Errorf("screen blank timeout %d out of range", minutes)
	}
	return s.setSetting("screen_blank_timeout", minutes)
}

func (s *Store) setSetting(name string, value int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (name, value) VALUES (?, ?)`, name, value)
	if err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	return nil
}
