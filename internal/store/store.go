// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/keytally/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; the API server shares this handle.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			lang TEXT NOT NULL,
			words INTEGER NOT NULL,
			caps_pct REAL NOT NULL,
			punct_pct REAL NOT NULL,
			punct_set TEXT NOT NULL,
			source TEXT NOT NULL,
			target_len INTEGER NOT NULL,
			total_chars INTEGER NOT NULL,
			correct_chars INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			backspaces INTEGER NOT NULL,
			gross_wpm REAL NOT NULL,
			net_wpm REAL NOT NULL,
			accuracy REAL NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_char_stats (
			session_id INTEGER NOT NULL,
			char TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			avg_latency_ms REAL NOT NULL,
			PRIMARY KEY (session_id, char)
		);`,
		`CREATE TABLE IF NOT EXISTS session_bigram_stats (
			session_id INTEGER NOT NULL,
			bigram TEXT NOT NULL,
			count INTEGER NOT NULL,
			avg_latency_ms REAL NOT NULL,
			PRIMARY KEY (session_id, bigram)
		);`,
		`CREATE TABLE IF NOT EXISTS key_stats (
			char TEXT PRIMARY KEY,
			attempts INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			avg_latency_ms REAL NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS activity_snapshots (
			id INTEGER PRIMARY KEY,
			tracker_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			total_keystrokes INTEGER NOT NULL,
			backspaces INTEGER NOT NULL,
			active_ms INTEGER NOT NULL,
			wpm REAL NOT NULL,
			accuracy REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_session_char_stats_char ON session_char_stats(char);`,
		`CREATE INDEX IF NOT EXISTS idx_session_bigram_stats_bigram ON session_bigram_stats(bigram);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_snapshots_tracker ON activity_snapshots(tracker_id, recorded_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a completed session with its per-character and per-bigram stats.
func (s *Store) InsertSession(ctx context.Context, stats model.SessionStats, chars []model.CharStats, bigrams []model.BigramStats) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	m := stats.Metrics
	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (started_at, ended_at, lang, words, caps_pct, punct_pct, punct_set, source, target_len,
			total_chars, correct_chars, errors, backspaces, gross_wpm, net_wpm, accuracy, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.StartedAt.Format(time.RFC3339Nano),
		stats.EndedAt.Format(time.RFC3339Nano),
		stats.Lang,
		stats.Words,
		stats.CapsPct,
		stats.PunctPct,
		stats.PunctSet,
		stats.Source,
		stats.TargetLen,
		m.TotalChars,
		m.CorrectChars,
		m.Errors,
		m.Backspaces,
		m.GrossWPM,
		m.NetWPM,
		m.Accuracy,
		m.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(chars) > 0 {
		if err = execBatch(ctx, tx,
			`INSERT INTO session_char_stats (session_id, char, attempts, correct, avg_latency_ms) VALUES (?, ?, ?, ?, ?)`,
			len(chars), func(i int) []any {
				cs := chars[i]
				return []any{id, cs.Char, cs.Attempts, cs.Correct, cs.AvgLatencyMs}
			}); err != nil {
			return 0, err
		}
	}
	if len(bigrams) > 0 {
		if err = execBatch(ctx, tx,
			`INSERT INTO session_bigram_stats (session_id, bigram, count, avg_latency_ms) VALUES (?, ?, ?, ?)`,
			len(bigrams), func(i int) []any {
				bs := bigrams[i]
				return []any{id, bs.Bigram, bs.Count, bs.AvgLatencyMs}
			}); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func execBatch(ctx context.Context, tx *sql.Tx, query string, n int, args func(int) []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

const recentSessionsCTE = `WITH recent_sessions AS (
		SELECT id FROM sessions
		WHERE (? = '' OR lang = ?)
		ORDER BY ended_at DESC
		LIMIT ?
	)`

// GetWeakChars aggregates character stats over the most recent sessions.
func (s *Store) GetWeakChars(ctx context.Context, window int, lang string) ([]model.CharAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := recentSessionsCTE + `
	SELECT cs.char, SUM(cs.attempts), SUM(cs.correct),
		SUM(cs.avg_latency_ms * cs.attempts) / SUM(cs.attempts)
	FROM session_char_stats cs
	JOIN recent_sessions r ON r.id = cs.session_id
	GROUP BY cs.char
	HAVING SUM(cs.attempts) > 0`
	return s.queryCharAggregates(ctx, query, lang, lang, window)
}

// GetSlowBigrams aggregates bigram stats over the most recent sessions.
func (s *Store) GetSlowBigrams(ctx context.Context, window int, lang string) ([]model.BigramAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := recentSessionsCTE + `
	SELECT bs.bigram, SUM(bs.count), SUM(bs.avg_latency_ms * bs.count) / SUM(bs.count)
	FROM session_bigram_stats bs
	JOIN recent_sessions r ON r.id = bs.session_id
	GROUP BY bs.bigram
	HAVING SUM(bs.count) > 0`
	return s.queryBigramAggregates(ctx, query, lang, lang, window)
}

// ListSessions returns session aggregates filtered by stats config.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Lang != "" {
		clauses = append(clauses, "lang = ?")
		args = append(args, cfg.Lang)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, lang, gross_wpm, net_wpm, accuracy, errors, duration_ms
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt string
		if err := rows.Scan(&agg.SessionID, &endedAt, &agg.Lang, &agg.GrossWPM, &agg.NetWPM, &agg.Accuracy, &agg.Errors, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListCharAggregatesForSessions aggregates per-character stats across sessions.
func (s *Store) ListCharAggregatesForSessions(ctx context.Context, sessionIDs []int64) ([]model.CharAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders, args := idPlaceholders(sessionIDs)
	query := fmt.Sprintf(`SELECT char, SUM(attempts), SUM(correct),
		SUM(avg_latency_ms * attempts) / SUM(attempts)
		FROM session_char_stats
		WHERE session_id IN (%s)
		GROUP BY char
		HAVING SUM(attempts) > 0`, placeholders)
	return s.queryCharAggregates(ctx, query, args...)
}

// ListBigramAggregatesForSessions aggregates per-bigram stats across sessions.
func (s *Store) ListBigramAggregatesForSessions(ctx context.Context, sessionIDs []int64) ([]model.BigramAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders, args := idPlaceholders(sessionIDs)
	query := fmt.Sprintf(`SELECT bigram, SUM(count), SUM(avg_latency_ms * count) / SUM(count)
		FROM session_bigram_stats
		WHERE session_id IN (%s)
		GROUP BY bigram
		HAVING SUM(count) > 0`, placeholders)
	return s.queryBigramAggregates(ctx, query, args...)
}

// ListCharStatsForSessions returns per-session stats for selected characters.
func (s *Store) ListCharStatsForSessions(ctx context.Context, sessionIDs []int64, chars []string) (map[int64]map[string]model.CharAggregate, error) {
	if len(sessionIDs) == 0 || len(chars) == 0 {
		return map[int64]map[string]model.CharAggregate{}, nil
	}
	idPart, args := idPlaceholders(sessionIDs)
	charPlaceholders := make([]string, len(chars))
	for i, ch := range chars {
		charPlaceholders[i] = "?"
		args = append(args, ch)
	}

	query := fmt.Sprintf(`SELECT session_id, char, attempts, correct, avg_latency_ms
		FROM session_char_stats
		WHERE session_id IN (%s) AND char IN (%s)`, idPart, strings.Join(charPlaceholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[int64]map[string]model.CharAggregate{}
	for rows.Next() {
		var sessionID int64
		var agg model.CharAggregate
		if err := rows.Scan(&sessionID, &agg.Char, &agg.Attempts, &agg.Correct, &agg.AvgLatencyMs); err != nil {
			return nil, err
		}
		if _, ok := result[sessionID]; !ok {
			result[sessionID] = map[string]model.CharAggregate{}
		}
		result[sessionID][agg.Char] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertKeyStats merges per-key stats into the cumulative table. Average
// latencies are combined weighted by attempts.
func (s *Store) UpsertKeyStats(ctx context.Context, stats []model.PerKeyStat, now time.Time) (err error) {
	if len(stats) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	updatedAt := now.Format(time.RFC3339Nano)
	err = execBatch(ctx, tx,
		`INSERT INTO key_stats (char, attempts, correct, avg_latency_ms, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(char) DO UPDATE SET
			avg_latency_ms = (key_stats.avg_latency_ms * key_stats.attempts + excluded.avg_latency_ms * excluded.attempts)
				/ (key_stats.attempts + excluded.attempts),
			attempts = key_stats.attempts + excluded.attempts,
			correct = key_stats.correct + excluded.correct,
			updated_at = excluded.updated_at`,
		len(stats), func(i int) []any {
			ks := stats[i]
			return []any{ks.Key, ks.Attempts, ks.Correct, ks.AvgLatencyMs, updatedAt}
		})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListKeyStats returns the cumulative per-key stats ordered by character.
func (s *Store) ListKeyStats(ctx context.Context) ([]model.CharAggregate, error) {
	return s.queryCharAggregates(ctx, `SELECT char, attempts, correct, avg_latency_ms FROM key_stats ORDER BY char ASC`)
}

// InsertActivitySnapshot stores a tracker snapshot.
func (s *Store) InsertActivitySnapshot(ctx context.Context, rec model.ActivityRecord) error {
	snap := rec.Snapshot
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_snapshots (tracker_id, recorded_at, total_keystrokes, backspaces, active_ms, wpm, accuracy)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TrackerID,
		rec.RecordedAt.Format(time.RFC3339Nano),
		snap.TotalKeystrokes,
		snap.Backspaces,
		snap.ActiveDurationMs,
		snap.WPM,
		snap.Accuracy,
	)
	return err
}

// ListActivitySnapshots returns snapshots of one tracker run in recording order.
func (s *Store) ListActivitySnapshots(ctx context.Context, trackerID string) ([]model.ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tracker_id, recorded_at, total_keystrokes, backspaces, active_ms, wpm, accuracy
		 FROM activity_snapshots
		 WHERE tracker_id = ?
		 ORDER BY recorded_at ASC, id ASC`, trackerID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ActivityRecord
	for rows.Next() {
		var rec model.ActivityRecord
		var recordedAt string
		snap := &rec.Snapshot
		if err := rows.Scan(&rec.TrackerID, &recordedAt, &snap.TotalKeystrokes, &snap.Backspaces, &snap.ActiveDurationMs, &snap.WPM, &snap.Accuracy); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, err
		}
		rec.RecordedAt = parsed
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) queryCharAggregates(ctx context.Context, query string, args ...any) ([]model.CharAggregate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.CharAggregate
	for rows.Next() {
		var agg model.CharAggregate
		if err := rows.Scan(&agg.Char, &agg.Attempts, &agg.Correct, &agg.AvgLatencyMs); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) queryBigramAggregates(ctx context.Context, query string, args ...any) ([]model.BigramAggregate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.BigramAggregate
	for rows.Next() {
		var agg model.BigramAggregate
		if err := rows.Scan(&agg.Bigram, &agg.Count, &agg.AvgLatencyMs); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func idPlaceholders(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	return strings.Join(placeholders, ","), args
}
