package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/credit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// Foreign keys are enabled on every pooled connection through the DSN.
func NewSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	cnpj                TEXT NOT NULL,
	legal_name          TEXT NOT NULL DEFAULT '',
	trade_name          TEXT NOT NULL DEFAULT '',
	requested_amount    REAL NOT NULL DEFAULT 0,
	installments        INTEGER NOT NULL DEFAULT 0,
	monthly_rate        REAL NOT NULL DEFAULT 0,
	score               INTEGER NOT NULL,
	tier                TEXT NOT NULL,
	suggested_amount    REAL NOT NULL DEFAULT 0,
	registration_status TEXT NOT NULL DEFAULT '',
	size_tier           TEXT NOT NULL DEFAULT '',
	legal_nature        TEXT NOT NULL DEFAULT '',
	share_capital       TEXT NOT NULL DEFAULT '',
	founded_on          TEXT NOT NULL DEFAULT '',
	municipality        TEXT NOT NULL DEFAULT '',
	state               TEXT NOT NULL DEFAULT '',
	email               TEXT NOT NULL DEFAULT '',
	main_activity       TEXT NOT NULL DEFAULT '',
	partner_count       INTEGER NOT NULL DEFAULT 0,
	proceeding_count    INTEGER NOT NULL DEFAULT 0,
	narrative_provider  TEXT NOT NULL DEFAULT '',
	payload             TEXT NOT NULL,
	report_path         TEXT,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS partners (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id INTEGER NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	tax_id      TEXT,
	role        TEXT,
	entered_on  TEXT,
	age_bracket TEXT,
	identifier  TEXT
);

CREATE TABLE IF NOT EXISTS proceedings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id INTEGER NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	number      TEXT NOT NULL,
	court       TEXT,
	class       TEXT,
	subjects    TEXT,
	filed_at    TEXT
);

CREATE TABLE IF NOT EXISTS provider_settings (
	key         TEXT PRIMARY KEY,
	label       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	enabled     INTEGER NOT NULL DEFAULT 0,
	api_key     TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS provider_calls (
	id          TEXT PRIMARY KEY,
	analysis_id INTEGER REFERENCES analyses(id) ON DELETE CASCADE,
	provider    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	kind        TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	analysis_id  INTEGER PRIMARY KEY REFERENCES analyses(id) ON DELETE CASCADE,
	path         TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	generated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_cnpj ON analyses(cnpj);
CREATE INDEX IF NOT EXISTS idx_analyses_tier ON analyses(tier);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_partners_analysis_id ON partners(analysis_id);
CREATE INDEX IF NOT EXISTS idx_proceedings_analysis_id ON proceedings(analysis_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_analysis_id ON provider_calls(analysis_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_provider ON provider_calls(provider);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Seed inserts catalog providers that are not stored yet. Existing rows,
// including administrator edits, are left alone.
func (s *SQLiteStore) Seed(ctx context.Context, providers []model.ProviderSettings) error {
	for _, p := range providers {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO provider_settings (key, label, description, enabled, api_key, updated_at) VALUES (?, ?, ?, ?, '', ?)`,
			p.Key, p.Label, p.Description, p.Enabled, time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed provider %s", p.Key)
		}
	}
	return nil
}

func (s *SQLiteStore) ListProviders(ctx context.Context) ([]model.ProviderSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, label, description, enabled, api_key FROM provider_settings ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list providers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ProviderSettings
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list providers iterate")
}

func (s *SQLiteStore) UpdateProvider(ctx context.Context, key string, upd model.ProviderUpdate) (*model.ProviderSettings, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE provider_settings SET enabled = ?, api_key = COALESCE(?, api_key), updated_at = ? WHERE key = ?`,
		upd.Enabled, upd.APIKey, time.Now().UTC(), key,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update provider %s", key)
	}
	if err := checkRowsAffected(res, "provider", key); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT key, label, description, enabled, api_key FROM provider_settings WHERE key = ?`, key)
	p, err := scanProvider(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get provider %s", key)
	}
	return p, nil
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *model.Analysis) (int64, error) {
	values, err := analysisValues(a)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save analysis")
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO analyses (` + strings.Join(analysisColumns, ", ") + `) VALUES (` +
		strings.TrimSuffix(strings.Repeat("?, ", len(analysisColumns)), ", ") + `)`
	res, err := tx.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert analysis")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}

	for _, p := range a.Profile.Partners() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO partners (analysis_id, name, tax_id, role, entered_on, age_bracket, identifier) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, p.Name, p.TaxID, p.Role, p.EnteredOn, p.AgeBracket, p.Identifier,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert partner")
		}
	}
	for _, p := range a.Litigation.Proceedings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO proceedings (analysis_id, number, court, class, subjects, filed_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, p.Number, p.Court, p.Class, strings.Join(p.Subjects, "; "), p.FiledAt,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert proceeding")
		}
	}
	for _, c := range a.Calls {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO provider_calls (id, analysis_id, provider, endpoint, outcome, kind, duration_ms, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, id, c.Provider, c.Endpoint, c.Outcome, c.Kind, c.DurationMs, c.Error, c.CreatedAt.UTC(),
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert provider call")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save analysis")
	}
	return id, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id int64) (*model.Analysis, error) {
	var payload string
	var reportPath string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, COALESCE(report_path, '') FROM analyses WHERE id = ?`, id,
	).Scan(&payload, &reportPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "analysis %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %d", id)
	}
	return decodeAnalysis(id, []byte(payload), reportPath)
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM analyses WHERE 1=1`
	var args []any

	if filter.CNPJ != "" {
		query += ` AND cnpj = ?`
		args = append(args, filter.CNPJ)
	}
	if filter.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, string(filter.Tier))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AnalysisSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete analysis %d", id)
	}
	return checkRowsAffected(res, "analysis", id)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	var avg float64
	if err := s.db.QueryRowContext(ctx, statsQuery).Scan(&st.Total, &st.Low, &st.Medium, &st.High, &avg); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	st.AverageScore = roundAverage(avg)
	return &st, nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, r model.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save report")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE analyses SET report_path = ? WHERE id = ?`, r.Path, r.AnalysisID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report path %d", r.AnalysisID)
	}
	if err := checkRowsAffected(res, "analysis", r.AnalysisID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (analysis_id, path, size_bytes, generated_at) VALUES (?, ?, ?, ?)`,
		r.AnalysisID, r.Path, r.SizeBytes, r.GeneratedAt.UTC(),
	); err != nil {
		return eris.Wrapf(err, "sqlite: upsert report %d", r.AnalysisID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save report")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %v", entity, id)
	}
	return nil
}
