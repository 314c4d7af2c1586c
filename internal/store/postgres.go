package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id                  BIGSERIAL PRIMARY KEY,
	cnpj                TEXT NOT NULL,
	legal_name          TEXT NOT NULL DEFAULT '',
	trade_name          TEXT NOT NULL DEFAULT '',
	requested_amount    DOUBLE PRECISION NOT NULL DEFAULT 0,
	installments        INTEGER NOT NULL DEFAULT 0,
	monthly_rate        DOUBLE PRECISION NOT NULL DEFAULT 0,
	score               INTEGER NOT NULL,
	tier                TEXT NOT NULL,
	suggested_amount    DOUBLE PRECISION NOT NULL DEFAULT 0,
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
	payload             JSONB NOT NULL,
	report_path         TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS partners (
	id          BIGSERIAL PRIMARY KEY,
	analysis_id BIGINT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	tax_id      TEXT,
	role        TEXT,
	entered_on  TEXT,
	age_bracket TEXT,
	identifier  TEXT
);

CREATE TABLE IF NOT EXISTS proceedings (
	id          BIGSERIAL PRIMARY KEY,
	analysis_id BIGINT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
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
	enabled     BOOLEAN NOT NULL DEFAULT false,
	api_key     TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_calls (
	id          TEXT PRIMARY KEY,
	analysis_id BIGINT REFERENCES analyses(id) ON DELETE CASCADE,
	provider    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	kind        TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	analysis_id  BIGINT PRIMARY KEY REFERENCES analyses(id) ON DELETE CASCADE,
	path         TEXT NOT NULL,
	size_bytes   BIGINT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_cnpj ON analyses(cnpj);
CREATE INDEX IF NOT EXISTS idx_analyses_tier ON analyses(tier);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_partners_analysis_id ON partners(analysis_id);
CREATE INDEX IF NOT EXISTS idx_proceedings_analysis_id ON proceedings(analysis_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_analysis_id ON provider_calls(analysis_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_provider ON provider_calls(provider);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Seed inserts catalog providers that are not stored yet.
func (s *PostgresStore) Seed(ctx context.Context, providers []model.ProviderSettings) error {
	for _, p := range providers {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO provider_settings (key, label, description, enabled, api_key, updated_at)
			 VALUES ($1, $2, $3, $4, '', $5) ON CONFLICT (key) DO NOTHING`,
			p.Key, p.Label, p.Description, p.Enabled, time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed provider %s", p.Key)
		}
	}
	return nil
}

func (s *PostgresStore) ListProviders(ctx context.Context) ([]model.ProviderSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, label, description, enabled, api_key FROM provider_settings ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list providers")
	}
	defer rows.Close()

	var out []model.ProviderSettings
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list providers iterate")
}

func (s *PostgresStore) UpdateProvider(ctx context.Context, key string, upd model.ProviderUpdate) (*model.ProviderSettings, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE provider_settings SET enabled = $1, api_key = COALESCE($2, api_key), updated_at = $3
		 WHERE key = $4 RETURNING key, label, description, enabled, api_key`,
		upd.Enabled, upd.APIKey, time.Now().UTC(), key,
	)
	p, err := scanProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "provider %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update provider %s", key)
	}
	return p, nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *model.Analysis) (int64, error) {
	values, err := analysisValues(a)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin save analysis")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	placeholders := make([]string, len(analysisColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := `INSERT INTO analyses (` + strings.Join(analysisColumns, ", ") + `) VALUES (` +
		strings.Join(placeholders, ", ") + `) RETURNING id`

	var id int64
	if err := tx.QueryRow(ctx, query, values...).Scan(&id); err != nil {
		return 0, eris.Wrap(err, "postgres: insert analysis")
	}

	if partners := a.Profile.Partners(); len(partners) > 0 {
		rows := make([][]any, len(partners))
		for i, p := range partners {
			rows[i] = []any{id, p.Name, p.TaxID, p.Role, p.EnteredOn, p.AgeBracket, p.Identifier}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"partners"},
			[]string{"analysis_id", "name", "tax_id", "role", "entered_on", "age_bracket", "identifier"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return 0, eris.Wrap(err, "postgres: copy partners")
		}
	}
	for _, p := range a.Litigation.Proceedings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO proceedings (analysis_id, number, court, class, subjects, filed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			id, p.Number, p.Court, p.Class, strings.Join(p.Subjects, "; "), p.FiledAt,
		); err != nil {
			return 0, eris.Wrap(err, "postgres: insert proceeding")
		}
	}
	for _, c := range a.Calls {
		if _, err := tx.Exec(ctx,
			`INSERT INTO provider_calls (id, analysis_id, provider, endpoint, outcome, kind, duration_ms, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, id, c.Provider, c.Endpoint, c.Outcome, c.Kind, c.DurationMs, c.Error, c.CreatedAt.UTC(),
		); err != nil {
			return 0, eris.Wrap(err, "postgres: insert provider call")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit save analysis")
	}
	return id, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id int64) (*model.Analysis, error) {
	var payload []byte
	var reportPath string
	err := s.pool.QueryRow(ctx,
		`SELECT payload, COALESCE(report_path, '') FROM analyses WHERE id = $1`, id,
	).Scan(&payload, &reportPath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "analysis %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %d", id)
	}
	return decodeAnalysis(id, payload, reportPath)
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM analyses WHERE 1=1`
	var args []any
	argN := 1

	if filter.CNPJ != "" {
		query += fmt.Sprintf(` AND cnpj = $%d`, argN)
		args = append(args, filter.CNPJ)
		argN++
	}
	if filter.Tier != "" {
		query += fmt.Sprintf(` AND tier = $%d`, argN)
		args = append(args, string(filter.Tier))
		argN++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, argN)
	args = append(args, filter.limit())
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []model.AnalysisSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete analysis %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "analysis %d", id)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	var avg float64
	if err := s.pool.QueryRow(ctx, statsQuery).Scan(&st.Total, &st.Low, &st.Medium, &st.High, &avg); err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	st.AverageScore = roundAverage(avg)
	return &st, nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, r model.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save report")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `UPDATE analyses SET report_path = $1 WHERE id = $2`, r.Path, r.AnalysisID)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report path %d", r.AnalysisID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "analysis %d", r.AnalysisID)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO reports (analysis_id, path, size_bytes, generated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (analysis_id) DO UPDATE SET path = EXCLUDED.path, size_bytes = EXCLUDED.size_bytes, generated_at = EXCLUDED.generated_at`,
		r.AnalysisID, r.Path, r.SizeBytes, r.GeneratedAt.UTC(),
	); err != nil {
		return eris.Wrapf(err, "postgres: upsert report %d", r.AnalysisID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save report")
}
