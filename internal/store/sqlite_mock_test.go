package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-cli/internal/model"
)

func newSQLMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return &SQLiteStore{db: db}, mock
}

func TestSQLite_Migrate_Error(t *testing.T) {
	st, mock := newSQLMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analyses").WillReturnError(errors.New("disk full"))

	err := st.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: migrate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_SaveAnalysis_RollsBackOnPartnerFailure(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analyses").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO partners").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, err := st.SaveAnalysis(context.Background(), sampleAnalysis("11222333000181", 80, model.TierLow))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: insert partner")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_ListProviders_QueryError(t *testing.T) {
	st, mock := newSQLMockStore(t)
	mock.ExpectQuery("SELECT key, label, description, enabled, api_key FROM provider_settings").
		WillReturnError(errors.New("database is locked"))

	_, err := st.ListProviders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: list providers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_Stats_Error(t *testing.T) {
	st, mock := newSQLMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))

	_, err := st.Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: stats")
}

func TestSQLite_Seed_Error(t *testing.T) {
	st, mock := newSQLMockStore(t)
	mock.ExpectExec("INSERT OR IGNORE INTO provider_settings").WillReturnError(errors.New("readonly"))

	err := st.Seed(context.Background(), []model.ProviderSettings{{Key: "opencnpj"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed provider opencnpj")
}
