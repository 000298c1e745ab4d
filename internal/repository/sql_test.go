package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/resilience"
)

func newMockGateway(t *testing.T) (*SQLGateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.DefaultConfig().Gateway
	return NewSQLGateway(db, cfg, nil), mock
}

func TestSQLGatewayMeeGroupID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		mock.ExpectQuery(regexp.QuoteMeta(queryMeeGroupID)).
			WithArgs("shop").
			WillReturnRows(sqlmock.NewRows([]string{"mee_group_id"}).AddRow("grp-7"))

		id, ok, err := gw.MeeGroupID(ctx, "shop")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "grp-7", id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no active group", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		mock.ExpectQuery(regexp.QuoteMeta(queryMeeGroupID)).
			WithArgs("shop").
			WillReturnRows(sqlmock.NewRows([]string{"mee_group_id"}))

		_, ok, err := gw.MeeGroupID(ctx, "shop")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSQLGatewayExperiments(t *testing.T) {
	gw, mock := newMockGateway(t)
	rows := sqlmock.NewRows([]string{
		"ab_test_id", "ab_test_nm", "ab_test_type", "ab_test_status",
		"ab_test_atrb_fltr", "strt_dtm", "end_dtm",
	}).
		AddRow(int64(7), "checkout", "RANDOM", "ACTIVE", []byte(`{"country":"KR"}`), start, end).
		AddRow(int64(8), nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tb_ab_test t")).
		WithArgs("shop").
		WillReturnRows(rows)

	got, err := gw.ExperimentsByTenant(context.Background(), "shop")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, "checkout", got[0].Name)
	assert.Equal(t, "RANDOM", got[0].Kind)
	assert.Equal(t, `{"country":"KR"}`, string(got[0].AttributeFilter))
	assert.True(t, got[0].StartTime.Equal(start))
	assert.True(t, got[0].EndTime.Equal(end))

	assert.Equal(t, int64(8), got[1].ID)
	assert.Empty(t, got[1].Name)
	assert.Nil(t, got[1].AttributeFilter)
	assert.True(t, got[1].StartTime.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLGatewayVariants(t *testing.T) {
	ctx := context.Background()

	t.Run("placeholders per id", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		rows := sqlmock.NewRows([]string{
			"ab_test_vrt_id", "ab_test_id", "vrt_key", "vrt_vl", "vrt_rng_strt", "vrt_rng_end",
		}).
			AddRow(int64(70), int64(7), "control", []byte(`{"price":100}`), 0.0, 50.0).
			AddRow(int64(71), int64(7), "treatment", nil, 50.0, 100.0)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE ab_test_id IN (?,?) AND use_yn = 'Y'")).
			WithArgs(int64(7), int64(8)).
			WillReturnRows(rows)

		got, err := gw.VariantsByExperimentIDs(ctx, []int64{7, 8})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "control", got[0].Key)
		assert.Equal(t, 50.0, got[0].RangeEnd)
		assert.Equal(t, int64(7), got[1].ExperimentID)
		assert.Nil(t, got[1].Value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no ids skips the query", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		got, err := gw.VariantsByExperimentIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLGatewayListTenants(t *testing.T) {
	gw, mock := newMockGateway(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryListTenants)).
		WillReturnRows(sqlmock.NewRows([]string{"svc_cd"}).AddRow("blog").AddRow("shop"))

	got, err := gw.ListTenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"blog", "shop"}, got)
}

func TestSQLGatewayErrorClassification(t *testing.T) {
	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"missing table", &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}, true},
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, false},
		{"lock wait", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}, false},
		{"connection", mysql.ErrInvalidConn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, mock := newMockGateway(t)
			mock.ExpectQuery(regexp.QuoteMeta(queryListTenants)).WillReturnError(tt.err)

			_, err := gw.ListTenants(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.permanent, resilience.IsPermanent(err))
		})
	}
}

func TestMySQLConfig(t *testing.T) {
	cfg := config.DefaultConfig().Gateway
	cfg.Host = "db.internal"
	cfg.Port = 3307
	cfg.Password = config.NewSecretString("s3cret")
	cfg.TLS = "skip-verify"

	mc, err := MySQLConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "tcp", mc.Net)
	assert.Equal(t, "db.internal:3307", mc.Addr)
	assert.Equal(t, "abtest_db", mc.DBName)
	assert.Equal(t, "abtest", mc.User)
	assert.Equal(t, "s3cret", mc.Passwd)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, time.UTC, mc.Loc)
	assert.Equal(t, "skip-verify", mc.TLSConfig)

	cfg.Params = "parseTime=maybe"
	_, err = MySQLConfig(cfg)
	assert.Error(t, err)
}

func TestMySQLConfigParseTimeAlwaysOn(t *testing.T) {
	for _, params := range []string{"", "charset=utf8mb4", "parseTime=false&loc=UTC"} {
		cfg := config.DefaultConfig().Gateway
		cfg.Params = params

		mc, err := MySQLConfig(cfg)
		require.NoError(t, err, params)
		assert.True(t, mc.ParseTime, "params %q", params)
	}
}
