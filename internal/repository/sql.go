package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/resilience"
	"github.com/LavishGent/abcache/internal/types"
)

const (
	queryListTenants = "SELECT DISTINCT svc_cd FROM tb_mee_group WHERE use_yn = 'Y' ORDER BY svc_cd"

	queryMeeGroupID = "SELECT mee_group_id FROM tb_mee_group WHERE svc_cd = ? AND use_yn = 'Y'"

	queryExperiments = `SELECT t.ab_test_id, t.ab_test_nm, t.ab_test_type, t.ab_test_status,
       t.ab_test_atrb_fltr, t.strt_dtm, t.end_dtm
FROM tb_ab_test t
INNER JOIN tb_mee_group g ON t.mee_group_id = g.mee_group_id
WHERE g.svc_cd = ? AND g.use_yn = 'Y'
ORDER BY t.ab_test_id`

	queryVariantsPrefix = `SELECT ab_test_vrt_id, ab_test_id, vrt_key, vrt_vl, vrt_rng_strt, vrt_rng_end
FROM ab_test_vrts
WHERE ab_test_id IN (`
	queryVariantsSuffix = `) AND use_yn = 'Y'
ORDER BY ab_test_id, ab_test_vrt_id`
)

// MySQL errors that are worth retrying.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// SQLGateway reads experiment configuration from the MySQL schema.
type SQLGateway struct {
	db           *sql.DB
	logger       *slog.Logger
	queryTimeout time.Duration
}

func NewSQLGateway(db *sql.DB, cfg config.GatewayConfig, logger *slog.Logger) *SQLGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLGateway{
		db:           db,
		logger:       logger.With("component", "mysql-gateway"),
		queryTimeout: cfg.QueryTimeout,
	}
}

// MySQLConfig builds the driver configuration for cfg.
func MySQLConfig(cfg config.GatewayConfig) (*mysql.Config, error) {
	dsn := fmt.Sprintf("tcp(%s)/%s", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), cfg.Database)
	var params []string
	if cfg.Params != "" {
		params = append(params, cfg.Params)
	}
	if cfg.TLS != "" {
		params = append(params, "tls="+cfg.TLS)
	}
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}

	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}
	mc.User = cfg.User
	mc.Passwd = cfg.Password.Value()
	// strt_dtm and end_dtm are scanned into sql.NullTime.
	mc.ParseTime = true
	return mc, nil
}

// OpenMySQL opens a pooled connection. It does not ping.
func OpenMySQL(cfg config.GatewayConfig) (*sql.DB, error) {
	mc, err := MySQLConfig(cfg)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return db, nil
}

func (g *SQLGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.queryTimeout)
}

func (g *SQLGateway) MeeGroupID(ctx context.Context, tenant string) (string, bool, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var id sql.NullString
	err := g.db.QueryRowContext(ctx, queryMeeGroupID, tenant).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classifySQLError(err)
	}
	if !id.Valid || id.String == "" {
		return "", false, nil
	}
	return id.String, true, nil
}

func (g *SQLGateway) ExperimentsByTenant(ctx context.Context, tenant string) ([]types.ExperimentRow, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	rows, err := g.db.QueryContext(ctx, queryExperiments, tenant)
	if err != nil {
		return nil, classifySQLError(err)
	}
	defer rows.Close()

	var out []types.ExperimentRow
	for rows.Next() {
		var (
			row                types.ExperimentRow
			name, kind, status sql.NullString
			startTime, endTime sql.NullTime
		)
		if err := rows.Scan(&row.ID, &name, &kind, &status, &row.AttributeFilter, &startTime, &endTime); err != nil {
			return nil, classifySQLError(err)
		}
		row.Name = name.String
		row.Kind = kind.String
		row.Status = status.String
		row.StartTime = startTime.Time
		row.EndTime = endTime.Time
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLError(err)
	}

	g.logger.Debug("Fetched experiments", "tenant", tenant, "count", len(out))
	return out, nil
}

func (g *SQLGateway) VariantsByExperimentIDs(ctx context.Context, ids []int64) ([]types.VariantRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := queryVariantsPrefix + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + queryVariantsSuffix

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLError(err)
	}
	defer rows.Close()

	var out []types.VariantRow
	for rows.Next() {
		var (
			row        types.VariantRow
			key        sql.NullString
			start, end sql.NullFloat64
		)
		if err := rows.Scan(&row.ID, &row.ExperimentID, &key, &row.Value, &start, &end); err != nil {
			return nil, classifySQLError(err)
		}
		row.Key = key.String
		row.RangeStart = start.Float64
		row.RangeEnd = end.Float64
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLError(err)
	}
	return out, nil
}

func (g *SQLGateway) ListTenants(ctx context.Context) ([]string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	rows, err := g.db.QueryContext(ctx, queryListTenants)
	if err != nil {
		return nil, classifySQLError(err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, classifySQLError(err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLError(err)
	}
	return tenants, nil
}

func (g *SQLGateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

func (g *SQLGateway) Close() error {
	return g.db.Close()
}

// classifySQLError marks server-side errors as permanent, except lock
// contention which usually clears on its own.
func classifySQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		if me.Number == mysqlErrLockWaitTimeout || me.Number == mysqlErrDeadlock {
			return err
		}
		return resilience.Permanent(err)
	}
	return err
}

var _ types.Gateway = (*SQLGateway)(nil)
