package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// サポートするdatabase/sqlドライバ名
const (
	DriverPQ  = "postgres"
	DriverPgx = "pgx"
)

// PoolOptions はコネクションプールの設定。ゼロ値の項目は変更しない。
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open はPostgreSQLデータベース接続を開く。
// driverには"postgres"（lib/pq）または"pgx"（pgx stdlib）を指定する。
// pgxの場合はSupabaseのコネクションプーラー（transaction mode）で
// プリペアドステートメントが衝突しないようsimple protocolを強制する。
// sql.Openは接続を試行しないため、実際の接続確認にはPingを使用すること。
func Open(driver, databaseURL string, opts PoolOptions) (*sql.DB, error) {
	switch driver {
	case "", DriverPQ:
		driver = DriverPQ
	case DriverPgx:
		databaseURL = addConnectionParam(databaseURL, "default_query_exec_mode", "simple_protocol")
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}

	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return db, nil
}

// Ping はタイムアウト付きでデータベースへの疎通を確認する。
func Ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// addConnectionParam は接続URLにクエリパラメータがなければ追加する。
func addConnectionParam(connStr, key, value string) string {
	if strings.Contains(connStr, key+"=") {
		return connStr
	}
	sep := "?"
	if strings.Contains(connStr, "?") {
		sep = "&"
	}
	return connStr + sep + key + "=" + value
}
