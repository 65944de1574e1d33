package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqlDialect holds what differs between the supported databases. The
// conflict clause reads the incoming row, so each value is bound once.
type sqlDialect struct {
	keyType    string
	bodyType   string
	tableOpts  string
	onConflict string
	numbered   bool
}

var sqlDialects = map[string]sqlDialect{
	"sqlite": {
		keyType:    "TEXT",
		bodyType:   "BLOB",
		onConflict: "ON CONFLICT(snapshot_key) DO UPDATE SET body = excluded.body, written_at = excluded.written_at, expires_at = excluded.expires_at",
	},
	"mysql": {
		keyType:    "VARBINARY(255)",
		bodyType:   "LONGBLOB",
		tableOpts:  " ENGINE=InnoDB",
		onConflict: "ON DUPLICATE KEY UPDATE body = VALUES(body), written_at = VALUES(written_at), expires_at = VALUES(expires_at)",
	},
	"pgx": {
		keyType:    "TEXT",
		bodyType:   "BYTEA",
		numbered:   true,
		onConflict: "ON CONFLICT (snapshot_key) DO UPDATE SET body = EXCLUDED.body, written_at = EXCLUDED.written_at, expires_at = EXCLUDED.expires_at",
	},
}

func lookupSQLDialect(driverName string) (sqlDialect, error) {
	if driverName == "postgres" {
		driverName = "pgx"
	}
	d, ok := sqlDialects[driverName]
	if !ok {
		return sqlDialect{}, fmt.Errorf("unsupported sql driver %q", driverName)
	}
	return d, nil
}

func (d sqlDialect) arg(i int) string {
	if d.numbered {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

func (d sqlDialect) createTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		snapshot_key %s PRIMARY KEY,
		body %s NOT NULL,
		written_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)%s`, table, d.keyType, d.bodyType, d.tableOpts)
}

func (d sqlDialect) selectRow(table string) string {
	return fmt.Sprintf("SELECT body, written_at, expires_at FROM %s WHERE snapshot_key = %s", table, d.arg(1))
}

func (d sqlDialect) upsertRow(table string) string {
	return fmt.Sprintf("INSERT INTO %s (snapshot_key, body, written_at, expires_at) VALUES (%s, %s, %s, %s) %s",
		table, d.arg(1), d.arg(2), d.arg(3), d.arg(4), d.onConflict)
}

func (d sqlDialect) deleteRow(table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE snapshot_key = %s", table, d.arg(1))
}

// sqlStore keeps one row per snapshot. written_at and expires_at are unix
// milliseconds; an expires_at of zero never expires.
type sqlStore struct {
	db         *sql.DB
	table      string
	prefix     string
	defaultTTL time.Duration

	selectStmt *sql.Stmt
	upsertStmt *sql.Stmt
	deleteStmt *sql.Stmt
}

var sqlIdentPartRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newSQLStore(cfg StoreConfig) (Store, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, errors.New("sql driver requires driver name and dsn")
	}
	dialect, err := lookupSQLDialect(cfg.SQLDriverName)
	if err != nil {
		return nil, err
	}
	table := cfg.SQLTable
	if table == "" {
		table = defaultSQLTable
	}
	if err := validateSQLTableName(table); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.SQLDriverName, cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	s := &sqlStore{
		db:         db,
		table:      table,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
	}
	if err := s.init(dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) init(d sqlDialect) error {
	if err := s.db.Ping(); err != nil {
		return err
	}
	if _, err := s.db.Exec(d.createTable(s.table)); err != nil {
		return fmt.Errorf("create snapshot table %s: %w", s.table, err)
	}
	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.selectStmt, d.selectRow(s.table)},
		{&s.upsertStmt, d.upsertRow(s.table)},
		{&s.deleteStmt, d.deleteRow(s.table)},
	}
	for _, st := range stmts {
		stmt, err := s.db.Prepare(st.query)
		if err != nil {
			return fmt.Errorf("prepare %q: %w", st.query, err)
		}
		*st.dst = stmt
	}
	return nil
}

func (s *sqlStore) Driver() Driver { return DriverSQL }

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	st, ok, err := s.GetStamped(ctx, key)
	return st.Value, ok, err
}

// GetStamped implements StampedReader. Expired rows are deleted on read.
func (s *sqlStore) GetStamped(ctx context.Context, key string) (Stamped, bool, error) {
	var (
		body             []byte
		written, expires int64
	)
	err := s.selectStmt.QueryRowContext(ctx, s.rowKey(key)).Scan(&body, &written, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Stamped{}, false, nil
	}
	if err != nil {
		return Stamped{}, false, err
	}
	st := stampFromMillis(body, written, expires)
	if stampExpired(st, time.Now()) {
		_ = s.Delete(ctx, key)
		return Stamped{}, false, nil
	}
	return st, true, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.upsertStmt.ExecContext(ctx, s.rowKey(key), value,
		time.Now().UnixMilli(), unixMilli(expiresAt(ttl, s.defaultTTL)))
	return err
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	_, err := s.deleteStmt.ExecContext(ctx, s.rowKey(key))
	return err
}

func (s *sqlStore) rowKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func validateSQLTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("sql table name is required")
	}
	for _, part := range strings.Split(name, ".") {
		if !sqlIdentPartRE.MatchString(part) {
			return fmt.Errorf("invalid sql table name %q", name)
		}
	}
	return nil
}
