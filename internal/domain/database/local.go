package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/tasuku43/ovm/internal/domain/version"
	"github.com/tasuku43/ovm/internal/infra/logging"
)

const maintenanceDatabase = "postgres"

// ConnConfig locates the local PostgreSQL server.
type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// DSN builds a key=value connection string for dbname.
func (c ConnConfig) DSN(dbname string) string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, dbname, sslmode)
	if c.User != "" {
		dsn += fmt.Sprintf(" user=%s", c.User)
	}
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// Connector opens a connection pool to dbname.
type Connector func(ctx context.Context, dbname string) (*sql.DB, error)

// PgxConnector opens connections through the pgx database/sql driver.
func PgxConnector(cfg ConnConfig) Connector {
	return func(ctx context.Context, dbname string) (*sql.DB, error) {
		db, err := sql.Open("pgx", cfg.DSN(dbname))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping postgres database %s: %w", dbname, err)
		}
		return db, nil
	}
}

// LocalDatabase is a database served by the local PostgreSQL server.
type LocalDatabase struct {
	name    string
	connect Connector
	probe   ProcessProbe
	logger  *log.Logger

	mu    sync.Mutex
	conns map[string]*sql.DB
}

func NewLocal(name string, connect Connector, probe ProcessProbe, logger *log.Logger) *LocalDatabase {
	return &LocalDatabase{
		name:    name,
		connect: connect,
		probe:   probe,
		logger:  logging.Or(logger),
		conns:   make(map[string]*sql.DB),
	}
}

func (d *LocalDatabase) Name() string { return d.name }

func (d *LocalDatabase) conn(ctx context.Context, dbname string) (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if db, ok := d.conns[dbname]; ok {
		return db, nil
	}
	d.logger.Debug("connecting to postgres", "database", dbname)
	db, err := d.connect(ctx, dbname)
	if err != nil {
		return nil, err
	}
	d.conns[dbname] = db
	return db, nil
}

// Exists looks the database up in the server catalog.
func (d *LocalDatabase) Exists(ctx context.Context) (bool, error) {
	db, err := d.conn(ctx, maintenanceDatabase)
	if err != nil {
		return false, err
	}
	var one int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM pg_database WHERE datname = $1`, d.name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up database %s: %w", d.name, err)
	}
	return true, nil
}

// initialized reports whether the application schema is present.
func (d *LocalDatabase) initialized(ctx context.Context, db *sql.DB) (bool, error) {
	var present bool
	err := db.QueryRowContext(ctx, `SELECT to_regclass('ir_module_module') IS NOT NULL`).Scan(&present)
	if err != nil {
		return false, fmt.Errorf("failed to inspect database %s: %w", d.name, err)
	}
	return present, nil
}

// Version reads the installed version of the base module.
func (d *LocalDatabase) Version(ctx context.Context) (version.Version, bool, error) {
	db, err := d.conn(ctx, d.name)
	if err != nil {
		return version.Version{}, false, err
	}
	ok, err := d.initialized(ctx, db)
	if err != nil || !ok {
		return version.Version{}, false, err
	}
	var raw sql.NullString
	err = db.QueryRowContext(ctx, `SELECT latest_version FROM ir_module_module WHERE name = 'base' LIMIT 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return version.Version{}, false, nil
	}
	if err != nil {
		return version.Version{}, false, fmt.Errorf("failed to read version of %s: %w", d.name, err)
	}
	v, err := version.Parse(strings.TrimSpace(raw.String))
	if err != nil {
		return version.Version{}, false, err
	}
	return v, true, nil
}

// Edition is enterprise when any installed module carries an enterprise
// license.
func (d *LocalDatabase) Edition(ctx context.Context) (Edition, error) {
	db, err := d.conn(ctx, d.name)
	if err != nil {
		return "", err
	}
	ok, err := d.initialized(ctx, db)
	if err != nil {
		return "", err
	}
	if !ok {
		return EditionCommunity, nil
	}
	var enterprise bool
	err = db.QueryRowContext(ctx, `SELECT true FROM ir_module_module WHERE license LIKE 'OEEL-%' AND state = 'installed' LIMIT 1`).Scan(&enterprise)
	if errors.Is(err, sql.ErrNoRows) {
		return EditionCommunity, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read edition of %s: %w", d.name, err)
	}
	if enterprise {
		return EditionEnterprise, nil
	}
	return EditionCommunity, nil
}

func (d *LocalDatabase) Running(ctx context.Context) bool {
	if d.probe == nil {
		return false
	}
	return d.probe.Running(ctx, d.name)
}

// Close releases every connection pool opened so far.
func (d *LocalDatabase) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for name, db := range d.conns {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(d.conns, name)
	}
	return errors.Join(errs...)
}
