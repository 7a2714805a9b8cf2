package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/abdelhadiDevWeb/labocart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverStatic   = "static"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQL reads products from a sqlite or postgres database whose schema is
// managed by the embedded migrations.
type SQL struct {
	db     *sql.DB
	driver string
}

// NewSQL opens the database. driver is DriverSQLite or DriverPostgres; dsn is
// a file path (or ":memory:") for sqlite and a connection string for postgres.
func NewSQL(driver, dsn string) (*SQL, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// every sqlite connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}

	return &SQL{db: db, driver: driver}, nil
}

func (s *SQL) RunMigrations() error {
	var (
		driver database.Driver
		err    error
	)
	switch s.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{
			MigrationsTable: "catalog_schema_migrations",
		})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, s.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQL) All(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, name, price, description, category
		FROM products
		ORDER BY id
	`
	return s.query(ctx, query)
}

func (s *SQL) Get(ctx context.Context, id int64) (domain.Product, error) {
	query := `
		SELECT id, name, price, description, category
		FROM products
		WHERE id = $1
	`

	var p domain.Product
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

// Search narrows by category in SQL and matches text in Go, since sqlite's
// LOWER only folds ASCII and product names are French.
func (s *SQL) Search(ctx context.Context, q Query) ([]domain.Product, error) {
	var (
		products []domain.Product
		err      error
	)
	if q.byCategory() {
		products, err = s.query(ctx, `
			SELECT id, name, price, description, category
			FROM products
			WHERE category = $1
			ORDER BY id
		`, q.Category)
	} else {
		products, err = s.All(ctx)
	}
	if err != nil {
		return nil, err
	}
	return filter(products, q), nil
}

func (s *SQL) Categories(ctx context.Context) ([]string, error) {
	products, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return categories(products), nil
}

func (s *SQL) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.Category); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// Open builds the catalog named by driver. SQL catalogs are migrated before
// they are returned.
func Open(driver, dsn string) (Catalog, error) {
	switch driver {
	case "", DriverStatic:
		return NewStatic(), nil
	case DriverSQLite, DriverPostgres:
		c, err := NewSQL(driver, dsn)
		if err != nil {
			return nil, err
		}
		if err := c.RunMigrations(); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", driver)
	}
}
