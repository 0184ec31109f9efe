package migrate

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// MigrateDB applies the embedded migrations to the database at dbURI.
func MigrateDB(dbURI string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	return run(migrate.NewWithSourceInstance("iofs", source, PrepareURL(dbURI)))
}

// MigrateDBFromSource applies the migrations found at sourceURL (e.g. file:///migrations).
func MigrateDBFromSource(sourceURL, dbURI string) error {
	return run(migrate.New(sourceURL, PrepareURL(dbURI)))
}

func run(m *migrate.Migrate, err error) error {
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// PrepareURL converts a postgres connection string to the scheme of the
// pgx/v5 migration driver.
func PrepareURL(dbURI string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dbURI, prefix) {
			return "pgx5://" + strings.TrimPrefix(dbURI, prefix)
		}
	}
	return dbURI
}
