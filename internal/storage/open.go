package storage

import "fmt"

// Open returns the repository for driver ("sqlite" or "postgres").
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLiteRepository(dsn, DefaultSQLiteConfig())
	case "postgres":
		return NewPostgresRepository(dsn)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
