package db

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseDSN maps a connection string to a database/sql driver name and the
// source that driver expects. postgres:// and postgresql:// go to pgx;
// sqlite://path, file: URIs, :memory: and bare *.db paths go to sqlite.
func ParseDSN(dsn string) (driver, source string, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", fmt.Errorf("empty DSN")
	}
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		if _, err := url.Parse(dsn); err != nil {
			return "", "", err
		}
		return "pgx", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite DSN without path: %q", dsn)
		}
		return "sqlite", path, nil
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:", strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return "sqlite", dsn, nil
	case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		// key=value libpq form
		return "pgx", dsn, nil
	}
	return "", "", fmt.Errorf("unsupported DSN %q", dsn)
}
