package app

import (
	"net/url"
	"path/filepath"
	"strings"
)

// dbTarget is what openDB needs to reach one profile database.
type dbTarget struct {
	driver string
	dsn    string
	name   string
}

func postgresTarget(raw string, disablePreparedBinaryResult bool) dbTarget {
	return dbTarget{
		driver: "postgres",
		dsn:    withPreparedBinaryFlag(raw, disablePreparedBinaryResult),
		name:   postgresDBName(raw),
	}
}

func sqliteTarget(path string) dbTarget {
	path = strings.TrimSpace(path)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if path == ":memory:" {
		name = "memory"
	}
	return dbTarget{driver: "sqlite", dsn: path, name: name}
}

func withPreparedBinaryFlag(raw string, disable bool) string {
	if !disable {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil || parsed.Scheme == "" {
		return raw
	}

	query := parsed.Query()
	if query.Get("disable_prepared_binary_result") != "" {
		return raw
	}
	query.Set("disable_prepared_binary_result", "yes")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// postgresDBName accepts both URL and key=value connection strings.
func postgresDBName(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if parsed, err := url.Parse(trimmed); err == nil && parsed.Scheme != "" {
		return strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/"))
	}

	for _, token := range strings.Fields(trimmed) {
		name, ok := strings.CutPrefix(token, "dbname=")
		if !ok {
			continue
		}
		if name = strings.Trim(name, `"'`); name != "" {
			return name
		}
	}
	return ""
}
