package sqlstore

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Dialect holds what differs between the supported engines.
type Dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	schema      string
}

var (
	SQLite = Dialect{
		name:        "sqlite3",
		placeholder: sq.Question,
		schema: `
		create table if not exists users (
			user_id integer primary key,
			name    text    not null unique,
			email   text    not null unique,
			age     integer not null
		)`,
	}
	PostgreSQL = Dialect{
		name:        "postgres",
		placeholder: sq.Dollar,
		schema: `
		create table if not exists users (
			user_id bigint generated by default as identity primary key,
			name    text    not null unique,
			email   text    not null unique,
			age     integer not null
		)`,
	}
)

func (d Dialect) Name() string { return d.name }

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return SQLite, nil
	case "pgx", "postgres":
		return PostgreSQL, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported db driver %q", driver)
	}
}
