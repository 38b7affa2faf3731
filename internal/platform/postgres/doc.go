// Package postgres implements the backend's store interfaces on PostgreSQL
// through the pgx database/sql driver, and carries the schema migrations.
package postgres
