// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in internal/store, together with the embedded goose
// migrations that create the schema they query.
package postgres
