// Package mocks provides shared test doubles for the store, cache, auth and
// export ports.
//
// MemStore is an in-memory implementation of every store interface that
// honours the same ordering, cascade and conditional-update rules as the
// Postgres adapter. Individual methods can be made to fail with SetError.
// The remaining doubles follow the function-field pattern: set the Fn field
// to override behaviour, otherwise a sensible default is used.
package mocks
