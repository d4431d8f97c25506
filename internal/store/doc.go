// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the services, so business rules stay independent of the database.
package store
