// Package api exposes the project, task and export services over HTTP.
// Handlers decode and validate requests, call a service, and render the
// result in the shared success/error envelope. Domain error kinds map to
// status codes in one place (errors.go).
package api
