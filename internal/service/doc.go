// Package service contains the application use cases: registration and
// login, project and task management with read-through caching, and the
// export state machine.
//
// Services depend on the store, cache and artifact ports only. Every error
// they return is a *domain.Error, so the HTTP layer and the job worker can
// act on its Kind and Retryable tag without knowing where it came from.
package service
