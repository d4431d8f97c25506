// Package task dispatches export jobs and processes them in the background.
// Jobs go through an asynq queue backed by Redis when the broker is healthy
// and run inline otherwise, so an export request never waits on a broker
// that is down. A sweeper re-dispatches exports that were never picked up or
// whose worker disappeared mid-run.
package task
