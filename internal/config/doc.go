// Package config loads the application settings from defaults, an optional
// YAML file and TASKBOARD_* environment variables, and validates them before
// any component starts. Durations are stored as integer fields and exposed
// through typed accessors.
package config
