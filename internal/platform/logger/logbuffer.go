package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
)

// LogBuffer is a goroutine-safe io.Writer that collects JSON log lines.
// Tests across the module use it to assert on emitted records.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Entries parses each non-empty line as a JSON record.
func (b *LogBuffer) Entries() ([]map[string]any, error) {
	lines := strings.Split(b.String(), "\n")
	entries := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
