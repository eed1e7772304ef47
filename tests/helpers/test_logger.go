package helpers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LogCapture records JSON log lines. Writes are serialised so fetch
// goroutines can log into it.
type LogCapture struct {
	Logger *zerolog.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogCapture returns a capture whose Logger writes at level and above
func NewLogCapture(level zerolog.Level) *LogCapture {
	c := &LogCapture{}
	logger := zerolog.New(c).Level(level).With().Timestamp().Logger()
	c.Logger = &logger
	return c
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *LogCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Entries decodes every captured line
func (c *LogCapture) Entries(t *testing.T) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader([]byte(c.String())))
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	return entries
}

// AssertLogged fails unless an entry with level and message was written, and returns it
func (c *LogCapture) AssertLogged(t *testing.T, level zerolog.Level, message string) map[string]interface{} {
	t.Helper()

	for _, entry := range c.Entries(t) {
		if entry[zerolog.LevelFieldName] == level.String() && entry[zerolog.MessageFieldName] == message {
			return entry
		}
	}
	assert.Failf(t, "log entry not found", "no %s entry %q in:\n%s", level, message, c.String())
	return nil
}

// NewSilentTestLogger creates a logger that discards all output
func NewSilentTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard).With().Timestamp().Logger()
	return &logger
}
