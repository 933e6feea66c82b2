// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
	OFF   LogLevel = "OFF"
)

var levelRank = map[LogLevel]int{
	DEBUG: 0,
	INFO:  1,
	WARN:  2,
	ERROR: 3,
	OFF:   4,
}

// ParseLevel maps a LogLevel attribute value to a level. Unknown or empty
// values return the fallback.
func ParseLevel(value string, fallback LogLevel) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG", "TRACE", "ALL":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR", "FATAL":
		return ERROR
	case "OFF", "NONE":
		return OFF
	}
	return fallback
}

// Logger provides structured logging scoped to driver connections
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	mu    sync.RWMutex
	level LogLevel
	out   *log.Logger
}

// LogEntry represents a structured log entry. ConnectionID ties entries to a
// single driver connection, QueryID to one statement executed on it.
type LogEntry struct {
	Timestamp    string                 `json:"timestamp"`
	Level        LogLevel               `json:"level"`
	Component    string                 `json:"component"`
	InstanceID   string                 `json:"instance_id"`
	Container    string                 `json:"container"`
	ConnectionID string                 `json:"connection_id"`
	QueryID      string                 `json:"query_id,omitempty"`
	Message      string                 `json:"message"`
	Fields       map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component writing to stderr.
// Driver hosts own stdout, so diagnostics never go there.
func New(component string) *Logger {
	return NewWithWriter(component, os.Stderr)
}

// NewWithWriter creates a Logger that writes JSON lines to w
func NewWithWriter(component string, w io.Writer) *Logger {
	// Get instance ID from environment (set by the host application)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		level:      INFO,
		out:        log.New(w, "", 0),
	}
}

// SetLevel changes the minimum level that gets written
func (l *Logger) SetLevel(level LogLevel) {
	if _, ok := levelRank[level]; !ok {
		return
	}
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the current minimum level
func (l *Logger) Level() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Enabled reports whether entries at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	current := l.Level()
	if current == OFF || level == OFF {
		return false
	}
	return levelRank[level] >= levelRank[current]
}

// Log creates a structured log entry and writes it
func (l *Logger) Log(level LogLevel, connectionID, queryID, message string, fields map[string]interface{}) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Level:        level,
		Component:    l.Component,
		InstanceID:   l.InstanceID,
		Container:    l.Container,
		ConnectionID: connectionID,
		QueryID:      queryID,
		Message:      message,
		Fields:       fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		l.out.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	l.out.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(connectionID, queryID, message string, fields map[string]interface{}) {
	l.Log(INFO, connectionID, queryID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(connectionID, queryID, message string, fields map[string]interface{}) {
	l.Log(ERROR, connectionID, queryID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(connectionID, queryID, message string, fields map[string]interface{}) {
	l.Log(WARN, connectionID, queryID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(connectionID, queryID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, connectionID, queryID, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(connectionID, queryID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(connectionID, queryID, message, fields)
}

// ErrorWithKind logs an error together with its driver error class
func (l *Logger) ErrorWithKind(connectionID, queryID, message, kind string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["error_kind"] = kind
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(connectionID, queryID, message, fields)
}
