package persist

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ftahirops/diskmon/model"
)

// AlertLog is the append-only JSONL log of resolved alerts.
type AlertLog struct {
	mu   sync.Mutex
	path string
}

// NewAlertLog creates a log writer under the data directory.
func (f *Files) NewAlertLog() *AlertLog {
	return &AlertLog{path: filepath.Join(f.dir, alertLogFile)}
}

// Append writes one resolved alert to the log.
func (l *AlertLog) Append(a model.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(a)
}

// AlertFilter narrows a Read of the historical log. Zero values match all.
type AlertFilter struct {
	Since    time.Time
	Severity model.Severity
	Contains string // case-insensitive substring over subject and message
}

func (f AlertFilter) matches(a model.Alert) bool {
	if !f.Since.IsZero() && a.FiredAt.Before(f.Since) {
		return false
	}
	if f.Severity != model.SeverityNone && a.Severity != f.Severity {
		return false
	}
	if f.Contains != "" {
		needle := strings.ToLower(f.Contains)
		if !strings.Contains(strings.ToLower(a.Subject), needle) &&
			!strings.Contains(strings.ToLower(a.Message), needle) {
			return false
		}
	}
	return true
}

// Read returns matching alerts in log order (oldest first). Malformed lines
// are skipped.
func (l *AlertLog) Read(filter AlertFilter) ([]model.Alert, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []model.Alert
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var a model.Alert
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			continue
		}
		if filter.matches(a) {
			out = append(out, a)
		}
	}
	return out, scanner.Err()
}
