// Package persist owns the on-disk state under the per-user data directory:
// health history, anomaly log, write-endurance counters, SMART baselines and
// cache, acknowledged alert keys, and the append-only alert log. Whole-file
// state is written via atomic replace so a crash never leaves a torn file.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ftahirops/diskmon/model"
)

const (
	historyFile   = "health_history.json"
	anomalyFile   = "smart_anomalies.json"
	enduranceFile = "write_endurance.json"
	cacheFile     = "smart_cache.json"
	ackedFile     = "acked_alerts.json"
	alertLogFile  = "alerts.log"
	baselineDir   = "baselines"
)

// DefaultDir returns the per-user data directory
// ($XDG_DATA_HOME/diskmon or ~/.local/share/diskmon).
func DefaultDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "diskmon"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine data dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "diskmon"), nil
}

// Files reads and writes every persisted state file under one directory.
type Files struct {
	dir string
}

// NewFiles creates the data directory (and the baselines subdirectory) if
// needed and returns the accessor.
func NewFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(filepath.Join(dir, baselineDir), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Files{dir: dir}, nil
}

// Dir returns the data directory path.
func (f *Files) Dir() string { return f.dir }

// WriteFileAtomic writes data to path via a temp file and rename, so readers
// and crashes never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *Files) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := WriteFileAtomic(filepath.Join(f.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// readJSON loads name into v. A missing file is not an error; ok reports
// whether anything was loaded.
func (f *Files) readJSON(name string, v any) (ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// LoadHistory loads the persisted per-device health series.
func (f *Files) LoadHistory() (map[string][]model.HealthPoint, error) {
	out := make(map[string][]model.HealthPoint)
	if _, err := f.readJSON(historyFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveHistory persists the per-device health series. Ring eviction is
// applied by the caller before saving.
func (f *Files) SaveHistory(h map[string][]model.HealthPoint) error {
	return f.writeJSON(historyFile, h)
}

// LoadAnomalies loads the persisted anomaly log.
func (f *Files) LoadAnomalies() (model.AnomalyLog, error) {
	out := make(model.AnomalyLog)
	if _, err := f.readJSON(anomalyFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveAnomalies persists the anomaly log.
func (f *Files) SaveAnomalies(log model.AnomalyLog) error {
	return f.writeJSON(anomalyFile, log)
}

// LoadEndurance loads the persisted write-endurance counters.
func (f *Files) LoadEndurance() (model.EnduranceMap, error) {
	out := make(model.EnduranceMap)
	if _, err := f.readJSON(enduranceFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveEndurance persists the write-endurance counters.
func (f *Files) SaveEndurance(m model.EnduranceMap) error {
	return f.writeJSON(enduranceFile, m)
}

// LoadSmartCache loads the SMART snapshot cache used to shorten cold start.
func (f *Files) LoadSmartCache() (map[string]*model.SmartSnapshot, error) {
	out := make(map[string]*model.SmartSnapshot)
	if _, err := f.readJSON(cacheFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSmartCache persists the SMART snapshot cache.
func (f *Files) SaveSmartCache(c map[string]*model.SmartSnapshot) error {
	return f.writeJSON(cacheFile, c)
}

// LoadAckedKeys loads the set of acknowledged alert keys.
func (f *Files) LoadAckedKeys() (map[string]bool, error) {
	var keys []string
	if _, err := f.readJSON(ackedFile, &keys); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}

// SaveAckedKeys persists the set of acknowledged alert keys.
func (f *Files) SaveAckedKeys(keys map[string]bool) error {
	list := make([]string, 0, len(keys))
	for k := range keys {
		list = append(list, k)
	}
	return f.writeJSON(ackedFile, list)
}

// SaveBaseline persists one device baseline. Baselines are immutable once
// saved; a re-save replaces the file with a fresh capture.
func (f *Files) SaveBaseline(b model.Baseline) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline %s: %w", b.Device, err)
	}
	path := filepath.Join(f.dir, baselineDir, b.Device+".json")
	if err := WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write baseline %s: %w", b.Device, err)
	}
	return nil
}

// LoadBaseline loads one device baseline; ok is false when none was saved.
func (f *Files) LoadBaseline(device string) (model.Baseline, bool, error) {
	var b model.Baseline
	ok, err := f.readJSON(filepath.Join(baselineDir, device+".json"), &b)
	return b, ok, err
}

// ListBaselines returns every saved baseline sorted by device name.
func (f *Files) ListBaselines() ([]model.Baseline, error) {
	entries, err := os.ReadDir(filepath.Join(f.dir, baselineDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []model.Baseline
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		b, ok, err := f.LoadBaseline(name[:len(name)-len(".json")])
		if err != nil || !ok {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
