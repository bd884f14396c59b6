package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftahirops/diskmon/model"
)

func newTestFiles(t *testing.T) *Files {
	t.Helper()
	f, err := NewFiles(t.TempDir())
	require.NoError(t, err)
	return f
}

func TestMissingFilesLoadEmpty(t *testing.T) {
	f := newTestFiles(t)

	h, err := f.LoadHistory()
	require.NoError(t, err)
	assert.Empty(t, h)

	a, err := f.LoadAnomalies()
	require.NoError(t, err)
	assert.Empty(t, a)

	keys, err := f.LoadAckedKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestHistoryRoundTrip(t *testing.T) {
	f := newTestFiles(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := map[string][]model.HealthPoint{
		"sda": {{Timestamp: ts, Score: 95}, {Timestamp: ts.Add(5 * time.Minute), Score: 90}},
	}
	require.NoError(t, f.SaveHistory(in))

	out, err := f.LoadHistory()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAckedKeysRoundTrip(t *testing.T) {
	f := newTestFiles(t)
	in := map[string]bool{"sda/smart-status": true, "/var/threshold-fs": true}
	require.NoError(t, f.SaveAckedKeys(in))

	out, err := f.LoadAckedKeys()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEnduranceRoundTrip(t *testing.T) {
	f := newTestFiles(t)
	in := model.EnduranceMap{
		"nvme0n1": {TotalBytesWritten: 1 << 40, FirstTrackedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, f.SaveEndurance(in))

	out, err := f.LoadEndurance()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBaselineSaveLoadList(t *testing.T) {
	f := newTestFiles(t)
	smart := &model.SmartSnapshot{
		PowerOnHours: 4200,
		Attributes:   []model.SmartAttribute{{ID: 5, Name: "Reallocated_Sector_Ct", RawValue: 0, Value: 100}},
	}
	saved := model.NewBaseline("sda", smart, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, f.SaveBaseline(saved))

	got, ok, err := f.LoadBaseline("sda")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, got)

	_, ok, err = f.LoadBaseline("sdb")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := f.ListBaselines()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sda", list[0].Device)
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAlertLogAppendReadFilter(t *testing.T) {
	f := newTestFiles(t)
	log := f.NewAlertLog()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	alerts := []model.Alert{
		{ID: "1", Subject: "sda", Kind: model.RuleSmartStatus, Severity: model.SeverityCrit, Message: "SMART FAILED", FiredAt: base, Resolved: true},
		{ID: "2", Subject: "/var", Kind: model.RuleThresholdFS, Severity: model.SeverityWarn, Message: "88% full", FiredAt: base.Add(time.Hour), Resolved: true},
		{ID: "3", Subject: "sdb", Kind: model.RuleLatency, Severity: model.SeverityCrit, Message: "latency 300ms", FiredAt: base.Add(2 * time.Hour), Resolved: true},
	}
	for _, a := range alerts {
		require.NoError(t, log.Append(a))
	}

	all, err := log.Read(AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID, "log order must be oldest first")

	crits, err := log.Read(AlertFilter{Severity: model.SeverityCrit})
	require.NoError(t, err)
	assert.Len(t, crits, 2)

	recent, err := log.Read(AlertFilter{Since: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "3", recent[0].ID)

	matched, err := log.Read(AlertFilter{Contains: "SMART"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "1", matched[0].ID)
}

func TestAlertLogSkipsMalformedLines(t *testing.T) {
	f := newTestFiles(t)
	log := f.NewAlertLog()
	require.NoError(t, log.Append(model.Alert{ID: "ok", Subject: "sda"}))

	// Corrupt the log with a torn line.
	fh, err := os.OpenFile(filepath.Join(f.Dir(), "alerts.log"), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = fh.WriteString("{torn json\n")
	require.NoError(t, err)
	require.NoError(t, fh.Close())
	require.NoError(t, log.Append(model.Alert{ID: "after", Subject: "sdb"}))

	out, err := log.Read(AlertFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "ok", out[0].ID)
	assert.Equal(t, "after", out[1].ID)
}
