package collector

import "testing"

func TestParseDiskstatLine(t *testing.T) {
	line := " 259       0 nvme0n1 418288 82554 32612995 61463 527813 297612 23718024 317964 0 247444 379427 0 0 0 0"
	name, ds, ok := parseDiskstatLine(line)
	if !ok {
		t.Fatal("valid line rejected")
	}
	if name != "nvme0n1" {
		t.Fatalf("name = %q", name)
	}
	if ds.reads != 418288 || ds.sectorsRead != 32612995 || ds.writes != 527813 || ds.ioTimeMs != 247444 {
		t.Fatalf("parsed: %+v", ds)
	}

	if _, _, ok := parseDiskstatLine("8 0 sda 1 2 3"); ok {
		t.Fatal("short line accepted")
	}
}

func TestIsWholeDisk(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"sda", true},
		{"sda1", false},
		{"sdab", false},
		{"vdb", true},
		{"nvme0n1", true},
		{"nvme0n1p2", false},
		{"dm-0", true},
		{"md127", true},
		{"loop0", false},
		{"ram1", false},
		{"hdc", true},
	}
	for _, tt := range tests {
		if got := isWholeDisk(tt.name); got != tt.want {
			t.Errorf("isWholeDisk(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseOpLine(t *testing.T) {
	// READ: ops trans timeouts bytes_sent bytes_recv queue_ms rtt_ms exec_ms
	ops, rtt := parseOpLine("READ: 4000 4010 0 512000 81920000 150 9000 10400")
	if ops != 4000 {
		t.Fatalf("ops = %d", ops)
	}
	if rtt != 2.25 {
		t.Fatalf("avg rtt = %v, want 2.25", rtt)
	}

	ops, rtt = parseOpLine("WRITE: 0 0 0 0 0 0 0 0")
	if ops != 0 || rtt != 0 {
		t.Fatalf("zero ops: ops=%d rtt=%v", ops, rtt)
	}
}
