// Package replay implements every provider interface on top of a JSONL
// stream of recorded reading frames. The daemon uses it for offline runs
// (-replay) and the tests use it as a deterministic provider set.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
)

// Frame is one recorded poll cycle across all domains. Absent sections mean
// the domain produced no reading in that cycle.
type Frame struct {
	Devices     []model.Device                  `json:"devices,omitempty"`
	Smart       map[string]*model.SmartSnapshot `json:"smart,omitempty"`
	IO          map[string]model.IOCounters     `json:"io,omitempty"`
	Filesystems []model.FilesystemUsage         `json:"filesystems,omitempty"`
	NFS         []model.NFSMount                `json:"nfs,omitempty"`
	Volumes     *model.VolumeStatus             `json:"volumes,omitempty"`
}

// Recorder appends frames to a writer as JSON lines.
type Recorder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: json.NewEncoder(w)}
}

// Record writes one frame.
func (r *Recorder) Record(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(f)
}

// Player replays frames. Each domain advances through the frame list
// independently: a fetch consumes the next frame that carries data for that
// domain, and the last frame's data is repeated once the stream is drained.
type Player struct {
	mu     sync.Mutex
	frames []Frame
	pos    map[string]int
}

// Open loads a recorded JSONL file into a Player.
func Open(path string) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewPlayer(f)
}

// NewPlayer reads all frames from r, one JSON object per line. Blank and
// malformed lines are skipped.
func NewPlayer(r io.Reader) (*Player, error) {
	var frames []Frame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var fr Frame
		if err := json.Unmarshal(line, &fr); err != nil {
			continue
		}
		frames = append(frames, fr)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Player{frames: frames, pos: make(map[string]int)}, nil
}

// Len returns the number of loaded frames.
func (p *Player) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

// Set returns a provider.Set backed entirely by this player. Self-test is
// not replayable; the field is left nil.
func (p *Player) Set() provider.Set {
	return provider.Set{
		Lister:     p,
		SMART:      p,
		IO:         p,
		Filesystem: p,
		NFS:        p,
		Volume:     p,
	}
}

// next returns the next frame, for the named domain, that satisfies ok.
func (p *Player) next(domain string, ok func(*Frame) bool) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		return nil, provider.Unavailablef("replay: no frames for %s", domain)
	}
	for i := p.pos[domain]; i < len(p.frames); i++ {
		if ok(&p.frames[i]) {
			p.pos[domain] = i + 1
			return &p.frames[i], nil
		}
	}
	// Drained: repeat the most recent frame that had data for the domain.
	for i := len(p.frames) - 1; i >= 0; i-- {
		if ok(&p.frames[i]) {
			return &p.frames[i], nil
		}
	}
	return nil, provider.Unavailablef("replay: no frames for %s", domain)
}

// Devices implements provider.DeviceLister.
func (p *Player) Devices(_ context.Context) ([]model.Device, error) {
	f, err := p.next("devices", func(f *Frame) bool { return len(f.Devices) > 0 })
	if err != nil {
		return nil, err
	}
	out := make([]model.Device, len(f.Devices))
	copy(out, f.Devices)
	return out, nil
}

// Smart implements provider.SMART.
func (p *Player) Smart(_ context.Context, device string) (*model.SmartSnapshot, error) {
	f, err := p.next("smart/"+device, func(f *Frame) bool { return f.Smart[device] != nil })
	if err != nil {
		return nil, err
	}
	snap := *f.Smart[device]
	return &snap, nil
}

// IOCounters implements provider.IO.
func (p *Player) IOCounters(_ context.Context) (map[string]model.IOCounters, error) {
	f, err := p.next("io", func(f *Frame) bool { return len(f.IO) > 0 })
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.IOCounters, len(f.IO))
	for k, v := range f.IO {
		out[k] = v
	}
	return out, nil
}

// Filesystems implements provider.Filesystem.
func (p *Player) Filesystems(_ context.Context) ([]model.FilesystemUsage, error) {
	f, err := p.next("fs", func(f *Frame) bool { return len(f.Filesystems) > 0 })
	if err != nil {
		return nil, err
	}
	out := make([]model.FilesystemUsage, len(f.Filesystems))
	copy(out, f.Filesystems)
	return out, nil
}

// NFSMounts implements provider.NFS.
func (p *Player) NFSMounts(_ context.Context) ([]model.NFSMount, error) {
	f, err := p.next("nfs", func(f *Frame) bool { return len(f.NFS) > 0 })
	if err != nil {
		return nil, err
	}
	out := make([]model.NFSMount, len(f.NFS))
	copy(out, f.NFS)
	return out, nil
}

// Volumes implements provider.Volume.
func (p *Player) Volumes(_ context.Context) (*model.VolumeStatus, error) {
	f, err := p.next("volumes", func(f *Frame) bool { return f.Volumes != nil })
	if err != nil {
		return nil, err
	}
	vs := *f.Volumes
	return &vs, nil
}
