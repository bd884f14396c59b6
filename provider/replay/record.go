package replay

import (
	"context"

	"github.com/ftahirops/diskmon/model"
	"github.com/ftahirops/diskmon/provider"
)

// Recording wraps a provider set so every successful fetch is also written to
// the recorder as a single-domain frame. Failed fetches are not recorded, so
// replaying reproduces only the data the monitor actually saw.
func Recording(set provider.Set, rec *Recorder) provider.Set {
	out := set
	if set.Lister != nil {
		out.Lister = &recordingLister{set.Lister, rec}
	}
	if set.SMART != nil {
		out.SMART = &recordingSMART{set.SMART, rec}
	}
	if set.IO != nil {
		out.IO = &recordingIO{set.IO, rec}
	}
	if set.Filesystem != nil {
		out.Filesystem = &recordingFS{set.Filesystem, rec}
	}
	if set.NFS != nil {
		out.NFS = &recordingNFS{set.NFS, rec}
	}
	if set.Volume != nil {
		out.Volume = &recordingVolume{set.Volume, rec}
	}
	return out
}

type recordingLister struct {
	inner provider.DeviceLister
	rec   *Recorder
}

func (r *recordingLister) Devices(ctx context.Context) ([]model.Device, error) {
	devices, err := r.inner.Devices(ctx)
	if err == nil && len(devices) > 0 {
		_ = r.rec.Record(Frame{Devices: devices})
	}
	return devices, err
}

type recordingSMART struct {
	inner provider.SMART
	rec   *Recorder
}

func (r *recordingSMART) Smart(ctx context.Context, device string) (*model.SmartSnapshot, error) {
	snap, err := r.inner.Smart(ctx, device)
	if err == nil && snap != nil {
		_ = r.rec.Record(Frame{Smart: map[string]*model.SmartSnapshot{device: snap}})
	}
	return snap, err
}

type recordingIO struct {
	inner provider.IO
	rec   *Recorder
}

func (r *recordingIO) IOCounters(ctx context.Context) (map[string]model.IOCounters, error) {
	counters, err := r.inner.IOCounters(ctx)
	if err == nil && len(counters) > 0 {
		_ = r.rec.Record(Frame{IO: counters})
	}
	return counters, err
}

type recordingFS struct {
	inner provider.Filesystem
	rec   *Recorder
}

func (r *recordingFS) Filesystems(ctx context.Context) ([]model.FilesystemUsage, error) {
	mounts, err := r.inner.Filesystems(ctx)
	if err == nil && len(mounts) > 0 {
		_ = r.rec.Record(Frame{Filesystems: mounts})
	}
	return mounts, err
}

type recordingNFS struct {
	inner provider.NFS
	rec   *Recorder
}

func (r *recordingNFS) NFSMounts(ctx context.Context) ([]model.NFSMount, error) {
	mounts, err := r.inner.NFSMounts(ctx)
	if err == nil && len(mounts) > 0 {
		_ = r.rec.Record(Frame{NFS: mounts})
	}
	return mounts, err
}

type recordingVolume struct {
	inner provider.Volume
	rec   *Recorder
}

func (r *recordingVolume) Volumes(ctx context.Context) (*model.VolumeStatus, error) {
	v, err := r.inner.Volumes(ctx)
	if err == nil && v != nil {
		_ = r.rec.Record(Frame{Volumes: v})
	}
	return v, err
}
