package sink

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
)

// snapshotQuality is the JPEG quality of saved frames.
const snapshotQuality = 100

// Snapshot keeps the most recent frame on disk as a JPEG for debugging.
// Observe is safe for concurrent use; each save goes through its own temp
// file and the last rename wins.
type Snapshot struct {
	path    string
	every   uint64
	quality int
	seen    atomic.Uint64
}

// NewSnapshot saves every Nth observed frame to path. every < 1 means every frame.
func NewSnapshot(path string, every int) *Snapshot {
	if every < 1 {
		every = 1
	}
	return &Snapshot{path: path, every: uint64(every), quality: snapshotQuality}
}

// Path returns the snapshot file path.
func (s *Snapshot) Path() string { return s.path }

// Observe counts img and persists it when due. The file is replaced
// atomically so readers never see a partial JPEG.
func (s *Snapshot) Observe(img image.Image) error {
	if (s.seen.Add(1)-1)%s.every != 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: s.quality}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
