// Package asset is a thin filesystem wrapper around either a temporary or
// a durably-stored output file, plus a minimal PCM WAV reader. It is out
// of the remote-procedure and audio-sampler core; it exists so
// RunDiffusionModelTemplateTask has somewhere real to write its generated
// assets and so the resulting files can be turned into samples.
package asset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Asset is a tagged union mirroring the original Tmp/Stored distinction:
// a Tmp asset lives under a shared temporary directory and is cleaned up
// with it; a Stored asset has been promoted to a durable path.
type Asset struct {
	path    string
	tmpDir  string
	isStore bool
}

// LoadNaive wraps an already-existing path as a Stored asset, matching
// the original's load_naive constructor.
func LoadNaive(path string) Asset {
	return Asset{path: path, isStore: true}
}

// Path returns the asset's current filesystem path.
func (a Asset) Path() string { return a.path }

// IsStored reports whether the asset has been promoted out of its
// temporary directory.
func (a Asset) IsStored() bool { return a.isStore }

// CreateTmp names a new file under dir using a timestamp plus a short
// random suffix. The timestamp format matches the original
// (YYYY-MM-DD_HH-MM-SS); the random suffix is an addition: the original
// relied on single-threaded access when naming files, which concurrent Go
// callers cannot assume, so a uuid disambiguates same-second collisions.
func CreateTmp(dir, extension string) Asset {
	name := fmt.Sprintf("%s_%s.%s", time.Now().Format("2006-01-02_15-04-05"), uuid.NewString()[:8], extension)
	return Asset{path: filepath.Join(dir, name), tmpDir: dir}
}

// CopyTo copies the asset's bytes to dst and returns a Stored asset
// pointing at it.
func CopyTo(a Asset, dst string) (Asset, error) {
	src, err := os.Open(a.path)
	if err != nil {
		return Asset{}, fmt.Errorf("asset copy: open source: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return Asset{}, fmt.Errorf("asset copy: create dest: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return Asset{}, fmt.Errorf("asset copy: %w", err)
	}
	return Asset{path: dst, isStore: true}, nil
}
