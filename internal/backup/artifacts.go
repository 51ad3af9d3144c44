package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"oraback/internal/storage"
)

// ErrNoArtifacts is returned when the engine succeeded but left nothing in
// the run directory.
var ErrNoArtifacts = errors.New("no backup artifacts produced")

// Artifact is one backup piece and where it goes remotely.
type Artifact struct {
	LocalPath string
	RemoteKey string
}

// CollectArtifacts lists the regular files directly inside runDir, sorted by
// name. Symlinks are followed; subdirectories and dangling links are ignored.
func CollectArtifacts(runDir string, kind Kind, prefix string) ([]Artifact, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory %s: %w", runDir, err)
	}

	var artifacts []Artifact
	for _, e := range entries {
		path := filepath.Join(runDir, e.Name())
		if !e.Type().IsRegular() {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		artifacts = append(artifacts, Artifact{
			LocalPath: path,
			RemoteKey: storage.ArtifactKey(prefix, kind.String(), e.Name()),
		})
	}
	if len(artifacts) == 0 {
		return nil, ErrNoArtifacts
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].LocalPath < artifacts[j].LocalPath })
	return artifacts, nil
}
