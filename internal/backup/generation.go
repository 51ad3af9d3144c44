package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoFullGeneration means there is nothing to restore from.
var ErrNoFullGeneration = errors.New("no FULL backup generation found")

// Generation is a prior run directory holding pieces of one kind.
type Generation struct {
	Path string
	Kind Kind
}

// Selection is the result of SelectGenerations.
type Selection struct {
	Full        Generation
	Incremental *Generation
	// EffectiveKind is the kind that will actually be restored.
	EffectiveKind Kind
	// Downgraded is set when INCREMENTAL was requested but none was found.
	Downgraded bool
}

// SelectGenerations picks the newest FULL run directory under root and, for
// an INCREMENTAL request, the newest INCREMENTAL one. Directory names are
// timestamp-prefixed, so name order is chronological.
func SelectGenerations(root string, requested Kind) (Selection, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return Selection{}, fmt.Errorf("restore source %s does not exist: %w", root, ErrNoFullGeneration)
	}
	if err != nil {
		return Selection{}, fmt.Errorf("failed to read restore source %s: %w", root, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	full, err := firstWithMarker(dirs, KindFull)
	if err != nil {
		return Selection{}, err
	}
	if full == "" {
		return Selection{}, fmt.Errorf("searched %d run directories under %s: %w", len(dirs), root, ErrNoFullGeneration)
	}

	sel := Selection{Full: Generation{Path: full, Kind: KindFull}, EffectiveKind: KindFull}
	if requested != KindIncremental {
		return sel, nil
	}

	incr, err := firstWithMarker(dirs, KindIncremental)
	if err != nil {
		return Selection{}, err
	}
	if incr == "" {
		sel.Downgraded = true
		return sel, nil
	}
	sel.Incremental = &Generation{Path: incr, Kind: KindIncremental}
	sel.EffectiveKind = KindIncremental
	return sel, nil
}

func firstWithMarker(dirs []string, kind Kind) (string, error) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", fmt.Errorf("failed to read run directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.Contains(strings.ToUpper(e.Name()), kind.marker()) {
				return dir, nil
			}
		}
	}
	return "", nil
}
