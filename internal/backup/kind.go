// Package backup drives RMAN backup and restore runs: it composes the
// script, runs the engine, ships the pieces to the object store and keeps
// the local log directory trimmed.
package backup

import (
	"fmt"
	"strings"

	"oraback/internal/rman"
)

// Kind is the backup level of a run.
type Kind string

const (
	KindFull        Kind = "FULL"
	KindIncremental Kind = "INCREMENTAL"
)

// ParseKind accepts FULL or INCREMENTAL in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindFull:
		return KindFull, nil
	case KindIncremental:
		return KindIncremental, nil
	default:
		return "", fmt.Errorf("invalid backup kind %q (must be FULL or INCREMENTAL)", s)
	}
}

func (k Kind) String() string { return string(k) }

func (k Kind) operation() rman.Operation {
	if k == KindIncremental {
		return rman.OpIncremental
	}
	return rman.OpFull
}

// marker is the upper-cased file name fragment that identifies pieces of
// this kind in a run directory.
func (k Kind) marker() string {
	return "DB_BACKUP_" + string(k)
}
