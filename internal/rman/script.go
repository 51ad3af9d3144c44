package rman

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Operation identifies what a composed script does.
type Operation string

const (
	OpFull        Operation = "FULL"
	OpIncremental Operation = "INCREMENTAL"
	OpRestore     Operation = "RESTORE"
)

// TagLayout is the time layout embedded in backup tags (MMDDhhmmss).
const TagLayout = "0102150405"

var (
	ErrEmptyOutputDir = errors.New("output directory is required")
	ErrEmptyFullPath  = errors.New("full backup path is required for restore")
	ErrUnknownKind    = errors.New("unknown backup kind")
)

// Script is the text handed to the engine through CMDFILE.
type Script struct {
	Op    Operation
	Lines []string
	// Tag is the RMAN backup tag; empty for restore scripts.
	Tag string
	// OutputDir is created by the engine before it runs, when set.
	OutputDir string
}

// Content joins the script lines the way RMAN expects to read them.
func (s Script) Content() string {
	return strings.Join(s.Lines, "\n")
}

// ComposeBackup builds the backup script for a FULL or INCREMENTAL run
// writing its pieces into outputDir.
func ComposeBackup(op Operation, outputDir string, ts time.Time) (Script, error) {
	if strings.TrimSpace(outputDir) == "" {
		return Script{}, ErrEmptyOutputDir
	}

	tag := fmt.Sprintf("BK_%s_%s", op, ts.Format(TagLayout))
	format := filepath.Join(outputDir, fmt.Sprintf("db_backup_%s_%%U", op))

	var dbBackup string
	switch op {
	case OpFull:
		dbBackup = fmt.Sprintf("BACKUP DATABASE FORMAT '%s' TAG '%s';", format, tag)
	case OpIncremental:
		dbBackup = fmt.Sprintf("BACKUP INCREMENTAL LEVEL 1 DATABASE FORMAT '%s' TAG '%s';", format, tag)
	default:
		return Script{}, fmt.Errorf("%w: %q", ErrUnknownKind, op)
	}

	lines := []string{
		"RUN {",
		"ALLOCATE CHANNEL d1 TYPE DISK;",
		dbBackup,
		fmt.Sprintf("BACKUP ARCHIVELOG ALL FORMAT '%s';", filepath.Join(outputDir, "archivelog_%U")),
		"DELETE NOPROMPT ARCHIVELOG ALL COMPLETED BEFORE 'SYSDATE-1';",
		"RELEASE CHANNEL d1;",
		"}",
		"exit;",
	}

	return Script{Op: op, Lines: lines, Tag: tag, OutputDir: outputDir}, nil
}

// ComposeRestore builds a single restore script that catalogs the FULL
// generation and, when incrementalPath is non-empty, the INCREMENTAL one.
func ComposeRestore(fullPath, incrementalPath string) (Script, error) {
	if strings.TrimSpace(fullPath) == "" {
		return Script{}, ErrEmptyFullPath
	}

	lines := []string{
		"RUN {",
		"SHUTDOWN IMMEDIATE;",
		"STARTUP MOUNT;",
		fmt.Sprintf("CATALOG START WITH '%s';", fullPath),
	}
	if incrementalPath != "" {
		lines = append(lines, fmt.Sprintf("CATALOG START WITH '%s';", incrementalPath))
	}
	lines = append(lines,
		"RESTORE DATABASE;",
		"RECOVER DATABASE;",
		"ALTER DATABASE OPEN;",
		"}",
	)

	return Script{Op: OpRestore, Lines: lines}, nil
}
