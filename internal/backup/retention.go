package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	backupLogPrefix = "backup_log_"
	backupLogSuffix = ".log"
	dateLayout      = "20060102"
)

// LogFile is a candidate for retention.
type LogFile struct {
	Name    string
	ModTime time.Time
}

// RetentionPlan splits candidates into the keep-set and the rest.
type RetentionPlan struct {
	Keep   []string
	Delete []string
}

// PlanRetention keeps the newest FULL log, every INCREMENTAL log dated
// today and the current run's log. Ties between FULL logs go to the greater
// name. Having no FULL log at all is fine.
func PlanRetention(logs []LogFile, today time.Time, current string) RetentionPlan {
	keep := map[string]bool{current: true}

	var newestFull *LogFile
	todayIncr := "_" + string(KindIncremental) + "_" + today.Format(dateLayout)
	for i := range logs {
		l := &logs[i]
		switch {
		case strings.Contains(l.Name, "_"+string(KindFull)+"_"):
			if newestFull == nil || l.ModTime.After(newestFull.ModTime) ||
				(l.ModTime.Equal(newestFull.ModTime) && l.Name > newestFull.Name) {
				newestFull = l
			}
		case strings.Contains(l.Name, todayIncr):
			keep[l.Name] = true
		}
	}
	if newestFull != nil {
		keep[newestFull.Name] = true
	}

	var plan RetentionPlan
	for _, l := range logs {
		if keep[l.Name] {
			plan.Keep = append(plan.Keep, l.Name)
		} else {
			plan.Delete = append(plan.Delete, l.Name)
		}
	}
	sort.Strings(plan.Keep)
	sort.Strings(plan.Delete)
	return plan
}

// RetentionReport is what Apply did to the log directory.
type RetentionReport struct {
	Kept    []string
	Deleted []string
	Failed  map[string]error
}

// RetentionManager prunes backup logs in one directory.
type RetentionManager struct {
	dir    string
	log    logrus.FieldLogger
	remove func(string) error
}

func NewRetentionManager(dir string, log logrus.FieldLogger) *RetentionManager {
	return &RetentionManager{dir: dir, log: log, remove: os.Remove}
}

// Apply deletes every backup log outside the keep-set. A file that cannot be
// removed is logged and recorded; the remaining files are still processed.
func (m *RetentionManager) Apply(today time.Time, currentLog string) (RetentionReport, error) {
	report := RetentionReport{Failed: map[string]error{}}

	logs, err := m.candidates()
	if err != nil {
		return report, err
	}
	plan := PlanRetention(logs, today, filepath.Base(currentLog))
	report.Kept = plan.Keep

	for _, name := range plan.Keep {
		m.log.WithField("file", name).Debug("Keeping log")
	}
	for _, name := range plan.Delete {
		if err := m.remove(filepath.Join(m.dir, name)); err != nil {
			m.log.WithError(err).WithField("file", name).Error("Failed to delete old log")
			report.Failed[name] = err
			continue
		}
		m.log.WithField("file", name).Info("Deleted old log")
		report.Deleted = append(report.Deleted, name)
	}
	return report, nil
}

func (m *RetentionManager) candidates() ([]LogFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory %s: %w", m.dir, err)
	}
	var logs []LogFile
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, backupLogPrefix) || !strings.HasSuffix(name, backupLogSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			m.log.WithError(err).WithField("file", name).Warn("Skipping log that could not be inspected")
			continue
		}
		logs = append(logs, LogFile{Name: name, ModTime: info.ModTime()})
	}
	return logs, nil
}
