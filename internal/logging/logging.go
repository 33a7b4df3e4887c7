package logging

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const sessionLayout = "20060102_150405"

// LogFilePath returns the log file for one server session:
// <logsDir>/<binary>.<yyyymmdd_hhmmss>.log.
func LogFilePath(logsDir, binaryName string, sessionStart time.Time) string {
	return filepath.Join(logsDir, binaryName+"."+sessionStart.Format(sessionLayout)+".log")
}

// PruneLogs deletes the oldest session logs of binaryName so that at most
// keep remain, and returns the removed paths. keep <= 0 disables pruning.
// Files not matching the session naming are left alone.
func PruneLogs(logsDir, binaryName string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(logsDir, binaryName+".*.log"))
	if err != nil {
		return nil, err
	}

	type session struct {
		path  string
		start time.Time
	}
	var sessions []session
	prefix := binaryName + "."
	for _, m := range matches {
		base := filepath.Base(m)
		stamp := base[len(prefix) : len(base)-len(".log")]
		start, err := time.Parse(sessionLayout, stamp)
		if err != nil {
			continue
		}
		sessions = append(sessions, session{path: m, start: start})
	}
	if len(sessions) <= keep {
		return nil, nil
	}

	slices.SortFunc(sessions, func(a, b session) int { return a.start.Compare(b.start) })
	var removed []string
	var errs []error
	for _, s := range sessions[:len(sessions)-keep] {
		if err := os.Remove(s.path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, s.path)
	}
	return removed, errors.Join(errs...)
}
