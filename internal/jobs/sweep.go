package jobs

import (
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/logging"
)

// jobDirPrefix marks temp directories owned by jobs. Anything matching it
// in the staging directory while we hold the exclusive lock is a crash
// leftover: live jobs remove their dirs on every terminal state.
const jobDirPrefix = "job-"

// sweepOrphans removes leftover job temp directories. Called once after
// the staging lock is acquired; failures are logged and skipped so a
// stubborn leftover never blocks new work.
func (r *Registry) sweepOrphans() {
	entries, err := os.ReadDir(r.stagingDir)
	if err != nil {
		r.logger.Warn("failed to scan staging directory", logging.Error(err))
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), jobDirPrefix) {
			continue
		}
		dirPath := filepath.Join(r.stagingDir, entry.Name())
		if err := os.RemoveAll(dirPath); err != nil {
			r.logger.Warn("failed to remove orphaned job directory",
				logging.String("path", dirPath),
				logging.Error(err))
			continue
		}
		r.logger.Info("removed orphaned job directory", logging.String("path", dirPath))
	}
}
