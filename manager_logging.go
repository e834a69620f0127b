package dgbatch

import "time"

// logDebug logs a debug message.
func (m *Manager) logDebug(msg string, args ...interface{}) {
	m.logger.Debug(msg, args...)
}

// logInfo logs an informational message.
func (m *Manager) logInfo(msg string, args ...interface{}) {
	m.logger.Info(msg, args...)
}

// logWarn logs a warning with the error attached.
func (m *Manager) logWarn(msg string, err error, args ...interface{}) {
	newArgs := append([]interface{}{"error", err}, args...)
	m.logger.Warn(msg, newArgs...)
}

// logError logs an error message.
func (m *Manager) logError(msg string, err error, args ...interface{}) {
	newArgs := append([]interface{}{"error", err}, args...)
	m.logger.Error(msg, newArgs...)
}

// packageFields returns the log fields identifying a package.
func packageFields(info PackageInfo) []interface{} {
	return []interface{}{
		"batch", info.Batch,
		"run_id", info.RunID,
		"package", info.Index,
		"offset", info.Offset,
		"size", info.Size,
	}
}

// logFinished logs the end of a Run or Replay call.
func (m *Manager) logFinished(name, runID string, status Status, packages, failed int, d time.Duration) {
	args := []interface{}{
		"batch", name,
		"run_id", runID,
		"status", status.String(),
		"packages", packages,
		"failed", failed,
		"duration", d,
	}
	if failed > 0 {
		m.logger.Warn("Batch finished with failures", args...)
		return
	}
	m.logInfo("Batch finished", args...)
}
