// Package config provides configuration management for linksweep.
package config

// Default configuration values for linksweep.
const (
	// DefaultRateLimit is the minimum seconds between deletion calls
	// for one instance.
	DefaultRateLimit = 0.2

	// DefaultRetryAttempts is the number of retries after a failed
	// transient deletion call.
	DefaultRetryAttempts = 3

	// DefaultRetryBackoff is the geometric backoff factor between
	// retries, in seconds^attempt.
	DefaultRetryBackoff = 2.0

	// DefaultCycleCount is the number of scan cycles per invocation.
	// Zero means run until interrupted.
	DefaultCycleCount = 1

	// DefaultCycleIntervalMinutes is the pause between cycles.
	DefaultCycleIntervalMinutes = 60

	// DefaultWorkers is the maximum number of instances processed
	// concurrently.
	DefaultWorkers = 2

	// DefaultHistoryRetentionDays is how long run records are kept.
	DefaultHistoryRetentionDays = 30
)

// DefaultExcludeDirs contains library subdirectories skipped by the symlink
// scanner when no include whitelist is configured.
var DefaultExcludeDirs = []string{
	"downloads",
	".trash",
}
