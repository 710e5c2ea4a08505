package config

import "git.home.luguber.info/inful/companion/internal/foundation/normalization"

// RetryBackoffMode enumerates supported backoff strategies for persistence retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	string(RetryBackoffFixed):       RetryBackoffFixed,
	string(RetryBackoffLinear):      RetryBackoffLinear,
	string(RetryBackoffExponential): RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}
