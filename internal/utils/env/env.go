// Package env reads the installer tuning knobs from the environment. Every numeric value is
// validated before it is used and replaced by its default when it is not valid.
package env

import (
	"os"
	"strings"

	"github.com/slok/devdroid/internal/safemath"
)

// Knob names recognized by the installer.
const (
	NonInteractive  = "NON_INTERACTIVE"
	FastMode        = "FAST_MODE"
	Debug           = "DEBUG"
	PollDelayMS     = "DEVDROID_POLL_DELAY_MS"
	CmdRetries      = "DEVDROID_CMD_RETRIES"
	CmdRetryDelayMS = "DEVDROID_CMD_RETRY_DELAY_MS"
	SSHPort         = "DEVDROID_SSH_PORT"
	VNCDisplay      = "DEVDROID_VNC_DISPLAY"
	TermuxPrefix    = "PREFIX"
	TermuxVersion   = "TERMUX_VERSION"
	// EstimatePrefix is followed by the upper cased work ID of a step.
	EstimatePrefix = "DEVDROID_ESTIMATE_"
)

// Int returns the value of the numeric environment variable name when it is a valid
// nonnegative integer inside [min, max], otherwise def.
func Int(name string, def, min, max int) int {
	return IntFrom(os.Getenv(name), def, min, max)
}

// IntFrom is Int for an already read raw value.
func IntFrom(raw string, def, min, max int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}

	n, ok := safemath.ParseNonNeg(raw)
	if !ok || n < min || n > max {
		return def
	}

	return n
}

// Bool returns true if the environment variable name is set to a truthy value (1, true, yes).
func Bool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
