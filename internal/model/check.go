package model

// CheckStatus represents the status of a diagnostic check.
type CheckStatus string

const (
	// CheckStatusOK indicates the check passed.
	CheckStatusOK CheckStatus = "ok"
	// CheckStatusWarning indicates the check passed with a warning.
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError indicates the check failed.
	CheckStatusError CheckStatus = "error"
)

// CheckResult represents the result of a single diagnostic or self-test check.
type CheckResult struct {
	ID      string      // Unique identifier for the check (e.g., "termux_prefix").
	Message string      // Human-readable description of the result.
	Status  CheckStatus // Status of the check.
}

// CheckOK returns a passing check result.
func CheckOK(id, msg string) CheckResult {
	return CheckResult{ID: id, Message: msg, Status: CheckStatusOK}
}

// CheckWarning returns a warning check result.
func CheckWarning(id, msg string) CheckResult {
	return CheckResult{ID: id, Message: msg, Status: CheckStatusWarning}
}

// CheckError returns a failing check result.
func CheckError(id, msg string) CheckResult {
	return CheckResult{ID: id, Message: msg, Status: CheckStatusError}
}

// CountByStatus counts check results by status.
func CountByStatus(results []CheckResult) (ok, warnings, errors int) {
	for _, r := range results {
		switch r.Status {
		case CheckStatusOK:
			ok++
		case CheckStatusWarning:
			warnings++
		case CheckStatusError:
			errors++
		}
	}
	return
}
