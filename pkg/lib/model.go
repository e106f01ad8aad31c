package lib

import (
	"errors"
	"time"

	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/step"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when the resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when the input or the stored state is not valid.
	ErrNotValid = errors.New("not valid")
)

// Completion is where the last install run landed.
type Completion struct {
	// Version is the devdroid version that ran the install.
	Version string
	// RunID is the ULID of the run, it correlates with the event log entries.
	RunID           string
	CompletedAt     time.Time
	Distro          string
	SuccessfulSteps int
	FailedSteps     int
	TotalSteps      int
}

// Step is a registered install step.
type Step struct {
	// Number is the 1-based position, the one accepted by `devdroid install --only-step`.
	Number           int
	Name             string
	WorkID           string
	EstimatedSeconds int
}

// StepPlan is the ordered list of install steps.
type StepPlan struct {
	Steps []Step
	// TotalEstimatedSeconds is clamped to the allowed total range.
	TotalEstimatedSeconds int
}

// StepsOpts are the options of [Client.Steps].
type StepsOpts struct {
	// EstimateOverrides replaces the estimate of a step by work ID.
	EstimateOverrides map[string]int
}

// SelfTestOpts are the options of [Client.SelfTest].
type SelfTestOpts struct {
	// MirrorURL is the package mirror probed over HTTP.
	MirrorURL string
	// SSHPort is the local sshd port.
	SSHPort int
	// VNCDisplay is the VNC display number, the port is 5900+display.
	VNCDisplay int
	// Timeout is applied to every check.
	Timeout time.Duration
}

// Snapshot is an archive of the container distribution.
type Snapshot struct {
	// ID is the unique identifier (ULID).
	ID        string
	Name      string
	Distro    string
	Path      string
	SizeBytes int64
	CreatedAt time.Time
}

// CheckStatus is the outcome of a diagnostic check.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	CheckStatusError   CheckStatus = "error"
)

// CheckResult is the result of a single doctor or self-test check.
type CheckResult struct {
	ID      string
	Message string
	Status  CheckStatus
}

// --- Conversion helpers ---

func fromInternalCompletion(c model.Completion) Completion {
	return Completion{
		Version:         c.Version,
		RunID:           c.RunID,
		CompletedAt:     c.CompletedAt,
		Distro:          c.Distro,
		SuccessfulSteps: c.SuccessfulSteps,
		FailedSteps:     c.FailedSteps,
		TotalSteps:      c.TotalSteps,
	}
}

func fromInternalRegistry(reg *step.Registry) *StepPlan {
	steps := reg.Steps()
	plan := &StepPlan{
		Steps:                 make([]Step, 0, len(steps)),
		TotalEstimatedSeconds: reg.Totals().EstimatedSeconds,
	}
	for _, s := range steps {
		plan.Steps = append(plan.Steps, Step{
			Number:           s.Number(),
			Name:             s.Name,
			WorkID:           s.WorkID,
			EstimatedSeconds: s.EstimatedSeconds,
		})
	}
	return plan
}

func fromInternalSnapshot(s model.Snapshot) Snapshot {
	return Snapshot{
		ID:        s.ID,
		Name:      s.Name,
		Distro:    s.Distro,
		Path:      s.Path,
		SizeBytes: s.SizeBytes,
		CreatedAt: s.CreatedAt,
	}
}

func fromInternalSnapshotList(ss []model.Snapshot) []Snapshot {
	result := make([]Snapshot, len(ss))
	for i, s := range ss {
		result[i] = fromInternalSnapshot(s)
	}
	return result
}

func fromInternalCheckResults(rs []model.CheckResult) []CheckResult {
	result := make([]CheckResult, len(rs))
	for i, r := range rs {
		result[i] = CheckResult{
			ID:      r.ID,
			Message: r.Message,
			Status:  CheckStatus(r.Status),
		}
	}
	return result
}

// --- Error mapping ---

// mapError maps the internal sentinels to the public ones, keeping the original message.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case isInternalError(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case isInternalError(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case isInternalError(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func isInternalError(err, target error) bool {
	for {
		if err == target {
			return true
		}
		unwrapped := unwrapSingle(err)
		if unwrapped == nil {
			return false
		}
		err = unwrapped
	}
}

func unwrapSingle(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool { return target == e.sentinel }

func (e *mappedError) Unwrap() error { return e.original }
