// Package step holds the ordered registry of installer steps and the contract of the units of
// work they delegate to.
package step

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/safemath"
)

// ErrAlreadyInitialized is returned when the registry is initialized twice without a reset.
var ErrAlreadyInitialized = errors.New("registry already initialized")

// Registry limits.
const (
	MaxSteps                 = 100
	MinTotalEstimatedSeconds = 300
	MaxTotalEstimatedSeconds = 36000
)

// Totals are the aggregates derived from the registered steps.
type Totals struct {
	Steps            int
	EstimatedSeconds int
}

// Entry is a registered step with its resolved unit of work.
type Entry struct {
	model.Step
	// Work is nil when the work ID couldn't be resolved.
	Work Work
}

// RegistryConfig is the configuration of the Registry.
type RegistryConfig struct {
	Catalog Catalog
	Logger  log.Logger
}

func (c *RegistryConfig) defaults() error {
	if c.Catalog == nil {
		c.Catalog = Catalog{}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "step.Registry"})

	return nil
}

// Registry is the ordered list of steps, registration order is execution order.
// It's not safe for concurrent use, it's owned by the engine.
type Registry struct {
	catalog     Catalog
	logger      log.Logger
	entries     []*Entry
	totals      Totals
	initialized bool
}

// NewRegistry returns a new empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Registry{
		catalog: cfg.Catalog,
		logger:  cfg.Logger,
	}
	r.Recompute()

	return r, nil
}

// Register appends a new step resolving its unit of work from the catalog.
func (r *Registry) Register(name, workID string, estimatedSeconds int) error {
	name = strings.TrimSpace(name)
	if name == "" || workID == "" {
		return fmt.Errorf("step name and work id are required: %w", model.ErrNotValid)
	}

	if len(r.entries) >= MaxSteps {
		return fmt.Errorf("registry can't have more than %d steps: %w", MaxSteps, model.ErrNotValid)
	}

	for _, e := range r.entries {
		if e.WorkID == workID {
			return fmt.Errorf("work id %q already registered by step %q: %w", workID, e.Name, model.ErrAlreadyExists)
		}
	}

	work, ok := r.catalog[workID]
	if !ok || work == nil {
		r.logger.Warningf("Step %q references unknown work %q, it will be reported as missing", name, workID)
		work = nil
	}

	r.entries = append(r.entries, &Entry{
		Step: model.Step{
			Index:            len(r.entries),
			Name:             name,
			WorkID:           workID,
			EstimatedSeconds: safemath.ClampInt(estimatedSeconds, model.MinStepEstimatedSeconds, model.MaxStepEstimatedSeconds),
			Status:           model.StepStatusPending,
		},
		Work: work,
	})
	r.Recompute()

	return nil
}

// Init registers all the step definitions. It can only be called once unless the registry
// is reset, if any definition fails the registry is left empty.
func (r *Registry) Init(defs []model.StepDefinition) error {
	if r.initialized {
		return ErrAlreadyInitialized
	}

	for _, d := range defs {
		if err := r.Register(d.Name, d.WorkID, d.EstimatedSeconds); err != nil {
			r.Reset()
			return fmt.Errorf("could not register step %q: %w", d.Name, err)
		}
	}
	r.initialized = true

	return nil
}

// Reset removes all the steps.
func (r *Registry) Reset() {
	r.entries = nil
	r.initialized = false
	r.Recompute()
}

// Recompute derives the totals from the registered steps and returns them.
func (r *Registry) Recompute() Totals {
	sum := 0
	for _, e := range r.entries {
		est := safemath.ClampInt(e.EstimatedSeconds, model.MinStepEstimatedSeconds, model.MaxStepEstimatedSeconds)
		sum, _ = safemath.Add(sum, est)
	}

	r.totals = Totals{
		Steps:            min(len(r.entries), MaxSteps),
		EstimatedSeconds: safemath.ClampInt(sum, MinTotalEstimatedSeconds, MaxTotalEstimatedSeconds),
	}

	return r.totals
}

// Totals returns the last computed totals.
func (r *Registry) Totals() Totals { return r.totals }

// Len returns the number of registered steps.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns the registered entries in order. Entries are shared, not copied.
func (r *Registry) Entries() []*Entry { return r.entries }

// Steps returns a copy of the current steps state.
func (r *Registry) Steps() []model.Step {
	steps := make([]model.Step, 0, len(r.entries))
	for _, e := range r.entries {
		steps = append(steps, e.Step)
	}
	return steps
}

// Find resolves a step from an identifier: a 1-based step number or a name. Names resolve to
// the step with the same name (case insensitive) or, if none, the first step in registration
// order whose name contains it.
func (r *Registry) Find(ident string) (*Entry, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, fmt.Errorf("step identifier is required: %w", model.ErrNotValid)
	}

	if safemath.IsNonNegInt(ident) {
		n, ok := safemath.ParseNonNeg(ident)
		if !ok || n < 1 || n > len(r.entries) {
			return nil, fmt.Errorf("step number %s is not in [1, %d]: %w", ident, len(r.entries), model.ErrNotFound)
		}
		return r.entries[n-1], nil
	}

	lower := strings.ToLower(ident)
	var matches []*Entry
	for _, e := range r.entries {
		name := strings.ToLower(e.Name)
		if name == lower {
			return e, nil
		}
		if strings.Contains(name, lower) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no step matches %q: %w", ident, model.ErrNotFound)
	case 1:
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, fmt.Sprintf("%d (%s)", m.Number(), m.Name))
		}
		r.logger.Warningf("%q matches multiple steps: %s; using step %d", ident, strings.Join(names, ", "), matches[0].Number())
	}

	return matches[0], nil
}
