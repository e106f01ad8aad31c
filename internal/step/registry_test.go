package step_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/step"
)

var okWork = step.WorkFunc(func(context.Context, step.StatusSetter) error { return nil })

func newRegistry(t *testing.T, workIDs ...string) *step.Registry {
	t.Helper()

	catalog := step.Catalog{}
	for _, id := range workIDs {
		catalog[id] = okWork
	}

	r, err := step.NewRegistry(step.RegistryConfig{Catalog: catalog})
	require.NoError(t, err)
	return r
}

func TestRegistryTotals(t *testing.T) {
	tests := map[string]struct {
		estimates []int
		expTotals step.Totals
	}{
		"An empty registry should have the floor estimate.": {
			estimates: nil,
			expTotals: step.Totals{Steps: 0, EstimatedSeconds: 300},
		},

		"Small sums should be floored to 300.": {
			estimates: []int{2, 3, 1},
			expTotals: step.Totals{Steps: 3, EstimatedSeconds: 300},
		},

		"Sums inside the range should be kept.": {
			estimates: []int{60, 240, 300},
			expTotals: step.Totals{Steps: 3, EstimatedSeconds: 600},
		},

		"Estimates should be clamped before summing.": {
			estimates: []int{-5, 0, 9000, 400},
			expTotals: step.Totals{Steps: 4, EstimatedSeconds: 1 + 1 + 3600 + 400},
		},

		"Big sums should be capped to 36000.": {
			estimates: []int{3600, 3600, 3600, 3600, 3600, 3600, 3600, 3600, 3600, 3600, 3600},
			expTotals: step.Totals{Steps: 11, EstimatedSeconds: 36000},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			r := newRegistry(t)
			for i, est := range test.estimates {
				require.NoError(r.Register(fmt.Sprintf("step %d", i), fmt.Sprintf("w%d", i), est))
			}

			assert.Equal(test.expTotals, r.Totals())
			// Recomputing without changes is idempotent.
			assert.Equal(test.expTotals, r.Recompute())
			assert.Equal(test.expTotals, r.Recompute())
		})
	}
}

func TestRegistryTotalsProperty(t *testing.T) {
	r := newRegistry(t)
	sum := 0
	for i := range 60 {
		est := (i*977)%5000 - 100
		require.NoError(t, r.Register(fmt.Sprintf("s%d", i), fmt.Sprintf("w%d", i), est))

		sum += max(1, min(3600, est))
		exp := max(300, min(36000, sum))
		assert.Equal(t, exp, r.Totals().EstimatedSeconds)
		assert.Equal(t, i+1, r.Totals().Steps)
	}
}

func TestRegistryRegister(t *testing.T) {
	tests := map[string]struct {
		register   func(r *step.Registry) error
		expErr     error
		expLen     int
		expMissing bool
	}{
		"Registering a known work should resolve it.": {
			register: func(r *step.Registry) error { return r.Register("A", "a", 10) },
			expLen:   1,
		},

		"Registering an unknown work should register it without work.": {
			register:   func(r *step.Registry) error { return r.Register("X", "unknown", 10) },
			expLen:     1,
			expMissing: true,
		},

		"Registering a duplicated work id should fail.": {
			register: func(r *step.Registry) error {
				if err := r.Register("A", "a", 10); err != nil {
					return err
				}
				return r.Register("A again", "a", 10)
			},
			expErr: model.ErrAlreadyExists,
			expLen: 1,
		},

		"Registering without name should fail.": {
			register: func(r *step.Registry) error { return r.Register("  ", "a", 10) },
			expErr:   model.ErrNotValid,
		},

		"Registering more than the max steps should fail.": {
			register: func(r *step.Registry) error {
				for i := range step.MaxSteps + 1 {
					if err := r.Register(fmt.Sprintf("s%d", i), fmt.Sprintf("w%d", i), 1); err != nil {
						return err
					}
				}
				return nil
			},
			expErr:     model.ErrNotValid,
			expLen:     step.MaxSteps,
			expMissing: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			r := newRegistry(t, "a")
			err := test.register(r)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}

			assert.Equal(test.expLen, r.Len())
			assert.Equal(min(test.expLen, step.MaxSteps), r.Totals().Steps)
			for i, e := range r.Entries() {
				assert.Equal(i, e.Index)
				assert.Equal(model.StepStatusPending, e.Status)
			}
			if test.expLen > 0 {
				assert.Equal(test.expMissing, r.Entries()[0].Work == nil)
			}
		})
	}
}

func TestRegistryInit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	defs := []model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 2},
		{Name: "B", WorkID: "b", EstimatedSeconds: 3},
	}

	r := newRegistry(t, "a", "b")
	require.NoError(r.Init(defs))
	assert.Equal(2, r.Len())

	// Second init without reset is rejected and doesn't change anything.
	err := r.Init(defs)
	assert.ErrorIs(err, step.ErrAlreadyInitialized)
	assert.Equal(2, r.Len())

	// After a reset it can be initialized again.
	r.Reset()
	assert.Equal(0, r.Len())
	assert.Equal(step.Totals{Steps: 0, EstimatedSeconds: 300}, r.Totals())
	require.NoError(r.Init(defs))
	assert.Equal(2, r.Len())
}

func TestRegistryInitInvalidDefinitions(t *testing.T) {
	r := newRegistry(t, "a")
	err := r.Init([]model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 2},
		{Name: "A2", WorkID: "a", EstimatedSeconds: 2},
	})

	assert.ErrorIs(t, err, model.ErrAlreadyExists)
	assert.Equal(t, 0, r.Len())

	// A failed init doesn't count as initialized.
	assert.NoError(t, r.Init([]model.StepDefinition{{Name: "A", WorkID: "a", EstimatedSeconds: 2}}))
}

func TestRegistryFind(t *testing.T) {
	defs := []model.StepDefinition{
		{Name: "Install base packages", WorkID: "pkg_base", EstimatedSeconds: 10},
		{Name: "Install container packages", WorkID: "distro_packages", EstimatedSeconds: 10},
		{Name: "Configure SSH", WorkID: "ssh_setup", EstimatedSeconds: 10},
		{Name: "SSH", WorkID: "ssh_extra", EstimatedSeconds: 10},
	}

	tests := map[string]struct {
		ident     string
		expWorkID string
		expErr    error
	}{
		"A 1-based index should resolve the step.":         {ident: "2", expWorkID: "distro_packages"},
		"The first index should resolve the first step.":   {ident: "1", expWorkID: "pkg_base"},
		"An index with spaces should be trimmed.":          {ident: " 3 ", expWorkID: "ssh_setup"},
		"A zero index should not be found.":                {ident: "0", expErr: model.ErrNotFound},
		"An out of range index should not be found.":       {ident: "5", expErr: model.ErrNotFound},
		"A substring should resolve the first match.":      {ident: "packages", expWorkID: "pkg_base"},
		"Substring match should be case insensitive.":      {ident: "CONTAINER", expWorkID: "distro_packages"},
		"An exact name should win over substring matches.": {ident: "ssh", expWorkID: "ssh_extra"},
		"An unknown name should not be found.":             {ident: "desktop", expErr: model.ErrNotFound},
		"An empty identifier should not be valid.":         {ident: "", expErr: model.ErrNotValid},
		"A negative index should be used as a name.":       {ident: "-1", expErr: model.ErrNotFound},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			r := newRegistry(t)
			require.NoError(r.Init(defs))

			e, err := r.Find(test.ident)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(err)
			assert.Equal(test.expWorkID, e.WorkID)
		})
	}
}
