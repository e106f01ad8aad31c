package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"github.com/slok/devdroid/internal/model"
)

// runChecks runs the checks behind a spinner when the output is a terminal.
func (r *RootCommand) runChecks(ctx context.Context, title string, run func(ctx context.Context) ([]model.CheckResult, error)) ([]model.CheckResult, error) {
	if !r.stdoutIsTerminal() {
		return run(ctx)
	}

	var results []model.CheckResult
	var runErr error
	err := spinner.New().
		Title(title).
		Accessible(r.Accessible()).
		Output(r.Stderr).
		Context(ctx).
		ActionWithErr(func(ctx context.Context) error {
			results, runErr = run(ctx)
			return nil
		}).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
			return nil, ErrAborted
		}
		return nil, err
	}

	return results, runErr
}

// printChecks prints the results and fails if any check failed.
func (r *RootCommand) printChecks(format string, results []model.CheckResult) error {
	if err := r.printer(format).PrintChecks(results); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	_, _, errs := model.CountByStatus(results)
	if errs > 0 {
		return fmt.Errorf("%d check(s) failed", errs)
	}

	return nil
}
