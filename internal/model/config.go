package model

import (
	"fmt"
	"regexp"
	"slices"
)

// Package names end up in package manager command lines, only plain names are accepted.
var packageNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.+_-]*$`)

// Supported container distributions.
const (
	DistroDebian      = "debian"
	DistroUbuntu      = "ubuntu"
	DistroArch        = "archlinux"
	DistroAlpine      = "alpine"
	DistroFedora      = "fedora"
	DefaultDistro     = DistroDebian
	DefaultSSHPort    = 8022
	DefaultVNCDisplay = 1
)

// SupportedDistros lists the distributions the installer knows how to configure.
var SupportedDistros = []string{DistroDebian, DistroUbuntu, DistroArch, DistroAlpine, DistroFedora}

// CompanionApp is an Android application downloaded as an APK during the install.
type CompanionApp struct {
	Name   string
	URL    string
	SHA256 string
}

// InstallConfig is the typed configuration of an install run.
type InstallConfig struct {
	Distro string
	// ExtraPackages are installed with the Termux package manager after the base ones.
	ExtraPackages []string
	// DistroPackages are installed inside the container distribution.
	DistroPackages []string
	CompanionApps  []CompanionApp
	// EstimateOverrides maps work IDs to estimated seconds.
	EstimateOverrides map[string]int
	// DisabledSteps are work IDs that will self-report skipped.
	DisabledSteps  []string
	SSHPort        int
	VNCDisplay     int
	NonInteractive bool
	FastMode       bool
}

// Validate validates the install configuration.
func (c InstallConfig) Validate() error {
	if !slices.Contains(SupportedDistros, c.Distro) {
		return fmt.Errorf("distro %q is not supported (supported: %v): %w", c.Distro, SupportedDistros, ErrNotValid)
	}

	if c.SSHPort < 1024 || c.SSHPort > 65535 {
		return fmt.Errorf("ssh port must be in [1024, 65535], got %d: %w", c.SSHPort, ErrNotValid)
	}

	if c.VNCDisplay < 1 || c.VNCDisplay > 99 {
		return fmt.Errorf("vnc display must be in [1, 99], got %d: %w", c.VNCDisplay, ErrNotValid)
	}

	for _, pkgs := range [][]string{c.ExtraPackages, c.DistroPackages} {
		for _, p := range pkgs {
			if !packageNameRegexp.MatchString(p) {
				return fmt.Errorf("package name %q is invalid: %w", p, ErrNotValid)
			}
		}
	}

	for _, app := range c.CompanionApps {
		if app.Name == "" || app.URL == "" {
			return fmt.Errorf("companion app name and url are required: %w", ErrNotValid)
		}
		if !packageNameRegexp.MatchString(app.Name) {
			return fmt.Errorf("companion app name %q is invalid: %w", app.Name, ErrNotValid)
		}
	}

	return nil
}

// StepDisabled returns true if the step identified by the work ID has been disabled.
func (c InstallConfig) StepDisabled(workID string) bool {
	return slices.Contains(c.DisabledSteps, workID)
}
