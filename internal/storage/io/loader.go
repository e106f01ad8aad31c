package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/devdroid/internal/model"
)

// InstallConfigYAMLRepository loads install configuration from YAML files.
type InstallConfigYAMLRepository struct {
	fs fs.FS
}

// NewInstallConfigYAMLRepository creates a new YAML install config repository.
func NewInstallConfigYAMLRepository(filesystem fs.FS) *InstallConfigYAMLRepository {
	return &InstallConfigYAMLRepository{fs: filesystem}
}

// GetInstallConfig loads an install configuration from a YAML file and returns a validated
// domain model with the missing fields defaulted.
func (r *InstallConfigYAMLRepository) GetInstallConfig(ctx context.Context, path string) (model.InstallConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.InstallConfig{}, fmt.Errorf("reading install config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.InstallConfig{}, ctx.Err()
	}

	var cfg InstallConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.InstallConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	m := cfg.toModel()
	if err := m.Validate(); err != nil {
		return model.InstallConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return m, nil
}

// InstallConfig represents the YAML structure of the install configuration.
type InstallConfig struct {
	Distro         string         `yaml:"distro"`
	Packages       []string       `yaml:"packages"`
	DistroPackages []string       `yaml:"distro_packages"`
	Apps           []AppConfig    `yaml:"apps"`
	Estimates      map[string]int `yaml:"estimates"`
	DisabledSteps  []string       `yaml:"disabled_steps"`
	SSHPort        int            `yaml:"ssh_port"`
	VNCDisplay     int            `yaml:"vnc_display"`
}

// AppConfig represents the YAML structure of a companion app.
type AppConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	SHA256 string `yaml:"sha256"`
}

// DefaultInstallConfig returns the configuration used when no config file is provided.
func DefaultInstallConfig() model.InstallConfig {
	return InstallConfig{}.toModel()
}

func (c InstallConfig) toModel() model.InstallConfig {
	cfg := model.InstallConfig{
		Distro:         c.Distro,
		ExtraPackages:  c.Packages,
		DistroPackages: c.DistroPackages,
		DisabledSteps:  c.DisabledSteps,
		SSHPort:        c.SSHPort,
		VNCDisplay:     c.VNCDisplay,
	}

	if cfg.Distro == "" {
		cfg.Distro = model.DefaultDistro
	}
	if cfg.SSHPort == 0 {
		cfg.SSHPort = model.DefaultSSHPort
	}
	if cfg.VNCDisplay == 0 {
		cfg.VNCDisplay = model.DefaultVNCDisplay
	}

	for _, app := range c.Apps {
		cfg.CompanionApps = append(cfg.CompanionApps, model.CompanionApp{
			Name:   app.Name,
			URL:    app.URL,
			SHA256: app.SHA256,
		})
	}

	// Estimates are only hints, out of range ones are ignored and the step default is used.
	for id, est := range c.Estimates {
		if est < model.MinStepEstimatedSeconds || est > model.MaxStepEstimatedSeconds {
			continue
		}
		if cfg.EstimateOverrides == nil {
			cfg.EstimateOverrides = map[string]int{}
		}
		cfg.EstimateOverrides[id] = est
	}

	return cfg
}
