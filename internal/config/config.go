/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package config loads the broker's configuration from a YAML file, with
// environment-variable overrides layered on top of the file-based defaults.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CatalogOptions configures the entitlement catalog façade.
type CatalogOptions struct {
	OrgScope              string        `yaml:"org_scope"`
	ProjectSearchQuery    string        `yaml:"project_search_query,omitempty"`
	MinActivationDuration time.Duration `yaml:"min_activation_duration"`
	MaxActivationDuration time.Duration `yaml:"max_activation_duration"`
	MinReviewers          int           `yaml:"min_reviewers"`
	MaxReviewers          int           `yaml:"max_reviewers"`
}

// RepositoryOptions configures the entitlement repository's fan-out.
type RepositoryOptions struct {
	Backend        string `yaml:"backend"` // "analyzer" or "assetinventory"
	FanOutDegree   int    `yaml:"fan_out_degree,omitempty"`
}

// SignerOptions configures the ProposalToken signer identity.
type SignerOptions struct {
	Identity string `yaml:"identity"`
	DevMode  bool   `yaml:"dev_mode,omitempty"` // derive a symmetric key instead of delegating to a real oracle
}

// ProposalOptions configures the MPA proposal handler.
type ProposalOptions struct {
	Timeout         time.Duration `yaml:"timeout"`
	SweepInterval   time.Duration `yaml:"sweep_interval,omitempty"`
	ApprovalBaseURL string        `yaml:"approval_base_url"`
}

// SMTPOptions configures the default notification sink.
type SMTPOptions struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// RateLimitOptions configures the per-user activation rate limiter.
type RateLimitOptions struct {
	MaxActivationsPerUserPerHour int `yaml:"max_activations_per_user_per_hour,omitempty"`
	MaxConcurrentActivations     int `yaml:"max_concurrent_activations,omitempty"`
}

// TelemetryOptions configures tracing/metrics wiring.
type TelemetryOptions struct {
	OtlpEndpoint string `yaml:"otlp_endpoint,omitempty"`
	ListenAddr   string `yaml:"listen_addr"`
}

// BoundaryOptions configures the gRPC endpoint the repository, directory,
// resource-manager and policy-mutator clients dial.
type BoundaryOptions struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// Config is the broker's full runtime configuration.
type Config struct {
	Catalog    CatalogOptions    `yaml:"catalog"`
	Repository RepositoryOptions `yaml:"repository"`
	Signer     SignerOptions     `yaml:"signer"`
	Proposal   ProposalOptions   `yaml:"proposal"`
	SMTP       SMTPOptions       `yaml:"smtp"`
	RateLimit  RateLimitOptions  `yaml:"rate_limit"`
	Telemetry  TelemetryOptions  `yaml:"telemetry"`
	Boundary   BoundaryOptions   `yaml:"boundary"`
}

// Load reads Config from a YAML file at path, then applies environment
// overrides (JITBROKER_* variables take precedence over the file).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the broker's built-in configuration defaults.
func Default() *Config {
	return &Config{
		Catalog: CatalogOptions{
			MinActivationDuration: 5 * time.Minute,
			MaxActivationDuration: 8 * time.Hour,
			MinReviewers:          1,
			MaxReviewers:          3,
		},
		Repository: RepositoryOptions{
			Backend:      "analyzer",
			FanOutDegree: runtime.GOMAXPROCS(0),
		},
		Signer: SignerOptions{
			Identity: "jitbroker-signer@example.iam.gserviceaccount.com",
		},
		Proposal: ProposalOptions{
			Timeout:       24 * time.Hour,
			SweepInterval: 15 * time.Minute,
		},
		RateLimit: RateLimitOptions{
			MaxActivationsPerUserPerHour: 30,
			MaxConcurrentActivations:     10,
		},
		Telemetry: TelemetryOptions{
			ListenAddr: ":8080",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JITBROKER_ORG_SCOPE"); v != "" {
		cfg.Catalog.OrgScope = v
	}
	if v := os.Getenv("JITBROKER_PROJECT_SEARCH_QUERY"); v != "" {
		cfg.Catalog.ProjectSearchQuery = v
	}
	if v := os.Getenv("JITBROKER_REPOSITORY_BACKEND"); v != "" {
		cfg.Repository.Backend = v
	}
	if v := os.Getenv("JITBROKER_FAN_OUT_DEGREE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Repository.FanOutDegree = n
		}
	}
	if v := os.Getenv("JITBROKER_SIGNER_IDENTITY"); v != "" {
		cfg.Signer.Identity = v
	}
	if v := os.Getenv("JITBROKER_SIGNER_DEV_MODE"); v != "" {
		cfg.Signer.DevMode = v == "true" || v == "1"
	}
	if v := os.Getenv("JITBROKER_APPROVAL_BASE_URL"); v != "" {
		cfg.Proposal.ApprovalBaseURL = v
	}
	if v := os.Getenv("JITBROKER_SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("JITBROKER_SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = n
		}
	}
	if v := os.Getenv("JITBROKER_SMTP_FROM"); v != "" {
		cfg.SMTP.From = v
	}
	if v := os.Getenv("JITBROKER_SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("JITBROKER_SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("JITBROKER_LISTEN_ADDR"); v != "" {
		cfg.Telemetry.ListenAddr = v
	}
	if v := os.Getenv("JITBROKER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OtlpEndpoint = v
	}
	if v := os.Getenv("JITBROKER_BOUNDARY_ENDPOINT"); v != "" {
		cfg.Boundary.Endpoint = v
	}
	if v := os.Getenv("JITBROKER_BOUNDARY_INSECURE"); v != "" {
		cfg.Boundary.Insecure = v == "true" || v == "1"
	}
}
