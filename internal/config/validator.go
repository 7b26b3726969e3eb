// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateStorage(cfg, errs)
	v.validateTerminal(cfg, errs)
	v.validateJava(cfg, errs)
	v.validateBoot(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs.Add("server.tls_cert", "tls_cert and tls_key must be set together")
	}
	if cfg.Server.TailscaleTLS && cfg.Server.TLSCert != "" {
		errs.Add("server.tailscale_tls", "cannot be combined with tls_cert/tls_key")
	}
}

func (v *Validator) validateStorage(cfg *Config, errs *ValidationError) {
	switch cfg.Storage.Driver {
	case "", "file", "sqlite":
	default:
		errs.Add("storage.driver", fmt.Sprintf("invalid driver '%s', must be one of: file, sqlite", cfg.Storage.Driver))
	}
}

func (v *Validator) validateTerminal(cfg *Config, errs *ValidationError) {
	if cfg.Terminal.Cols < 0 {
		errs.Add("terminal.cols", "must be positive")
	}
	if cfg.Terminal.Rows < 0 {
		errs.Add("terminal.rows", "must be positive")
	}
}

func (v *Validator) validateJava(cfg *Config, errs *ValidationError) {
	seen := make(map[string]bool)
	for i, env := range cfg.Java.Environments {
		prefix := fmt.Sprintf("java.environments[%d]", i)
		if env.Version == "" {
			errs.Add(prefix+".version", "is required")
		} else if seen[env.Version] {
			errs.Add(prefix+".version", fmt.Sprintf("duplicate version '%s'", env.Version))
		} else {
			seen[env.Version] = true
		}
		if env.Path == "" {
			errs.Add(prefix+".path", "is required")
		}
	}
}

func (v *Validator) validateBoot(cfg *Config, errs *ValidationError) {
	checkPercent := func(field string, val float64) {
		if val < 0 || val > 100 {
			errs.Add(field, "must be between 0 and 100")
		}
	}
	checkPercent("boot.memory_limit", cfg.Boot.MemoryLimit)
	checkPercent("boot.cpu_limit", cfg.Boot.CPULimit)
	checkPercent("boot.cpu_resume", cfg.Boot.CPUResume)

	if cfg.Boot.CPUResume > cfg.Boot.CPULimit && cfg.Boot.CPULimit > 0 {
		errs.Add("boot.cpu_resume", "must not exceed boot.cpu_limit")
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	durations := map[string]string{
		"storage.flush_delay":      cfg.Storage.FlushDelay,
		"java.debounce":            cfg.Java.Debounce,
		"lifecycle.ready_timeout":  cfg.Lifecycle.ReadyTimeout,
		"lifecycle.settle_delay":   cfg.Lifecycle.SettleDelay,
		"lifecycle.stop_timeout":   cfg.Lifecycle.StopTimeout,
		"lifecycle.restart_poll":   cfg.Lifecycle.RestartPoll,
		"lifecycle.restart_settle": cfg.Lifecycle.RestartSettle,
		"boot.gap":                 cfg.Boot.Gap,
		"boot.cpu_window":          cfg.Boot.CPUWindow,
		"boot.recheck_interval":    cfg.Boot.RecheckInterval,
		"boot.max_wait":            cfg.Boot.MaxWait,
		"events.history.max_age":   cfg.Events.History.MaxAge,
	}

	for field, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs.Add(field, fmt.Sprintf("invalid duration format: %s", err))
		} else if d < 0 {
			errs.Add(field, "must be positive")
		}
	}
}
