package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nereus-labs/nautilus-go/internal/domain"
	"github.com/nereus-labs/nautilus-go/internal/platform/env"
	"github.com/nereus-labs/nautilus-go/internal/runtimeexec"
)

const serviceName = "nautilus-runtime"

type runtimeConfig struct {
	Addr             string
	ShutdownTimeout  time.Duration
	ExecutionTimeout time.Duration
	MaxOutputBytes   int64
	MaxConcurrent    int64
	MaxRequestBytes  int64
	MemoryLimitMiB   int64
	CPULimitSeconds  int64
	WorkDir          string
	NodeBin          string
	PythonBin        string
	InterpretersFile string
	SigningKey       string
	AuditEnabled     bool
}

func runtimeConfigFromEnv() (runtimeConfig, error) {
	var (
		cfg runtimeConfig
		err error
	)
	cfg.Addr = strings.TrimSpace(env.String("RUNTIME_HTTP_ADDR", ":3001"))
	if cfg.ShutdownTimeout, err = env.Duration("RUNTIME_SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.ExecutionTimeout, err = env.Duration("RUNTIME_EXECUTION_TIMEOUT", 30*time.Second); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.MaxOutputBytes, err = env.Int64("RUNTIME_MAX_OUTPUT_BYTES", 1<<20); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.MaxConcurrent, err = env.Int64("RUNTIME_MAX_CONCURRENT_EXECUTIONS", 0); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.MaxRequestBytes, err = env.Int64("RUNTIME_MAX_REQUEST_BYTES", 4<<20); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.MemoryLimitMiB, err = env.Int64("RUNTIME_MEMORY_LIMIT_MIB", 0); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.CPULimitSeconds, err = env.Int64("RUNTIME_CPU_LIMIT_SECONDS", 0); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.AuditEnabled, err = env.Bool("RUNTIME_AUDIT_ENABLED", false); err != nil {
		return runtimeConfig{}, err
	}
	cfg.WorkDir = strings.TrimSpace(env.String("RUNTIME_WORK_DIR", ""))
	cfg.NodeBin = strings.TrimSpace(env.String("RUNTIME_NODE_BIN", ""))
	cfg.PythonBin = strings.TrimSpace(env.String("RUNTIME_PYTHON_BIN", ""))
	cfg.InterpretersFile = strings.TrimSpace(env.String("RUNTIME_INTERPRETERS_FILE", ""))
	cfg.SigningKey = strings.TrimSpace(env.String("RUNTIME_SIGNING_KEY", ""))

	if err := cfg.Validate(); err != nil {
		return runtimeConfig{}, err
	}
	return cfg, nil
}

func (c runtimeConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("RUNTIME_HTTP_ADDR is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("RUNTIME_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.ExecutionTimeout < 0 {
		return errors.New("RUNTIME_EXECUTION_TIMEOUT must be >= 0")
	}
	if c.MaxOutputBytes < 0 {
		return errors.New("RUNTIME_MAX_OUTPUT_BYTES must be >= 0")
	}
	if c.MaxConcurrent < 0 {
		return errors.New("RUNTIME_MAX_CONCURRENT_EXECUTIONS must be >= 0")
	}
	if c.MaxRequestBytes <= 0 {
		return errors.New("RUNTIME_MAX_REQUEST_BYTES must be positive")
	}
	if c.MemoryLimitMiB < 0 {
		return errors.New("RUNTIME_MEMORY_LIMIT_MIB must be >= 0")
	}
	if c.CPULimitSeconds < 0 {
		return errors.New("RUNTIME_CPU_LIMIT_SECONDS must be >= 0")
	}
	return nil
}

// interpreters resolves the launcher table: defaults, then the YAML file,
// then per-family binary overrides.
func (c runtimeConfig) interpreters() (runtimeexec.Interpreters, error) {
	interps := runtimeexec.DefaultInterpreters()
	if c.InterpretersFile != "" {
		loaded, err := runtimeexec.LoadInterpreters(c.InterpretersFile)
		if err != nil {
			return nil, fmt.Errorf("RUNTIME_INTERPRETERS_FILE: %w", err)
		}
		interps = loaded
	}
	interps = interps.WithCommand(domain.FamilyNode, c.NodeBin)
	interps = interps.WithCommand(domain.FamilyPython, c.PythonBin)
	if err := interps.Validate(); err != nil {
		return nil, err
	}
	return interps, nil
}

func (c runtimeConfig) executorConfig(interps runtimeexec.Interpreters, logger *slog.Logger) runtimeexec.Config {
	return runtimeexec.Config{
		Interpreters:   interps,
		WorkDir:        c.WorkDir,
		Timeout:        c.ExecutionTimeout,
		MaxOutputBytes: c.MaxOutputBytes,
		MaxConcurrent:  c.MaxConcurrent,
		Limits: runtimeexec.ResourceLimits{
			MemoryBytes: uint64(c.MemoryLimitMiB) << 20,
			CPUSeconds:  uint64(c.CPULimitSeconds),
		},
		Logger: logger,
	}
}
