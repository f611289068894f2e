// Package config loads and validates application configuration.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" validate:"required"`
	Pool    PoolConfig    `mapstructure:"pool"    validate:"required"`
	Buffer  BufferConfig  `mapstructure:"buffer"  validate:"required"`
}

// LoggingConfig contains the logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// PoolConfig contains the worker pool settings.
type PoolConfig struct {
	WorkerCount   int           `mapstructure:"worker_count"   validate:"required,gt=0"`
	QueueCapacity int           `mapstructure:"queue_capacity" validate:"required,gt=0"`
	CancelTimeout time.Duration `mapstructure:"cancel_timeout" validate:"required,gt=0"`
}

// BufferConfig contains the bounded output buffer settings.
type BufferConfig struct {
	Strategy     string `mapstructure:"strategy"      validate:"required,oneof=lines bytes"`
	InitialLines int    `mapstructure:"initial_lines" validate:"required,gt=0"`
	MaxLines     int    `mapstructure:"max_lines"     validate:"required,gtefield=InitialLines"`
	MaxBytes     int    `mapstructure:"max_bytes"     validate:"required,gt=0"`
}
