// Package common provides shared utilities for command implementations.
package common

import (
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/godocscan/internal/config"
	"github.com/jonesrussell/godocscan/internal/logger"
)

// CommandDeps holds common dependencies for all commands.
// Use this instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Logger logger.Interface
	Config *config.Config
	DB     *sqlx.DB
}

// Validate ensures all required dependencies are present.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	if d.DB == nil {
		return ErrDatabaseRequired
	}
	return nil
}

// Close releases held resources.
func (d *CommandDeps) Close() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
