// Package schedule evaluates cron expressions into concrete scan times.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard 5-field expressions (minute hour day month
// weekday) with an optional leading seconds field.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ConfigError reports an unparseable cron expression. The caller does not
// recover from it; the instance stays unscheduled until the expression is
// corrected.
type ConfigError struct {
	Expr string
	Err  error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid cron expression %q: %v", e.Expr, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NextOccurrence returns the next instant matching the expression, strictly
// after now.
func NextOccurrence(expr string) (time.Time, error) {
	return NextOccurrenceAfter(expr, time.Now())
}

// NextOccurrenceAfter returns the next instant matching the expression,
// strictly after the given time.
func NextOccurrenceAfter(expr string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, &ConfigError{Expr: expr, Err: err}
	}
	return sched.Next(from), nil
}
