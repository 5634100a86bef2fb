package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

var ErrInvalidCount = errors.New("count must be greater than 0")

// Cron is a parsed cron expression.
type Cron struct {
	source string
	expr   *cronexpr.Expression
}

func ParseCron(cron string) (*Cron, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cron, err)
	}
	return &Cron{source: cron, expr: expr}, nil
}

func (c *Cron) String() string {
	return c.source
}

// Next returns the first run time strictly after t, or the zero time if
// the expression never fires again.
func (c *Cron) Next(t time.Time) time.Time {
	return c.expr.Next(t)
}

// NextRunTimesAfter returns the next n run times after a specific time.
func NextRunTimesAfter(cron string, after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, ErrInvalidCount
	}
	c, err := ParseCron(cron)
	if err != nil {
		return nil, err
	}
	return c.expr.NextN(after, uint(n)), nil
}

func ValidateCron(cron string) error {
	_, err := ParseCron(cron)
	return err
}
