package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time for deterministic tests. Deadlines in the core are
// plain comparisons against Now, never scheduled callbacks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystem returns a Clock backed by the wall clock (UTC).
func NewSystem() Clock {
	return systemClock{}
}

// Module provides the system clock.
var Module = fx.Module("clock",
	fx.Provide(NewSystem),
)
