package clinic

import (
	"fmt"
	"time"
)

// TimeWindow is the half-open interval [Start, End) over which an
// appointment occupies a doctor.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow builds a window, enforcing End > Start.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if !end.After(start) {
		return TimeWindow{}, fmt.Errorf("%w: end %s is not after start %s",
			ErrInvalidTimeRange, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return TimeWindow{Start: start, End: end}, nil
}

// Overlaps reports whether the two half-open intervals intersect.
// Touching endpoints do not overlap: a window ending at 10:00 is compatible
// with one starting at 10:00.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
