package voltx_modbus

import (
	"time"
)

// Snapshot is one immutable set of decoded register values. Consumers read
// it concurrently without locking; a new poll produces a new Snapshot.
type Snapshot struct {
	Taken  time.Time
	Values map[string]Value
}

func NewSnapshot(taken time.Time, values map[string]Value) *Snapshot {
	return &Snapshot{Taken: taken, Values: values}
}

// Get returns the value for key. Keys absent from the snapshot read as
// unavailable.
func (s *Snapshot) Get(key string) Value {
	if s == nil {
		return UnavailableValue()
	}
	if v, ok := s.Values[key]; ok {
		return v
	}
	return UnavailableValue()
}

func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return now.Sub(s.Taken)
}

// Merge overlays partial onto s and returns a new snapshot. The result's
// timestamp never goes backwards even if partial carries an older clock
// reading.
func (s *Snapshot) Merge(partial *Snapshot) *Snapshot {
	if s == nil {
		return partial
	}
	if partial == nil {
		return s
	}
	values := make(map[string]Value, len(s.Values)+len(partial.Values))
	for k, v := range s.Values {
		values[k] = v
	}
	for k, v := range partial.Values {
		values[k] = v
	}
	taken := partial.Taken
	if taken.Before(s.Taken) {
		taken = s.Taken
	}
	return &Snapshot{Taken: taken, Values: values}
}
