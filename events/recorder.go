package events

import "sync"

// Recorder is a test helper that keeps every event published on the bus
// it was attached to.
type Recorder struct {
	mx     sync.Mutex
	events []interface{}
}

// Record subscribes a recorder for events of the same type as each given
// sample value.
func Record(bus *Bus, samples ...interface{}) *Recorder {
	r := &Recorder{}
	for _, sample := range samples {
		bus.Subscribe(sample, r.listen)
	}
	return r
}

func (r *Recorder) listen(event interface{}) {
	r.mx.Lock()
	r.events = append(r.events, event)
	r.mx.Unlock()
}

// Events returns all recorded events in publish order.
func (r *Recorder) Events() []interface{} {
	r.mx.Lock()
	defer r.mx.Unlock()
	out := make([]interface{}, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mx.Lock()
	r.events = nil
	r.mx.Unlock()
}
