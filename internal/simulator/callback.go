package simulator

import "microgrid_twin/internal/model"

// Callbacks fans events out to several consumers in order. A nil or empty
// Callbacks discards events.
type Callbacks []Callback

func (cs Callbacks) OnState(state State) {
	for _, c := range cs {
		c.OnState(state)
	}
}

func (cs Callbacks) OnSample(sample model.Sample) {
	for _, c := range cs {
		c.OnSample(sample)
	}
}
