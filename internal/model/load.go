package model

import "strings"

// LoadClass identifies a household consumer the scheduler can switch.
type LoadClass string

const (
	LoadLight      LoadClass = "light"
	LoadFridge     LoadClass = "fridge"
	LoadAC         LoadClass = "ac"
	LoadDryer      LoadClass = "dryer"
	LoadDishwasher LoadClass = "dishwasher"
	LoadTV         LoadClass = "tv"
)

// Window is an [Start, End) range of whole hours of the day.
type Window struct {
	Start int `json:"start" mapstructure:"start"`
	End   int `json:"end" mapstructure:"end"`
}

// Contains reports whether hour falls inside the window.
func (w Window) Contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

// LoadSpec describes one load class: its draw and when the automatic
// schedule switches it on. AlwaysOn overrides Windows.
type LoadSpec struct {
	Class    LoadClass `json:"class" mapstructure:"class"`
	Name     string    `json:"name" mapstructure:"name"`
	Watts    float64   `json:"watts" mapstructure:"watts"`
	AlwaysOn bool      `json:"always_on" mapstructure:"always_on"`
	Windows  []Window  `json:"windows" mapstructure:"windows"`
}

// ActiveAt reports whether the automatic schedule has this load on at hour.
func (s LoadSpec) ActiveAt(hour int) bool {
	if s.AlwaysOn {
		return true
	}
	for _, w := range s.Windows {
		if w.Contains(hour) {
			return true
		}
	}
	return false
}

// DefaultLoads is the reference household, in display order.
func DefaultLoads() []LoadSpec {
	return []LoadSpec{
		{Class: LoadLight, Name: "Light", Watts: 100, Windows: []Window{{6, 9}, {18, 24}}},
		{Class: LoadFridge, Name: "Fridge", Watts: 150, AlwaysOn: true},
		{Class: LoadAC, Name: "Air Conditioning", Watts: 2000, Windows: []Window{{10, 22}}},
		{Class: LoadDryer, Name: "Dryer", Watts: 500, Windows: []Window{{16, 17}}},
		{Class: LoadDishwasher, Name: "Dishwasher", Watts: 1000, Windows: []Window{{10, 11}, {17, 18}}},
		{Class: LoadTV, Name: "TV", Watts: 300, Windows: []Window{{19, 22}}},
	}
}

// ParseLoadClass normalizes a load name coming from a request.
func ParseLoadClass(name string) LoadClass {
	return LoadClass(strings.ToLower(strings.TrimSpace(name)))
}
