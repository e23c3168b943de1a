package simulator

import "microgrid_twin/internal/solar"

// BatteryConfig holds the profile parameters of the storage bank.
type BatteryConfig struct {
	CellCapacityWh   float64 `json:"cell_capacity_wh" mapstructure:"cell_capacity_wh"`
	ChargeEfficiency float64 `json:"charge_efficiency" mapstructure:"charge_efficiency"`
	BaselinePercent  float64 `json:"baseline_percent" mapstructure:"baseline_percent"`
}

// DefaultBatteryConfig is the reference bank: 5 kWh cells, 85% charge
// efficiency, starting empty.
var DefaultBatteryConfig = BatteryConfig{
	CellCapacityWh:   5000,
	ChargeEfficiency: 0.85,
	BaselinePercent:  0,
}

// Flow is the grid exchange caused by one Process call.
type Flow struct {
	ImportWh float64
	ExportWh float64
}

// Battery is the bank of enabled cells frozen at run start. With zero cells
// it is a pass-through: every surplus is exported and every deficit imported.
type Battery struct {
	config     BatteryConfig
	cells      int
	SoCPercent float64
}

// NewBattery creates a bank of cells at the configured baseline.
func NewBattery(cfg BatteryConfig, cells int) *Battery {
	b := &Battery{config: cfg, cells: cells}
	b.Reset()
	return b
}

// CapacityWh returns the usable bank capacity.
func (b *Battery) CapacityWh() float64 {
	return float64(b.cells) * b.config.CellCapacityWh
}

// Process applies netW (generation minus load) for the given simulated hours.
// Charging loses energy to efficiency; discharging does not. Whatever would
// push SoC outside [0,100] is routed to the grid exactly once.
func (b *Battery) Process(netW, hours float64) Flow {
	capacityWh := b.CapacityWh()
	if capacityWh <= 0 {
		b.SoCPercent = 0
		wh := netW * hours
		if wh > 0 {
			return Flow{ExportWh: wh}
		}
		return Flow{ImportWh: -wh}
	}

	deltaWh := netW * hours
	if deltaWh > 0 {
		deltaWh *= b.config.ChargeEfficiency
	}
	newSoC := b.SoCPercent + deltaWh/capacityWh*100

	switch {
	case newSoC < 0:
		b.SoCPercent = 0
		return Flow{ImportWh: -newSoC / 100 * capacityWh}
	case newSoC > 100:
		b.SoCPercent = 100
		return Flow{ExportWh: (newSoC - 100) / 100 * capacityWh}
	}
	b.SoCPercent = newSoC
	return Flow{}
}

// Reset returns the bank to its baseline charge. A bank without cells always
// reads 0%.
func (b *Battery) Reset() {
	if b.cells <= 0 {
		b.SoCPercent = 0
		return
	}
	b.SoCPercent = solar.Clamp(b.config.BaselinePercent, 0, 100)
}

// Ledger accumulates the run's energy totals. All fields only grow during a run.
type Ledger struct {
	FromGridKWh float64
	ToGridKWh   float64
	ConsumedKWh float64
}

// Record adds one step's load consumption and grid flow.
func (l *Ledger) Record(loadW, hours float64, f Flow) {
	l.ConsumedKWh += loadW * hours / 1000
	l.FromGridKWh += f.ImportWh / 1000
	l.ToGridKWh += f.ExportWh / 1000
}
