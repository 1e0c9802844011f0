package catalog

import (
	"github.com/cx-tal-miterani/flightpulse/internal/engine"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
)

// GateChange handles flight.gate_change: the gate is persisted first so
// passengers reading the flight while notifications fan out already see
// the new gate.
func (c *Catalog) GateChange() *engine.Definition {
	return &engine.Definition{
		Name: "flight-gate-change",
		Match: func(detailType string) bool {
			return detailType == models.DetailGateChange
		},
		Steps: []engine.Step{
			c.taskUpdateFlightGate(),
			c.taskGetAffectedBookings(),
			c.processBookings("flight-gate-change", models.MessageTypeGateChange),
			&engine.Succeed{Name: "GateChangeHandled"},
		},
	}
}
