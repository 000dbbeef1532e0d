package engine

import "sync/atomic"

// PurchaseGate is shared by every worker of an engine. It starts open and
// closes for good after the first successful reservation.
type PurchaseGate struct {
	closed atomic.Bool
}

func NewPurchaseGate() *PurchaseGate {
	return &PurchaseGate{}
}

func (g *PurchaseGate) Enabled() bool {
	return !g.closed.Load()
}

// Close reports whether this call was the one that closed the gate.
func (g *PurchaseGate) Close() bool {
	return g.closed.CompareAndSwap(false, true)
}
