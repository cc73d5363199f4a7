package pool

// Fidelity is an ordered physical-approximation accuracy requirement a chunk
// may declare. Ranks are comparable by increasing accuracy (not enumeration
// identity); a container's effective fidelity is the maximum rank among its
// current members.
type Fidelity int

const (
	FidelityNone Fidelity = iota
	FidelityCoarse
	FidelityStandard
	FidelityFine
	FidelityPrecise // scarce class, served by the reserved container prefix
)

func (f Fidelity) String() string {
	switch f {
	case FidelityNone:
		return "none"
	case FidelityCoarse:
		return "coarse"
	case FidelityStandard:
		return "standard"
	case FidelityFine:
		return "fine"
	case FidelityPrecise:
		return "precise"
	default:
		return "unknown"
	}
}

// recomputeFidelity rebuilds the container's cached effective fidelity from
// its current members. Idempotent, O(members); runs after every add, replace,
// or remove that touches membership.
func (c *container) recomputeFidelity() {
	top := FidelityNone
	for _, fp := range c.members {
		if fp.fidelity > top {
			top = fp.fidelity
		}
	}
	c.fidelity = top
}
