package funnel

// Stage identifies one of the two warm-up nudges.
type Stage uint8

const (
	StageWarmup1 Stage = iota + 1
	StageWarmup2
)

// Stages returns the warm-up stages in sweep order.
func Stages() []Stage {
	return []Stage{StageWarmup1, StageWarmup2}
}

func (s Stage) String() string {
	switch s {
	case StageWarmup1:
		return "warmup1"
	case StageWarmup2:
		return "warmup2"
	}
	return "unknown"
}

// Policy selects the funnel shape. With ContactCapture disabled the funnel
// degrades to subscribe-and-broadcast: the document is delivered but no offer
// or warm-ups follow.
type Policy struct {
	ContactCapture bool
}

// DefaultPolicy is the contact-capture funnel.
func DefaultPolicy() Policy {
	return Policy{ContactCapture: true}
}
