package remap

// Status describes the bridge lifecycle for the indicator collaborator.
type Status int

const (
	// StatusBootPhase1 is set while the core is being constructed.
	StatusBootPhase1 Status = iota
	// StatusBootPhase2 is set once transports are attached but before traffic.
	StatusBootPhase2
	// StatusIdle means no report traffic for the configured quiet period.
	StatusIdle
	// StatusActive means reports are flowing.
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusBootPhase1:
		return "boot-1"
	case StatusBootPhase2:
		return "boot-2"
	case StatusIdle:
		return "idle"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// StatusSink receives status transitions. Rendering is entirely the sink's
// concern; the core only publishes the enum and never reads it back.
type StatusSink interface {
	SetStatus(Status)
}
