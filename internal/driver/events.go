package driver

// Stage identifies a pipeline phase for progress reporting.
type Stage uint8

const (
	// StageLoad covers bundle reading and source registration.
	StageLoad Stage = iota
	// StageCodegen covers the compiler walk.
	StageCodegen
	// StageFinalize covers module sealing.
	StageFinalize
	// StageWrite covers artifact output.
	StageWrite
)

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageCodegen:
		return "codegen"
	case StageFinalize:
		return "finalize"
	case StageWrite:
		return "write"
	default:
		return "stage(?)"
	}
}

// Event is one progress notification.
type Event struct {
	Stage Stage
	// Path names the affected source or artifact, empty for
	// program-level events.
	Path string
	Done bool
}

// ProgressSink receives pipeline events.
type ProgressSink interface {
	Send(Event)
}

// ChannelSink forwards events into a channel, dropping them when the
// receiver falls behind.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) Send(ev Event) {
	select {
	case s.Ch <- ev:
	default:
	}
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) Send(Event) {}
