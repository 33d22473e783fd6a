package gateway

import "time"

// Mode says where data is expected to come from.
type Mode string

const (
	ModeBackend Mode = "backend"
	ModeMock    Mode = "mock"
)

// State is the gateway's connectivity view. Subscribers receive copies; the
// gateway is the only writer.
type State struct {
	Mode             Mode
	BaseURL          string
	Online           bool
	PendingMutations int
	LastSync         time.Time
}
