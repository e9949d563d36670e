package network

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v4"
)

const (
	DefaultGatherTimeout = 2 * time.Second
	DefaultSTUNServer    = "stun:stun.l.google.com:19302"
	DataChannelLabel     = "game-data"
)

type managerOptions struct {
	iceServers    []webrtc.ICEServer
	gatherTimeout time.Duration
	log           *slog.Logger
	clock         clockwork.Clock
	settings      *webrtc.SettingEngine
}

// Option configures a Manager.
type Option func(managerOptions) managerOptions

func defaultManagerOptions() managerOptions {
	return managerOptions{
		iceServers:    []webrtc.ICEServer{{URLs: []string{DefaultSTUNServer}}},
		gatherTimeout: DefaultGatherTimeout,
		log:           slog.Default(),
		clock:         clockwork.NewRealClock(),
	}
}

// WithICEServers replaces the default STUN server. No urls means host
// candidates only.
func WithICEServers(urls ...string) Option {
	return func(o managerOptions) managerOptions {
		o.iceServers = nil
		if len(urls) > 0 {
			o.iceServers = []webrtc.ICEServer{{URLs: urls}}
		}
		return o
	}
}

// WithGatherTimeout bounds ICE gathering. When it expires the signal is
// emitted with the candidates found so far.
func WithGatherTimeout(timeout time.Duration) Option {
	return func(o managerOptions) managerOptions {
		o.gatherTimeout = timeout
		return o
	}
}

// WithLogger sets the logger used for connection events.
func WithLogger(log *slog.Logger) Option {
	return func(o managerOptions) managerOptions {
		o.log = log
		return o
	}
}

// WithClock replaces the clock driving the gathering timeout.
func WithClock(clock clockwork.Clock) Option {
	return func(o managerOptions) managerOptions {
		o.clock = clock
		return o
	}
}

// WithSettingEngine passes pion settings such as network types or loopback
// candidates to every new connection.
func WithSettingEngine(se webrtc.SettingEngine) Option {
	return func(o managerOptions) managerOptions {
		o.settings = &se
		return o
	}
}
