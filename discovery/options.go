package discovery

import (
	"log/slog"
	"net/http"
	"time"
)

type discoverOptions struct {
	startPort uint16
	endPort   uint16
	attempts  uint
	interval  time.Duration
	log       *slog.Logger
}

type option func(discoverOptions) discoverOptions

// NewWithOptions binds the first free port of the range and starts polling.
// Zero attempts polls until Close.
func NewWithOptions(room string, opts ...option) (*Discover, error) {
	o := discoverOptions{
		startPort: 9000,
		endPort:   9010,
		attempts:  1,
		interval:  time.Second,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		o = opt(o)
	}

	l, port, err := listen(o.startPort, o.endPort)
	if err != nil {
		return nil, err
	}
	d := &Discover{
		Entries: make(chan Entry),
		opts:    o,
		room:    room,
		port:    port,
		client:  &http.Client{Timeout: 500 * time.Millisecond},
		done:    make(chan struct{}),
	}
	d.server = &http.Server{Handler: d}
	go func() {
		if err := d.server.Serve(l); err != nil && err != http.ErrServerClosed {
			o.log.Error("discovery: serve", "port", port, "err", err)
		}
	}()
	d.wg.Add(1)
	go d.run()
	return d, nil
}

func WithPortRange(startPort, endPort uint16) option {
	return func(o discoverOptions) discoverOptions {
		o.startPort = startPort
		o.endPort = endPort
		return o
	}
}

func WithPort(port uint16) option {
	return WithPortRange(port, port)
}

func WithAttempts(attempts uint) option {
	return func(o discoverOptions) discoverOptions {
		o.attempts = attempts
		return o
	}
}

func WithInterval(interval time.Duration) option {
	return func(o discoverOptions) discoverOptions {
		o.interval = interval
		return o
	}
}

func WithLogger(log *slog.Logger) option {
	return func(o discoverOptions) discoverOptions {
		o.log = log
		return o
	}
}
