// Package discovery lets players on the same machine find each other's
// signal blobs without copy/paste. Every node serves its current blob over
// HTTP on the first free localhost port of a range and polls the other ports
// of that range.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Entry is a blob announced by another node of the same room.
type Entry struct {
	Port uint16
	Room string
	Blob string
}

type announcement struct {
	Room string `json:"room"`
	Blob string `json:"blob"`
}

// Discover announces this node's blob and reports the blobs of other nodes
// in the same room on Entries. Build it with NewWithOptions.
type Discover struct {
	Entries chan Entry

	opts   discoverOptions
	room   string
	port   uint16
	server *http.Server
	client *http.Client
	done   chan struct{}
	wg     sync.WaitGroup

	mu   sync.RWMutex
	blob string
}

// Publish replaces the blob served to other nodes.
func (d *Discover) Publish(blob string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blob = blob
}

func (d *Discover) Port() uint16 {
	return d.port
}

func (d *Discover) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	a := announcement{Room: d.room, Blob: d.blob}
	d.mu.RUnlock()
	if a.Blob == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a); err != nil {
		d.opts.log.Warn("discovery: write announcement", "err", err)
	}
}

func (d *Discover) run() {
	defer d.wg.Done()
	seen := make(map[Entry]struct{})
	for attempt := uint(0); d.opts.attempts == 0 || attempt < d.opts.attempts; attempt++ {
		if !d.search(seen) {
			return
		}
		select {
		case <-d.done:
			return
		case <-time.After(d.opts.interval):
		}
	}
}

// search polls every other port once. It returns false once the node is
// closed.
func (d *Discover) search(seen map[Entry]struct{}) bool {
	for port := d.opts.startPort; port <= d.opts.endPort && port != 0; port++ {
		if port == d.port {
			continue
		}
		e, ok := d.fetch(port)
		if !ok {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		select {
		case d.Entries <- e:
		case <-d.done:
			return false
		}
	}
	return true
}

func (d *Discover) fetch(port uint16) (Entry, bool) {
	resp, err := d.client.Get(fmt.Sprintf("http://localhost:%d", port))
	if err != nil {
		return Entry{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Entry{}, false
	}
	var a announcement
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		d.opts.log.Debug("discovery: malformed announcement", "port", port, "err", err)
		return Entry{}, false
	}
	if a.Room != d.room || a.Blob == "" {
		return Entry{}, false
	}
	return Entry{Port: port, Room: a.Room, Blob: a.Blob}, true
}

func (d *Discover) Close() error {
	close(d.done)
	err := d.server.Shutdown(context.Background())
	d.wg.Wait()
	return err
}

func listen(startPort, endPort uint16) (net.Listener, uint16, error) {
	var err error
	for port := startPort; port <= endPort && port != 0; port++ {
		var l net.Listener
		l, err = net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			return l, port, nil
		}
	}
	if err == nil {
		err = errors.New("empty port range")
	}
	return nil, 0, err
}
