package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const defaultSTUNPort = 3478

// iceServers turns user input into stun: urls. Blank entries are dropped, so
// --stun "" disables STUN entirely.
func iceServers(in []string) ([]string, error) {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		s = strings.TrimPrefix(s, "stun:")
		host, port, err := splitHostPort(s, defaultSTUNPort)
		if err != nil {
			return nil, fmt.Errorf("stun server %q: %w", s, err)
		}
		out = append(out, "stun:"+net.JoinHostPort(host, port))
	}
	return out, nil
}

// splitHostPort splits an address into host and port, using defaultPort if no port is specified.
func splitHostPort(addr string, defaultPort int) (string, string, error) {
	ipaddr, port, err := net.SplitHostPort(addr)
	if err != nil {
		addr = addr + ":" + strconv.Itoa(defaultPort)
		ipaddr, port, err = net.SplitHostPort(addr)
		if err != nil {
			return "", "", err
		}
	}
	return ipaddr, port, nil
}

// parsePortRange accepts "9000-9010" or a single port.
func parsePortRange(s string) (uint16, uint16, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	if !found {
		hi = lo
	}
	start, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("port range %q: %w", s, err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(hi), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("port range %q: %w", s, err)
	}
	if start == 0 || end < start {
		return 0, 0, fmt.Errorf("port range %q is empty", s)
	}
	return uint16(start), uint16(end), nil
}
