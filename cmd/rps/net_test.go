package main

import (
	"slices"
	"testing"
)

func TestICEServers(t *testing.T) {
	actual, err := iceServers([]string{"stun:stun.l.google.com:19302", "stun.example.org", " ", "[::1]:5000"})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"stun:stun.l.google.com:19302", "stun:stun.example.org:3478", "stun:[::1]:5000"}
	if !slices.Equal(actual, expected) {
		t.Fatalf("expected %v, actual %v", expected, actual)
	}
}

func TestICEServersDisabled(t *testing.T) {
	actual, err := iceServers([]string{""})
	if err != nil {
		t.Fatal(err)
	}
	if len(actual) != 0 {
		t.Fatalf("expected no servers, actual %v", actual)
	}
}

func TestSplitHostPortDefault(t *testing.T) {
	host, port, err := splitHostPort("example.org", 42)
	if err != nil {
		t.Fatal(err)
	}
	if host != "example.org" || port != "42" {
		t.Fatalf("unexpected %s %s", host, port)
	}
}

func TestParsePortRange(t *testing.T) {
	start, end, err := parsePortRange("9000-9010")
	if err != nil || start != 9000 || end != 9010 {
		t.Fatalf("unexpected %d-%d, %v", start, end, err)
	}
	start, end, err = parsePortRange("9005")
	if err != nil || start != 9005 || end != 9005 {
		t.Fatalf("unexpected %d-%d, %v", start, end, err)
	}
	for _, s := range []string{"", "x-9", "9010-9000", "0", "70000"} {
		if _, _, err := parsePortRange(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
