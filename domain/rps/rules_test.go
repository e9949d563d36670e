package rps

import (
	"errors"
	"testing"
)

func TestResolveTable(t *testing.T) {
	table := map[[2]Move]Outcome{
		{Rock, Rock}:         Draw,
		{Rock, Paper}:        Lose,
		{Rock, Scissors}:     Win,
		{Paper, Rock}:        Win,
		{Paper, Paper}:       Draw,
		{Paper, Scissors}:    Lose,
		{Scissors, Rock}:     Lose,
		{Scissors, Paper}:    Win,
		{Scissors, Scissors}: Draw,
	}
	for in, want := range table {
		if got := Resolve(in[0], in[1]); got != want {
			t.Fatalf("Resolve(%s, %s) = %s, want %s", in[0], in[1], got, want)
		}
		// outcomes are mirrored from the other side
		mirror := Resolve(in[1], in[0])
		if (want == Win) != (mirror == Lose) || (want == Draw) != (mirror == Draw) {
			t.Fatalf("asymmetric outcome for %v", in)
		}
	}
}

func TestParseMove(t *testing.T) {
	for in, want := range map[string]Move{
		"rock": Rock, "R": Rock, "0": Rock,
		"Paper": Paper, "p": Paper, "1": Paper,
		" scissors ": Scissors, "s": Scissors, "2": Scissors,
	} {
		got, err := ParseMove(in)
		if err != nil || got != want {
			t.Fatalf("ParseMove(%q) = %v, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "3", "lizard"} {
		if _, err := ParseMove(in); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("ParseMove(%q) should fail", in)
		}
	}
	if Move(7).String() != "Move(7)" {
		t.Fatalf("unexpected %s", Move(7))
	}
}

func TestCheckPublicSignals(t *testing.T) {
	ok := []string{"11", "2", "33"}
	if err := CheckPublicSignals(ok, "11", 2, "33"); err != nil {
		t.Fatal(err)
	}
	bad := map[string][]string{
		"short":      {"11", "2"},
		"key":        {"12", "2", "33"},
		"round":      {"11", "1", "33"},
		"commitment": {"11", "2", "34"},
	}
	for name, signals := range bad {
		if err := CheckPublicSignals(signals, "11", 2, "33"); !errors.Is(err, ErrSignalMismatch) {
			t.Fatalf("%s: expected ErrSignalMismatch, got %v", name, err)
		}
	}
	if err := CheckPublicSignals(ok, "11", 2, ""); !errors.Is(err, ErrSignalMismatch) {
		t.Fatal("missing recorded commitment accepted")
	}
}
