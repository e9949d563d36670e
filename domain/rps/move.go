package rps

import (
	"fmt"
	"strconv"
	"strings"
)

type Move uint8

const (
	Rock Move = iota
	Paper
	Scissors
)

var moveNames = [...]string{"Rock", "Paper", "Scissors"}

func (m Move) Valid() bool {
	return m <= Scissors
}

func (m Move) String() string {
	if !m.Valid() {
		return "Move(" + strconv.Itoa(int(m)) + ")"
	}
	return moveNames[m]
}

// ParseMove accepts a move name, its initial or its number.
func ParseMove(s string) (Move, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i, name := range moveNames {
		lower := strings.ToLower(name)
		if s == lower || s == lower[:1] || s == strconv.Itoa(i) {
			return Move(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMove, s)
}
