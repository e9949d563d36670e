package rps

import (
	"errors"
	"fmt"
	"strconv"
)

type Outcome int

const (
	Draw Outcome = iota
	Win
	Lose
)

func (o Outcome) String() string {
	switch o {
	case Draw:
		return "Draw"
	case Win:
		return "Win"
	case Lose:
		return "Lose"
	}
	return "Outcome(" + strconv.Itoa(int(o)) + ")"
}

// Resolve returns the outcome for self. Each move beats the one before it
// modulo 3.
func Resolve(self, opponent Move) Outcome {
	switch (int(self) - int(opponent) + 3) % 3 {
	case 0:
		return Draw
	case 1:
		return Win
	default:
		return Lose
	}
}

var ErrSignalMismatch = errors.New("public signals do not match the round")

// CheckPublicSignals ensures a proof speaks about the expected player, round
// and commitment. Groth16 only shows the proof is valid for the signals it
// carries, so they must be compared with what was agreed.
func CheckPublicSignals(signals []string, keyField string, round uint64, commitment string) error {
	if len(signals) != 3 {
		return fmt.Errorf("%w: %d signals", ErrSignalMismatch, len(signals))
	}
	if signals[0] != keyField {
		return fmt.Errorf("%w: key field", ErrSignalMismatch)
	}
	if signals[1] != strconv.FormatUint(round, 10) {
		return fmt.Errorf("%w: round %s, expected %d", ErrSignalMismatch, signals[1], round)
	}
	if commitment == "" || signals[2] != commitment {
		return fmt.Errorf("%w: commitment", ErrSignalMismatch)
	}
	return nil
}
