package application

import (
	"log/slog"
	"time"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/network"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/zk"
)

type Config struct {
	// RoomID scopes envelopes; messages for other rooms are dropped.
	RoomID      string
	Description string

	ICEServers    []string
	GatherTimeout time.Duration

	Artifacts zk.Source

	// EventBuffer is the capacity of the Events channel. Events are dropped,
	// with a warning, when the consumer falls that far behind.
	EventBuffer int

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		RoomID:        "default",
		Description:   "player",
		ICEServers:    []string{network.DefaultSTUNServer},
		GatherTimeout: network.DefaultGatherTimeout,
		Artifacts: zk.Source{
			Circuit:      "artifacts/hand_integrity.ccs",
			ProvingKey:   "artifacts/hand_integrity.pk",
			VerifyingKey: "artifacts/verification_key.json",
		},
		EventBuffer: 256,
	}
}
