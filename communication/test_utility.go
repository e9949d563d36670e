package communication

import (
	"testing"

	"github.com/google/uuid"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/identity"
)

// helpers used by tests
func mustIdentity(t *testing.T) (*identity.Identity, string) {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("failed to generate identity: %v", err)
	}
	return id, uuid.NewString()
}

func mustSigned(t *testing.T, id *identity.Identity, sender string, p Payload) *Envelope {
	t.Helper()
	e := New("room-1", 1, sender, p)
	if err := e.Sign(id); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return e
}
