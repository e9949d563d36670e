package zk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
)

var ErrArtifact = errors.New("invalid proof artifact")

// Artifacts is the output of the offline setup pipeline.
type Artifacts struct {
	Circuit      []byte // compiled constraint system, solves the witness
	ProvingKey   []byte
	VerifyingKey []byte // VerifyingKeyDocument as JSON
}

// VerifyingKeyDocument wraps the binary verifying key so it can be published
// and fetched as JSON.
type VerifyingKeyDocument struct {
	Protocol string `json:"protocol"`
	Curve    string `json:"curve"`
	NPublic  int    `json:"nPublic"`
	Key      []byte `json:"key"`
}

const (
	protocolGroth16 = "groth16"
	curveBN254      = "bn254"
)

// Source names where each artifact lives: a file path or an http(s) URL.
type Source struct {
	Circuit      string
	ProvingKey   string
	VerifyingKey string
}

// Load fetches the three artifacts.
func (s Source) Load(ctx context.Context) (*Artifacts, error) {
	circuit, err := Fetch(ctx, s.Circuit)
	if err != nil {
		return nil, fmt.Errorf("circuit: %w", err)
	}
	pk, err := Fetch(ctx, s.ProvingKey)
	if err != nil {
		return nil, fmt.Errorf("proving key: %w", err)
	}
	vk, err := Fetch(ctx, s.VerifyingKey)
	if err != nil {
		return nil, fmt.Errorf("verifying key: %w", err)
	}
	return &Artifacts{Circuit: circuit, ProvingKey: pk, VerifyingKey: vk}, nil
}

// Fetch reads an artifact from disk or over http(s).
func Fetch(ctx context.Context, location string) ([]byte, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrArtifact)
	}
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return os.ReadFile(location)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", location, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// WriteFiles stores the artifacts at the paths of s.
func (a *Artifacts) WriteFiles(s Source) error {
	files := []struct {
		path string
		data []byte
	}{
		{s.Circuit, a.Circuit},
		{s.ProvingKey, a.ProvingKey},
		{s.VerifyingKey, a.VerifyingKey},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func encodeVerifyingKey(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, err
	}
	return json.Marshal(VerifyingKeyDocument{
		Protocol: protocolGroth16,
		Curve:    curveBN254,
		NPublic:  NumPublicSignals,
		Key:      buf.Bytes(),
	})
}

// ParseVerifyingKey decodes a verifying key document.
func ParseVerifyingKey(doc []byte) (groth16.VerifyingKey, error) {
	var d VerifyingKeyDocument
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	if d.Protocol != protocolGroth16 || d.Curve != curveBN254 || d.NPublic != NumPublicSignals {
		return nil, fmt.Errorf("%w: unsupported key %s/%s with %d public inputs", ErrArtifact, d.Protocol, d.Curve, d.NPublic)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(d.Key)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	return vk, nil
}

func parseCircuit(b []byte) (constraint.ConstraintSystem, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if _, err := ccs.ReadFrom(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("%w: circuit: %v", ErrArtifact, err)
	}
	return ccs, nil
}

func parseProvingKey(b []byte) (groth16.ProvingKey, error) {
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("%w: proving key: %v", ErrArtifact, err)
	}
	return pk, nil
}
