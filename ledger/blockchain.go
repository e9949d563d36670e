package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/communication"
)

const genesisPrevHash = "0"

type Blockchain struct {
	mu     sync.RWMutex
	blocks []Block
}

// NewBlockchain creates a chain holding only the genesis block.
func NewBlockchain() *Blockchain {
	bc := &Blockchain{
		blocks: make([]Block, 0),
	}
	genesis := Block{
		Index:     0,
		Timestamp: time.Now().UnixMilli(),
		PrevHash:  genesisPrevHash,
		Envelope:  json.RawMessage("null"),
	}
	genesis.Hash = calculateHash(genesis)
	bc.blocks = append(bc.blocks, genesis)
	return bc
}

// Append records an authenticated envelope. Unsigned or tampered envelopes
// are refused.
func (bc *Blockchain) Append(dir Direction, peer string, env *communication.Envelope) error {
	if !env.VerifySignature() {
		return fmt.Errorf("append: %w", communication.ErrBadSignature)
	}
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	latest := bc.blocks[len(bc.blocks)-1]
	block := Block{
		Index:     latest.Index + 1,
		Timestamp: time.Now().UnixMilli(),
		PrevHash:  latest.Hash,
		Envelope:  raw,
		Metadata: Metadata{
			Direction: dir,
			Peer:      peer,
			Round:     env.Round,
			Type:      string(env.Type),
			SenderID:  env.SenderID,
		},
	}
	block.Hash = calculateHash(block)

	if err := validateBlock(block, latest); err != nil {
		return fmt.Errorf("invalid block: %w", err)
	}
	bc.blocks = append(bc.blocks, block)
	return nil
}

// GetLatest returns the most recently added block.
func (bc *Blockchain) GetLatest() Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

// GetByIndex retrieves a block by its index in the chain.
func (bc *Blockchain) GetByIndex(index int) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index < 0 || index >= len(bc.blocks) {
		return Block{}, fmt.Errorf("index out of range")
	}
	return bc.blocks[index], nil
}

// Entries returns every block after genesis.
func (bc *Blockchain) Entries() []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	out := make([]Block, len(bc.blocks)-1)
	copy(out, bc.blocks[1:])
	return out
}

// Round returns the blocks recorded for one game round.
func (bc *Blockchain) Round(round uint64) []Block {
	var out []Block
	for _, b := range bc.Entries() {
		if b.Metadata.Round == round {
			out = append(out, b)
		}
	}
	return out
}

func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

// Verify validates the entire chain and re-checks every stored signature.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return fmt.Errorf("empty blockchain")
	}
	if bc.blocks[0].PrevHash != genesisPrevHash || bc.blocks[0].Hash != calculateHash(bc.blocks[0]) {
		return fmt.Errorf("invalid genesis block")
	}
	for i := 1; i < len(bc.blocks); i++ {
		current := bc.blocks[i]
		if err := validateBlock(current, bc.blocks[i-1]); err != nil {
			return fmt.Errorf("block %d invalid: %w", i, err)
		}
		if _, err := communication.Decode(current.Envelope); err != nil {
			return fmt.Errorf("block %d envelope: %w", i, err)
		}
	}
	return nil
}

func validateBlock(current, previous Block) error {
	if current.Index != previous.Index+1 {
		return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}
	if current.PrevHash != previous.Hash {
		return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
	}
	expectedHash := calculateHash(current)
	if current.Hash != expectedHash {
		return fmt.Errorf("invalid hash: expected %s, got %s", expectedHash, current.Hash)
	}
	return nil
}

// calculateHash is SHA-256 over the block with its own hash left out.
func calculateHash(block Block) string {
	block.Hash = ""
	data, _ := json.Marshal(block)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
