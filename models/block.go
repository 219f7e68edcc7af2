package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// Block holds one committed transaction in the development ledger's log.
type Block struct {
	Index      uint64 `json:"index"`
	Timestamp  int64  `json:"timestamp"`
	Data       []byte `json:"data"`
	PrevHash   []byte `json:"prev_hash"`
	Hash       []byte `json:"hash"`
	Nonce      uint64 `json:"nonce"`
	Difficulty uint8  `json:"difficulty"` // Number of leading zero bytes required
}

func NewBlock(index uint64, timestamp int64, data []byte, prevHash []byte, difficulty uint8) *Block {
	block := &Block{
		Index:      index,
		Timestamp:  timestamp,
		Data:       data,
		PrevHash:   prevHash,
		Difficulty: difficulty,
	}

	block.Mine()
	return block
}

func (b *Block) Mine() {
	target := make([]byte, b.Difficulty)
	var nonce uint64
	for {
		b.Nonce = nonce
		b.Hash = b.calculateHash()

		if bytes.HasPrefix(b.Hash, target) {
			return
		}

		nonce++
		if nonce%1000 == 0 {
			time.Sleep(time.Microsecond)
		}
	}
}

func (b *Block) calculateHash() []byte {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, b.Index)
	binary.Write(buffer, binary.BigEndian, b.Timestamp)
	buffer.Write(b.Data)
	buffer.Write(b.PrevHash)
	binary.Write(buffer, binary.BigEndian, b.Nonce)

	hash := sha256.Sum256(buffer.Bytes())
	return hash[:]
}

func (b *Block) Validate() bool {
	calculatedHash := b.calculateHash()
	if !bytes.Equal(calculatedHash, b.Hash) {
		return false
	}

	target := make([]byte, b.Difficulty)
	return bytes.HasPrefix(calculatedHash, target)
}

// GenesisHash is the previous-hash value of the first block.
func GenesisHash() []byte {
	return make([]byte, sha256.Size)
}

// ValidateChain checks hashes, links, indexes and timestamp ordering of blocks.
func ValidateChain(blocks []*Block) error {
	prevHash := GenesisHash()
	for i, block := range blocks {
		if !block.Validate() {
			return fmt.Errorf("block %d has invalid hash", i)
		}
		if !bytes.Equal(block.PrevHash, prevHash) {
			return fmt.Errorf("block %d has invalid previous hash link", i)
		}
		if block.Index != uint64(i) {
			return fmt.Errorf("block %d has invalid index %d", i, block.Index)
		}
		if i > 0 && block.Timestamp < blocks[i-1].Timestamp {
			return fmt.Errorf("block %d has timestamp before its predecessor", i)
		}
		prevHash = block.Hash
	}
	return nil
}
