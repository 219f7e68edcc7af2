package local

import (
	"bytes"
	"encoding/json"
	"fmt"

	"election-coordinator/models"
	"election-coordinator/signing"
)

// sealTransaction signs tx and wraps it in the next mined block.
func (l *Ledger) sealTransaction(tx *models.Transaction) (*models.Block, error) {
	payload, err := tx.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %v", err)
	}
	tx.Signature, err = l.signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %v", err)
	}

	return models.NewBlock(uint64(len(l.blocks)), tx.Timestamp, data, l.lastHash(), l.difficulty), nil
}

func (l *Ledger) lastHash() []byte {
	if len(l.blocks) == 0 {
		return models.GenesisHash()
	}
	return l.blocks[len(l.blocks)-1].Hash
}

func (l *Ledger) nextTimestamp() int64 {
	now := l.now().UnixNano()
	if len(l.blocks) > 0 {
		if last := l.blocks[len(l.blocks)-1].Timestamp; now < last {
			return last
		}
	}
	return now
}

// verifyBlocks checks the block log and replays its writes. It returns the
// world state the log produces.
func verifyBlocks(blocks []*models.Block) (map[string][]byte, error) {
	if err := models.ValidateChain(blocks); err != nil {
		return nil, err
	}

	state := make(map[string][]byte)
	for i, block := range blocks {
		var tx models.Transaction
		if err := json.Unmarshal(block.Data, &tx); err != nil {
			return nil, fmt.Errorf("block %d holds an undecodable transaction: %v", i, err)
		}
		payload, err := tx.SigningBytes()
		if err != nil {
			return nil, fmt.Errorf("block %d: %v", i, err)
		}
		if err := signing.Verify(tx.Creator, payload, tx.Signature); err != nil {
			return nil, fmt.Errorf("block %d: %v", i, err)
		}
		if tx.ID != signing.TransactionID(tx.Nonce, tx.Creator) {
			return nil, fmt.Errorf("block %d: transaction id does not match its nonce", i)
		}
		for key, value := range tx.Writes {
			compacted, err := compactJSON(value)
			if err != nil {
				return nil, fmt.Errorf("block %d: write to %s: %v", i, key, err)
			}
			state[key] = compacted
		}
	}
	return state, nil
}

func compactJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sameState(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		if !bytes.Equal(value, b[key]) {
			return false
		}
	}
	return true
}
