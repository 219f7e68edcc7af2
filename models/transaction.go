package models

import "encoding/json"

// Transaction is a committed submit recorded in the development ledger's block log.
type Transaction struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name"`
	Args      []string                   `json:"args"`
	Creator   string                     `json:"creator"`
	Nonce     []byte                     `json:"nonce"`
	Timestamp int64                      `json:"timestamp"`
	Writes    map[string]json.RawMessage `json:"writes"`
	Result    string                     `json:"result"`
	Signature []byte                     `json:"signature,omitempty"`
}

// SigningBytes is the canonical encoding covered by the creator's signature.
func (t Transaction) SigningBytes() ([]byte, error) {
	unsigned := t
	unsigned.Signature = nil
	return json.Marshal(unsigned)
}
