// Package signing provides the ECDSA identity the development ledger uses to
// sign and attribute committed transactions.
package signing

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

const nonceSize = 24

type Signer struct {
	key *ecdsa.PrivateKey
}

// Credentials is the on-disk form of a signing identity.
type Credentials struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// GenerateSigner creates a signer with a fresh secp256k1 key.
func GenerateSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate signing key")
	}
	return &Signer{key: key}, nil
}

// LoadOrGenerate restores the identity stored at path, creating and saving a
// new one when the file does not exist.
func LoadOrGenerate(path string) (*Signer, error) {
	if data, err := os.ReadFile(path); err == nil {
		var creds Credentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, errors.Wrap(err, "failed to parse signing credentials")
		}

		key, err := crypto.HexToECDSA(strings.TrimPrefix(creds.PrivateKey, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to restore signing key")
		}
		return &Signer{key: key}, nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read signing credentials")
	}

	signer, err := GenerateSigner()
	if err != nil {
		return nil, err
	}

	creds := Credentials{
		PublicKey:  signer.Creator(),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(signer.key)),
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal signing credentials")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create credentials directory")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, errors.Wrap(err, "failed to save signing credentials")
	}

	return signer, nil
}

// Creator is the hex encoded uncompressed public key recorded on transactions.
func (s *Signer) Creator() string {
	return hexutil.Encode(crypto.FromECDSAPub(&s.key.PublicKey))
}

// Address is the short account form of the public key, used in logs.
func (s *Signer) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

// Sign signs the Keccak-256 digest of data.
func (s *Signer) Sign(data []byte) ([]byte, error) {
	return crypto.Sign(Keccak256(data), s.key)
}

// Verify checks that sig over data was produced by the holder of creator.
func Verify(creator string, data, sig []byte) error {
	pub, err := hexutil.Decode(creator)
	if err != nil {
		return errors.Wrap(err, "invalid creator encoding")
	}
	if len(sig) != crypto.SignatureLength {
		return errors.Errorf("invalid signature length %d", len(sig))
	}

	digest := Keccak256(data)
	recovered, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return errors.Wrap(err, "failed to recover signer")
	}
	if !bytes.Equal(crypto.FromECDSAPub(recovered), pub) {
		return errors.New("signature does not match creator")
	}
	if !crypto.VerifySignature(pub, digest, sig[:crypto.RecoveryIDOffset]) {
		return errors.New("signature verification failed")
	}
	return nil
}

// Keccak256 computes the Keccak-256 hash of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// NewNonce returns random bytes that make a transaction ID unique.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "failed to read nonce")
	}
	return nonce, nil
}

// TransactionID derives a transaction ID from the nonce and creator, the way
// Fabric derives it from the signature header.
func TransactionID(nonce []byte, creator string) string {
	return hex.EncodeToString(Keccak256(nonce, []byte(creator)))
}
