package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/subtle"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// BlockSize is the AES block length in bytes. Every request carries exactly one block.
	BlockSize = aes.BlockSize
)

// Block is a single AES block.
type Block = [BlockSize]byte

// State is the cipher context owned by one session slot.
// The zero value is a disposed (invalid) state.
type State struct {
	block stdcipher.Block
	iv    Block
}

// Initialize expands key and loads iv as the first chaining vector.
// Any previous contents of the state are discarded.
func (s *State) Initialize(key []byte, iv []byte) error {
	if len(key) != KeySize {
		return oops.Errorf("invalid key length: got %d bytes, want %d", len(key), KeySize)
	}
	if len(iv) != BlockSize {
		return oops.Errorf("invalid iv length: got %d bytes, want %d", len(iv), BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		log.WithError(err).Error("failed_to_create_aes_cipher")
		return oops.Wrapf(err, "failed to create AES cipher")
	}

	s.block = block
	copy(s.iv[:], iv)
	return nil
}

// Valid reports whether the state has been initialized and not disposed.
func (s *State) Valid() bool {
	return s.block != nil
}

// EncryptBlock CBC-encrypts one block and makes the ciphertext the next chaining vector.
func (s *State) EncryptBlock(in Block) Block {
	var out Block
	subtle.XORBytes(out[:], in[:], s.iv[:])
	s.block.Encrypt(out[:], out[:])
	s.iv = out
	return out
}

// DecryptBlock CBC-decrypts one block and makes the ciphertext the next chaining vector.
func (s *State) DecryptBlock(in Block) Block {
	var out Block
	s.block.Decrypt(out[:], in[:])
	subtle.XORBytes(out[:], out[:], s.iv[:])
	s.iv = in
	return out
}

// Dispose clears the chaining vector and drops the key schedule.
func (s *State) Dispose() {
	var zero Block
	subtle.ConstantTimeCopy(1, s.iv[:], zero[:])
	s.block = nil
}
