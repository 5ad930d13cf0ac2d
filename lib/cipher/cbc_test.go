package cipher

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NIST SP 800-38A, F.2.5 CBC-AES256.Encrypt
const (
	nistKey = "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4"
	nistIV  = "000102030405060708090a0b0c0d0e0f"
)

var nistBlocks = []struct {
	plain  string
	cipher string
}{
	{"6bc1bee22e409f96e93d7e117393172a", "f58c4c04d6e5f1ba779eabfb5f7bfbd6"},
	{"ae2d8a571e03ac9c9eb76fac45af8e51", "9cfc4e967edb808d679f777bc6702c7d"},
	{"30c81c46a35ce411e5fbc1191a0a52ef", "39f23369a9d9bacfa530e26304231461"},
	{"f69f2445df4f9b17ad2b417be66c3710", "b2eb05e2c39be9fcda6c19078c6a9d1b"},
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func mustBlock(t *testing.T, s string) Block {
	t.Helper()
	var b Block
	copy(b[:], mustHex(t, s))
	return b
}

func TestEncryptChainMatchesNISTVector(t *testing.T) {
	var s State
	require.NoError(t, s.Initialize(mustHex(t, nistKey), mustHex(t, nistIV)))

	for i, v := range nistBlocks {
		got := s.EncryptBlock(mustBlock(t, v.plain))
		assert.Equal(t, v.cipher, hex.EncodeToString(got[:]), "block %d", i)
	}
}

func TestDecryptChainMatchesNISTVector(t *testing.T) {
	var s State
	require.NoError(t, s.Initialize(mustHex(t, nistKey), mustHex(t, nistIV)))

	for i, v := range nistBlocks {
		got := s.DecryptBlock(mustBlock(t, v.cipher))
		assert.Equal(t, v.plain, hex.EncodeToString(got[:]), "block %d", i)
	}
}

func TestRoundTripRandomBlocks(t *testing.T) {
	key := make([]byte, KeySize)
	iv := make([]byte, BlockSize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	var enc, dec State
	require.NoError(t, enc.Initialize(key, iv))
	require.NoError(t, dec.Initialize(key, iv))

	for i := 0; i < 32; i++ {
		var p Block
		_, err := rand.Read(p[:])
		require.NoError(t, err)

		c := enc.EncryptBlock(p)
		assert.Equal(t, p, dec.DecryptBlock(c))
	}
}

func TestInitializeRejectsBadLengths(t *testing.T) {
	var s State

	err := s.Initialize(make([]byte, 16), make([]byte, BlockSize))
	assert.Error(t, err)
	assert.False(t, s.Valid())

	err = s.Initialize(make([]byte, KeySize), make([]byte, 8))
	assert.Error(t, err)
	assert.False(t, s.Valid())
}

func TestDisposeInvalidatesState(t *testing.T) {
	var s State
	require.NoError(t, s.Initialize(mustHex(t, nistKey), mustHex(t, nistIV)))
	require.True(t, s.Valid())

	s.Dispose()

	assert.False(t, s.Valid())
	assert.Equal(t, Block{}, s.iv)
}
