package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{0xde, 0xad}))
	require.NoError(t, WriteFrame(&buf, nil))

	assert.Equal(t, []byte{0, 0, 0, 2, 0xde, 0xad, 0, 0, 0, 0}, buf.Bytes())

	first, err := ReadFrame(&buf, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, first)

	second, err := ReadFrame(&buf, 16)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestReadFrameTooLarge(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 9, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	_, err := ReadFrame(buf, 8)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameShortBody(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 4, 1, 2})
	_, err := ReadFrame(buf, 0)
	assert.Error(t, err)
}

func TestIdentityPoolSkipsReserved(t *testing.T) {
	p := newIdentityPool()
	p.next = lastIdentity

	a, err := p.acquire()
	require.NoError(t, err)
	b, err := p.acquire()
	require.NoError(t, err)

	if a != lastIdentity {
		t.Errorf("first identity = %d, want %d", a, lastIdentity)
	}
	if b != firstIdentity {
		t.Errorf("identity after wrap = %d, want %d", b, firstIdentity)
	}

	p.release(a)
	assert.Equal(t, 1, p.count())
}

func TestIdentityPoolUnique(t *testing.T) {
	p := newIdentityPool()
	seen := make(map[uint16]bool)
	for i := 0; i < 100; i++ {
		id, err := p.acquire()
		require.NoError(t, err)
		require.False(t, seen[uint16(id)], "identity %d handed out twice", id)
		seen[uint16(id)] = true
	}
}
