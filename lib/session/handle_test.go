package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeInverse(t *testing.T) {
	owners := []OwnerID{0, 1, 0x2a, 0x7fff, 0xfffe, 0xffff}
	indexes := []int{0, 1, 2, 255, 256, MaxCapacity - 1}

	seen := make(map[Handle]struct{})
	for _, o := range owners {
		for _, i := range indexes {
			h := Encode(o, i)
			gotOwner, gotIndex := Decode(h)
			assert.Equal(t, o, gotOwner)
			assert.Equal(t, i, gotIndex)

			_, dup := seen[h]
			assert.False(t, dup, "collision for owner=%d index=%d", o, i)
			seen[h] = struct{}{}
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	assert.Equal(t, Handle(0x00050003), Encode(5, 3))
	assert.Equal(t, "0005:0003", Encode(5, 3).String())
}
