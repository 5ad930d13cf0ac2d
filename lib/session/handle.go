package session

import "fmt"

// OwnerID identifies the caller that created a session, as reported by the transport.
type OwnerID uint16

// Handle is the opaque capability token returned to callers by init.
// It is produced only by Encode and must be re-validated on every use.
type Handle uint32

const (
	// IndexBits is the number of low bits of a Handle that carry the slot index.
	IndexBits = 16
	// OwnerBits is the number of high bits of a Handle that carry the owner.
	OwnerBits = 16

	indexMask = 1<<IndexBits - 1

	// MaxCapacity is the largest table capacity the codec can address.
	MaxCapacity = 1 << IndexBits
)

// Encode packs owner and slot index into a handle, owner in the high bits.
// index must be in [0, MaxCapacity); higher bits are discarded.
func Encode(owner OwnerID, index int) Handle {
	return Handle(uint32(owner)<<IndexBits | uint32(index)&indexMask)
}

// Decode is the inverse of Encode.
func Decode(h Handle) (OwnerID, int) {
	return OwnerID(uint32(h) >> IndexBits), int(uint32(h) & indexMask)
}

func (h Handle) String() string {
	owner, index := Decode(h)
	return fmt.Sprintf("%04x:%04x", uint16(owner), index)
}
