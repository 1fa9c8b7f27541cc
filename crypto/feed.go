package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// FeedAddressLength is the size of an external price feed account address.
const FeedAddressLength = 32

// FeedAddress identifies the external account holding a price feed snapshot.
type FeedAddress [FeedAddressLength]byte

// String renders the address in base58.
func (f FeedAddress) String() string {
	return base58.Encode(f[:])
}

// IsZero reports whether the address is unset.
func (f FeedAddress) IsZero() bool {
	return f == FeedAddress{}
}

// ParseFeedAddress decodes a base58 feed address.
func ParseFeedAddress(raw string) (FeedAddress, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return FeedAddress{}, fmt.Errorf("feed address required")
	}
	decoded := base58.Decode(trimmed)
	if len(decoded) != FeedAddressLength {
		return FeedAddress{}, fmt.Errorf("feed address must decode to %d bytes, got %d", FeedAddressLength, len(decoded))
	}
	var out FeedAddress
	copy(out[:], decoded)
	return out, nil
}

// FeedAddressFromBytes copies a raw 32-byte address.
func FeedAddressFromBytes(b []byte) (FeedAddress, error) {
	if len(b) != FeedAddressLength {
		return FeedAddress{}, fmt.Errorf("feed address must be %d bytes, got %d", FeedAddressLength, len(b))
	}
	var out FeedAddress
	copy(out[:], b)
	return out, nil
}
