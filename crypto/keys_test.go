package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, AddressLength)
	for _, prefix := range []AddressPrefix{AccountPrefix, InstrumentPrefix} {
		addr := NewAddress(prefix, raw)
		decoded, err := DecodeAddress(addr.String())
		if err != nil {
			t.Fatalf("decode %s: %v", addr, err)
		}
		if !decoded.Equal(addr) || decoded.Prefix() != prefix {
			t.Fatalf("round trip mismatch: %s vs %s", decoded, addr)
		}
	}
}

func TestAddressZeroValue(t *testing.T) {
	var zero Address
	if !zero.IsZero() || zero.String() != "" {
		t.Fatalf("unexpected zero address %q", zero.String())
	}
	fromEmpty, err := AddressFromBytes(AccountPrefix, nil)
	if err != nil || !fromEmpty.IsZero() {
		t.Fatalf("empty bytes must decode to the zero address: %v", err)
	}
	if _, err := AddressFromBytes(AccountPrefix, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected short address rejection")
	}
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatalf("expected decode failure")
	}
}

func TestEqualIgnoresPrefix(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, AddressLength)
	if !NewAddress(AccountPrefix, raw).Equal(NewAddress(InstrumentPrefix, raw)) {
		t.Fatalf("equal must compare bytes only")
	}
}

func TestKeyDerivation(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored.PubKey().Address().Equal(key.PubKey().Address()) {
		t.Fatalf("restored key derives a different address")
	}
	if key.PubKey().AddressWithPrefix(InstrumentPrefix).Prefix() != InstrumentPrefix {
		t.Fatalf("prefix not applied")
	}
}

func TestFeedAddress(t *testing.T) {
	var feed FeedAddress
	for i := range feed {
		feed[i] = byte(i)
	}
	parsed, err := ParseFeedAddress(feed.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != feed {
		t.Fatalf("round trip mismatch")
	}
	if _, err := ParseFeedAddress(""); err == nil {
		t.Fatalf("expected empty rejection")
	}
	if _, err := ParseFeedAddress("3yZe7d"); err == nil {
		t.Fatalf("expected short address rejection")
	}
	if _, err := FeedAddressFromBytes(make([]byte, 31)); err == nil {
		t.Fatalf("expected length rejection")
	}
	if !(FeedAddress{}).IsZero() || feed.IsZero() {
		t.Fatalf("unexpected IsZero results")
	}
}

func TestDecodeAddressWithPrefix(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, AddressLength)
	account := NewAddress(AccountPrefix, raw).String()
	instrument := NewAddress(InstrumentPrefix, raw).String()

	if _, err := DecodeAddressWithPrefix(account, AccountPrefix); err != nil {
		t.Fatalf("account: %v", err)
	}
	if _, err := DecodeAddressWithPrefix(instrument, AccountPrefix); err == nil {
		t.Fatalf("instrument address accepted as account")
	}
	if _, err := DecodeAddressWithPrefix(account, InstrumentPrefix); err == nil {
		t.Fatalf("account address accepted as instrument")
	}
	if _, err := DecodeAddressWithPrefix("garbage", InstrumentPrefix); err == nil {
		t.Fatalf("expected decode error")
	}
}
