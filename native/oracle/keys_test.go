package oracle

import (
	"strings"
	"testing"
)

func TestDeriveQuoteRef(t *testing.T) {
	a := DeriveQuoteRef(eurInstrument, requesterA, 1)
	if a != DeriveQuoteRef(eurInstrument, requesterA, 1) {
		t.Fatalf("quote ref must be deterministic")
	}
	for _, other := range []QuoteRef{
		DeriveQuoteRef(eurInstrument, requesterA, 2),
		DeriveQuoteRef(eurInstrument, requesterB, 1),
		DeriveQuoteRef(testInstrument(11), requesterA, 1),
	} {
		if other == a {
			t.Fatalf("distinct inputs produced the same ref %s", a)
		}
	}
}

func TestParseQuoteRef(t *testing.T) {
	ref := DeriveQuoteRef(eurInstrument, requesterA, 1)
	parsed, err := ParseQuoteRef("0x" + strings.ToUpper(ref.String()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != ref {
		t.Fatalf("unexpected ref %s", parsed)
	}
	if _, err := ParseQuoteRef("0x1234"); err == nil {
		t.Fatalf("expected short ref rejection")
	}
	if _, err := ParseQuoteRef("zz"); err == nil {
		t.Fatalf("expected hex rejection")
	}
}

func TestQuoteKeysAreDisjoint(t *testing.T) {
	ref := DeriveQuoteRef(eurInstrument, requesterA, 1)
	if string(quoteKey(ref)) == string(quoteConsumedKey(ref)) {
		t.Fatalf("live and consumed keys must differ")
	}
	if !strings.HasPrefix(string(configKey(eurInstrument)), "oracle/config/") {
		t.Fatalf("unexpected config key %q", configKey(eurInstrument))
	}
}
