package oracle

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"fxoracle/crypto"
)

var (
	registryKey          = []byte("oracle/registry")
	configPrefix         = []byte("oracle/config/")
	quotePrefix          = []byte("oracle/quote/")
	quoteConsumedPrefix  = []byte("oracle/quote-consumed/")
	quoteRefDomainPrefix = []byte("oracle/quote-ref")
)

func configKey(instrument crypto.Address) []byte {
	raw := instrument.Bytes()
	buf := make([]byte, len(configPrefix)+len(raw))
	copy(buf, configPrefix)
	copy(buf[len(configPrefix):], raw)
	return buf
}

func quoteKey(ref QuoteRef) []byte {
	buf := make([]byte, len(quotePrefix)+len(ref))
	copy(buf, quotePrefix)
	copy(buf[len(quotePrefix):], ref[:])
	return buf
}

func quoteConsumedKey(ref QuoteRef) []byte {
	buf := make([]byte, len(quoteConsumedPrefix)+len(ref))
	copy(buf, quoteConsumedPrefix)
	copy(buf[len(quoteConsumedPrefix):], ref[:])
	return buf
}

// DeriveQuoteRef returns the deterministic reference of the quote issued to
// requester for instrument under nonce.
func DeriveQuoteRef(instrument, requester crypto.Address, nonce uint64) QuoteRef {
	var nonceLE [8]byte
	binary.LittleEndian.PutUint64(nonceLE[:], nonce)
	hash := ethcrypto.Keccak256Hash(quoteRefDomainPrefix, instrument.Bytes(), requester.Bytes(), nonceLE[:])
	return QuoteRef(hash)
}
