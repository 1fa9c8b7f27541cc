package events

import (
	"strconv"
	"strings"
)

func normalizeSymbol(symbol string) string {
	return strings.TrimSpace(symbol)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
