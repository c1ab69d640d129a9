package api

import (
	"math/big"
	"strings"
)

var (
	weiPerEth  = big.NewInt(1_000_000_000_000_000_000)
	weiPerGwei = big.NewInt(1_000_000_000)
)

// weiToEth formats a wei amount as a decimal ether string with up to
// six fractional digits
func weiToEth(wei *big.Int) string {
	return trimZeros(new(big.Rat).SetFrac(wei, weiPerEth).FloatString(6))
}

// weiToGwei formats a wei amount as a decimal gwei string with up to
// two fractional digits
func weiToGwei(wei *big.Int) string {
	return trimZeros(new(big.Rat).SetFrac(wei, weiPerGwei).FloatString(2))
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
