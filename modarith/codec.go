package modarith

import (
	"fmt"
	"math/big"
)

// DecodeLE interprets buf as a little-endian unsigned integer.
func DecodeLE(buf []byte) *big.Int {
	be := make([]byte, len(buf))
	for i, b := range buf {
		be[len(buf)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

// EncodeLE writes x as a little-endian unsigned integer of exactly width
// bytes. Bits above 8*width are dropped; for 2^n+c with n a multiple of 8
// the single residue 2^n does not fit and is written as its low bits.
func EncodeLE(x *big.Int, width int) []byte {
	out := make([]byte, width)
	if x.BitLen() > 8*width {
		x = new(big.Int).And(x, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(8*width)), big.NewInt(1)))
	}
	x.FillBytes(out)
	for i, j := 0, width-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

var mask64 = new(big.Int).SetUint64(^uint64(0))

// Res64 formats the low 64 bits of x as 16 upper-case hex digits.
func Res64(x *big.Int) string {
	var low big.Int
	low.And(x, mask64)
	return fmt.Sprintf("%016X", low.Uint64())
}
