// Package bvconst implements fixed-width unsigned bit-vector arithmetic.
//
// A BVConst pairs a width n (in bits, n >= 1) with a value that is always
// kept reduced modulo 2^n: every constructor and every operation guarantees
// that bits at or above position n are zero. Values with n <= 64 are stored
// as a plain uint64 for speed; wider values fall back to math/big. Signed
// operations reinterpret the top bit as a sign bit; they never change the
// underlying representation, only how it is compared or divided.
package bvconst

import (
	"fmt"
	"math/big"
	"strings"
)

// MaxWidth bounds the bit-width this package is required to support.
const MaxWidth = 4096

const fastWidth = 64

// BVConst is an immutable fixed-width unsigned integer value.
type BVConst struct {
	width uint32
	small uint64   // valid iff width <= fastWidth
	big   *big.Int // valid iff width > fastWidth; always non-negative, < 2^width
}

func checkWidth(width uint32) {
	if width == 0 || width > MaxWidth {
		panic(fmt.Sprintf("bvconst: illegal width %d", width))
	}
}

func mask(width uint32) *big.Int {
	m := big.NewInt(1)
	m.Lsh(m, uint(width))
	m.Sub(m, big.NewInt(1))
	return m
}

func reduceBig(v *big.Int, width uint32) *big.Int {
	out := new(big.Int).And(v, mask(width))
	if out.Sign() < 0 {
		out.Add(out, mask(width))
		out.Add(out, big.NewInt(1))
	}
	return out
}

// FromU64 builds a width-n value from a u64, truncating modulo 2^n.
func FromU64(value uint64, width uint32) BVConst {
	checkWidth(width)
	if width <= fastWidth {
		if width < fastWidth {
			value &= (uint64(1) << width) - 1
		}
		return BVConst{width: width, small: value}
	}
	return BVConst{width: width, big: reduceBig(new(big.Int).SetUint64(value), width)}
}

// FromI64 builds a width-n value from a signed integer, wrapping modulo 2^n.
func FromI64(value int64, width uint32) BVConst {
	checkWidth(width)
	if width <= fastWidth {
		v := uint64(value)
		if width < fastWidth {
			v &= (uint64(1) << width) - 1
		}
		return BVConst{width: width, small: v}
	}
	return BVConst{width: width, big: reduceBig(big.NewInt(value), width)}
}

// FromString parses a decimal or 0x-prefixed hexadecimal literal into a
// width-n value. This mirrors the original engine's BVConst(string, width)
// constructor, which auto-detects the base from a "0x"/"0X" prefix.
func FromString(s string, width uint32) (BVConst, error) {
	checkWidth(width)
	s = strings.TrimSpace(s)
	base := 10
	trimmed := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		trimmed = s[2:]
	}
	v, ok := new(big.Int).SetString(trimmed, base)
	if !ok {
		return BVConst{}, fmt.Errorf("bvconst: cannot parse %q as base-%d integer", s, base)
	}
	return FromBig(v, width), nil
}

// FromBig builds a width-n value from an arbitrary-precision integer,
// truncating modulo 2^n (two's-complement if negative).
func FromBig(v *big.Int, width uint32) BVConst {
	checkWidth(width)
	r := reduceBig(v, width)
	if width <= fastWidth {
		return BVConst{width: width, small: r.Uint64()}
	}
	return BVConst{width: width, big: r}
}

// Endianness selects byte order for byte-slice conversions.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

// FromBytes reconstructs a value from a byte slice of the given byte width
// and endianness. byteWidth*8 becomes the resulting BVConst's bit-width.
func FromBytes(b []byte, byteWidth uint32, end Endianness) BVConst {
	if uint32(len(b)) != byteWidth {
		panic(fmt.Sprintf("bvconst: byte slice length %d does not match byte width %d", len(b), byteWidth))
	}
	width := byteWidth * 8
	checkWidth(width)
	buf := make([]byte, len(b))
	copy(buf, b)
	if end == LittleEndian {
		// big.Int.SetBytes wants big-endian.
		for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
	v := new(big.Int).SetBytes(buf)
	return FromBig(v, width)
}

// Width returns the bit-width of this value.
func (b BVConst) Width() uint32 { return b.width }

func (b BVConst) isFast() bool { return b.width <= fastWidth }

func (b BVConst) asBig() *big.Int {
	if b.isFast() {
		return new(big.Int).SetUint64(b.small)
	}
	return new(big.Int).Set(b.big)
}

func fromBigResult(v *big.Int, width uint32) BVConst {
	return FromBig(v, width)
}

func checkSameWidth(a, b BVConst) {
	if a.width != b.width {
		panic(fmt.Sprintf("bvconst: width mismatch: %d != %d", a.width, b.width))
	}
}

// Add returns (a+b) mod 2^n.
func (a BVConst) Add(b BVConst) BVConst {
	checkSameWidth(a, b)
	if a.isFast() {
		return FromU64(a.small+b.small, a.width)
	}
	return fromBigResult(new(big.Int).Add(a.big, b.big), a.width)
}

// Sub returns (a-b) mod 2^n.
func (a BVConst) Sub(b BVConst) BVConst {
	checkSameWidth(a, b)
	if a.isFast() {
		return FromU64(a.small-b.small, a.width)
	}
	return fromBigResult(new(big.Int).Sub(a.big, b.big), a.width)
}

// Mul returns (a*b) mod 2^n.
func (a BVConst) Mul(b BVConst) BVConst {
	checkSameWidth(a, b)
	if a.isFast() {
		return FromU64(a.small*b.small, a.width)
	}
	return fromBigResult(new(big.Int).Mul(a.big, b.big), a.width)
}

// UDiv returns the unsigned quotient a/b. Division by zero returns the
// all-ones value of the operand width, matching the "defined-zero divisor"
// option the spec allows in place of a hardware trap.
func (a BVConst) UDiv(b BVConst) BVConst {
	checkSameWidth(a, b)
	if b.IsZero() {
		return Ones(a.width)
	}
	if a.isFast() {
		return FromU64(a.small/b.small, a.width)
	}
	return fromBigResult(new(big.Int).Div(a.big, b.big), a.width)
}

// URem returns the unsigned remainder a%b. Division by zero returns a.
func (a BVConst) URem(b BVConst) BVConst {
	checkSameWidth(a, b)
	if b.IsZero() {
		return a
	}
	if a.isFast() {
		return FromU64(a.small%b.small, a.width)
	}
	return fromBigResult(new(big.Int).Mod(a.big, b.big), a.width)
}

// SDiv returns the signed quotient a/b (truncating toward zero).
// Division by zero follows SMT-LIB2's bvsdiv: a non-negative dividend
// yields all-ones, a negative dividend yields 1.
func (a BVConst) SDiv(b BVConst) BVConst {
	checkSameWidth(a, b)
	if b.IsZero() {
		if a.IsNegative() {
			return FromU64(1, a.width)
		}
		return Ones(a.width)
	}
	sa, sb := a.signedBig(), b.signedBig()
	q := new(big.Int).Quo(sa, sb)
	return fromBigResult(q, a.width)
}

// SRem returns the signed remainder of a/b (sign follows the dividend).
func (a BVConst) SRem(b BVConst) BVConst {
	checkSameWidth(a, b)
	if b.IsZero() {
		return a
	}
	sa, sb := a.signedBig(), b.signedBig()
	r := new(big.Int).Rem(sa, sb)
	return fromBigResult(r, a.width)
}

// Neg returns the two's-complement negation of a.
func (a BVConst) Neg() BVConst {
	zero := FromU64(0, a.width)
	return zero.Sub(a)
}

// And returns the bitwise AND of a and b.
func (a BVConst) And(b BVConst) BVConst {
	checkSameWidth(a, b)
	if a.isFast() {
		return BVConst{width: a.width, small: a.small & b.small}
	}
	return fromBigResult(new(big.Int).And(a.big, b.big), a.width)
}

// Or returns the bitwise OR of a and b.
func (a BVConst) Or(b BVConst) BVConst {
	checkSameWidth(a, b)
	if a.isFast() {
		return BVConst{width: a.width, small: a.small | b.small}
	}
	return fromBigResult(new(big.Int).Or(a.big, b.big), a.width)
}

// Xor returns the bitwise XOR of a and b.
func (a BVConst) Xor(b BVConst) BVConst {
	checkSameWidth(a, b)
	if a.isFast() {
		return BVConst{width: a.width, small: a.small ^ b.small}
	}
	return fromBigResult(new(big.Int).Xor(a.big, b.big), a.width)
}

// Not returns the bitwise complement of a.
func (a BVConst) Not() BVConst {
	return a.Xor(Ones(a.width))
}

// Shl returns a shifted left by k bits; k >= width yields zero.
func (a BVConst) Shl(k uint32) BVConst {
	if k >= a.width {
		return FromU64(0, a.width)
	}
	return fromBigResult(new(big.Int).Lsh(a.asBig(), uint(k)), a.width)
}

// LShr returns a shifted logically right by k bits; k >= width yields zero.
func (a BVConst) LShr(k uint32) BVConst {
	if k >= a.width {
		return FromU64(0, a.width)
	}
	return fromBigResult(new(big.Int).Rsh(a.asBig(), uint(k)), a.width)
}

// AShr returns a shifted arithmetically right by k bits, preserving sign;
// k >= width yields all-zero (positive) or all-ones (negative).
func (a BVConst) AShr(k uint32) BVConst {
	if a.IsNegative() {
		if k >= a.width {
			return Ones(a.width)
		}
		sa := a.signedBig()
		sa.Rsh(sa, uint(k))
		return fromBigResult(sa, a.width)
	}
	return a.LShr(k)
}

// Zext widens a to m bits (m >= a.Width()) by filling with zero bits.
func (a BVConst) Zext(m uint32) BVConst {
	if m < a.width {
		panic(fmt.Sprintf("bvconst: zext target width %d smaller than source %d", m, a.width))
	}
	if a.isFast() && m <= fastWidth {
		return BVConst{width: m, small: a.small}
	}
	return fromBigResult(a.asBig(), m)
}

// Sext widens a to m bits (m >= a.Width()), replicating the sign bit.
func (a BVConst) Sext(m uint32) BVConst {
	if m < a.width {
		panic(fmt.Sprintf("bvconst: sext target width %d smaller than source %d", m, a.width))
	}
	return fromBigResult(a.signedBig(), m)
}

// Extract returns bits [hi:lo] (inclusive, 0-indexed from the LSB) as a
// value of width hi-lo+1.
func (a BVConst) Extract(hi, lo uint32) BVConst {
	if lo > hi || hi >= a.width {
		panic(fmt.Sprintf("bvconst: extract(%d,%d) out of range for width %d", hi, lo, a.width))
	}
	shifted := new(big.Int).Rsh(a.asBig(), uint(lo))
	return fromBigResult(shifted, hi-lo+1)
}

// Concat returns {a, b} concatenated with a in the high bits, yielding a
// value of width a.Width()+b.Width().
func (a BVConst) Concat(b BVConst) BVConst {
	hi := new(big.Int).Lsh(a.asBig(), uint(b.width))
	out := new(big.Int).Or(hi, b.asBig())
	return fromBigResult(out, a.width+b.width)
}

// Eq reports whether a and b have equal values (widths must match).
func (a BVConst) Eq(b BVConst) bool {
	checkSameWidth(a, b)
	if a.isFast() {
		return a.small == b.small
	}
	return a.big.Cmp(b.big) == 0
}

// Ult reports whether a < b, unsigned.
func (a BVConst) Ult(b BVConst) bool {
	checkSameWidth(a, b)
	if a.isFast() {
		return a.small < b.small
	}
	return a.big.Cmp(b.big) < 0
}

// Ule reports whether a <= b, unsigned.
func (a BVConst) Ule(b BVConst) bool { return a.Ult(b) || a.Eq(b) }

// Ugt reports whether a > b, unsigned.
func (a BVConst) Ugt(b BVConst) bool { return b.Ult(a) }

// Uge reports whether a >= b, unsigned.
func (a BVConst) Uge(b BVConst) bool { return b.Ult(a) || a.Eq(b) }

// Slt reports whether a < b, signed.
func (a BVConst) Slt(b BVConst) bool {
	checkSameWidth(a, b)
	return a.signedBig().Cmp(b.signedBig()) < 0
}

// Sle reports whether a <= b, signed.
func (a BVConst) Sle(b BVConst) bool { return a.Slt(b) || a.Eq(b) }

// Sgt reports whether a > b, signed.
func (a BVConst) Sgt(b BVConst) bool { return b.Slt(a) }

// Sge reports whether a >= b, signed.
func (a BVConst) Sge(b BVConst) bool { return b.Slt(a) || a.Eq(b) }

// IsZero reports whether a is zero.
func (a BVConst) IsZero() bool {
	if a.isFast() {
		return a.small == 0
	}
	return a.big.Sign() == 0
}

// IsNegative reports whether a's sign bit (bit width-1) is set.
func (a BVConst) IsNegative() bool {
	return !a.Extract(a.width-1, a.width-1).IsZero()
}

// HasAllBits reports whether every bit set in mask is also set in a.
func (a BVConst) HasAllBits(m BVConst) bool {
	checkSameWidth(a, m)
	return a.And(m).Eq(m)
}

// signedBig returns a's value reinterpreted as two's-complement signed.
func (a BVConst) signedBig() *big.Int {
	v := a.asBig()
	if a.IsNegative() {
		v = new(big.Int).Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(a.width)))
	}
	return v
}

// AsU64 returns a's value as a uint64; it fails if width > 64.
func (a BVConst) AsU64() (uint64, error) {
	if a.width > 64 {
		return 0, fmt.Errorf("bvconst: width %d exceeds 64, cannot view as u64", a.width)
	}
	if a.isFast() {
		return a.small, nil
	}
	return a.big.Uint64(), nil
}

// AsI64 returns a's value sign-extended to int64; it fails if width > 64.
func (a BVConst) AsI64() (int64, error) {
	if a.width > 64 {
		return 0, fmt.Errorf("bvconst: width %d exceeds 64, cannot view as i64", a.width)
	}
	return a.signedBig().Int64(), nil
}

// AsBytes returns a's raw bytes, ceil(width/8) long, in the given
// endianness. Width need not be a multiple of 8; the top byte is
// zero-padded on its high bits.
func (a BVConst) AsBytes(end Endianness) []byte {
	nbytes := (int(a.width) + 7) / 8
	out := make([]byte, nbytes)
	v := a.asBig()
	raw := v.Bytes() // big-endian, no leading zero padding
	copy(out[nbytes-len(raw):], raw)
	if end == LittleEndian {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// AsBigInt returns a's value as an arbitrary-precision non-negative
// integer, regardless of width. The returned value is a fresh copy and
// safe for callers to mutate.
func (a BVConst) AsBigInt() *big.Int { return a.asBig() }

// String renders the value in decimal.
func (a BVConst) String() string {
	return a.asBig().String()
}

// HexString renders the value in lowercase hexadecimal with a 0x prefix.
func (a BVConst) HexString() string {
	return "0x" + a.asBig().Text(16)
}

// Ones returns the all-ones value of the given width (the width-n "-1").
func Ones(width uint32) BVConst {
	checkWidth(width)
	if width <= fastWidth {
		if width == fastWidth {
			return BVConst{width: width, small: ^uint64(0)}
		}
		return BVConst{width: width, small: (uint64(1) << width) - 1}
	}
	return BVConst{width: width, big: mask(width)}
}

// Zero returns the zero value of the given width.
func Zero(width uint32) BVConst { return FromU64(0, width) }
