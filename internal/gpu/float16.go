package gpu

import "math"

// packHalf converts heights into IEEE 754-2008 binary16 words for half-precision
// device buffers. dst must be at least len(src).
func packHalf(dst []uint16, src []float32) {
	for i, v := range src {
		dst[i] = halfBits(v)
	}
}

// unpackHalf expands binary16 words read back from the device. dst must be at
// least len(src).
func unpackHalf(dst []float32, src []uint16) {
	for i, v := range src {
		dst[i] = halfValue(v)
	}
}

// halfBits rounds f to the nearest binary16 value.
func halfBits(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int((bits >> 23) & 0xff)
	mant := bits & 0x7fffff

	switch exp {
	case 0xff:
		if mant == 0 {
			return sign | 0x7c00
		}
		// keep NaN a NaN even when the payload shifts out
		mant >>= 13
		if mant == 0 {
			mant = 1
		}
		return sign | 0x7c00 | uint16(mant)
	case 0:
		if mant == 0 {
			return sign
		}
	}

	e := exp - 127 + 15
	if e >= 0x1f {
		return sign | 0x7c00
	}
	if e <= 0 {
		// subnormal half
		if e < -10 {
			return sign
		}
		m := (mant | 0x800000) >> uint(1-e)
		m += 0x1000
		return sign | uint16(m>>13)
	}

	m := mant + 0x1000
	if m&0x800000 != 0 {
		m = 0
		e++
		if e >= 0x1f {
			return sign | 0x7c00
		}
	}
	return sign | uint16(e<<10) | uint16(m>>13)
}

// halfValue widens a binary16 word to float32.
func halfValue(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := int((h >> 10) & 0x1f)
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		e := -14
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | uint32((e+127)<<23) | (mant << 13))
	case 0x1f:
		bits := sign | 0x7f800000 | (mant << 13)
		if mant != 0 {
			bits |= 1
		}
		return math.Float32frombits(bits)
	default:
		return math.Float32frombits(sign | uint32((exp-15+127)<<23) | (mant << 13))
	}
}
