package ripple

// HeightRange is the largest height magnitude representable in an uploaded
// height texture; values beyond it saturate.
const HeightRange = 4.0

const fixedMax = 65535

// EncodeHeight packs h into 16-bit fixed point split across two bytes.
func EncodeHeight(h float32) (hi, lo uint8) {
	t := (h/HeightRange)*0.5 + 0.5
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	v := uint32(t*fixedMax + 0.5)
	return uint8(v >> 8), uint8(v)
}

// DecodeHeight reverses EncodeHeight. The composite program decodes the same way.
func DecodeHeight(hi, lo uint8) float32 {
	v := float32(uint32(hi)<<8|uint32(lo)) / fixedMax
	return (v*2 - 1) * HeightRange
}

// EncodeHeights writes field as opaque RGBA pixels into dst (len 4*size*size),
// R=high byte, G=low byte. Pixel rows run top-down, so the bottom simulation row
// lands in the last pixel row.
func EncodeHeights(dst []byte, field []float32, size int) {
	for y := 0; y < size; y++ {
		src := field[y*size : (y+1)*size]
		row := dst[(size-1-y)*size*4 : (size-y)*size*4]
		for x, h := range src {
			hi, lo := EncodeHeight(h)
			p := row[x*4 : x*4+4]
			p[0] = hi
			p[1] = lo
			p[2] = 0
			p[3] = 0xff
		}
	}
}
