package audio

import (
	"encoding/binary"
	"math"
)

// Decode converts little-endian s16 bytes into samples. len(dst) must be
// len(src)/2.
func Decode(dst []int16, src []byte) {
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2 : i*2+2]))
	}
}

// ApplyGain scales samples in place, clipping at the int16 range.
func ApplyGain(samples []int16, gain float64) {
	if gain == 1 {
		return
	}
	if gain <= 0 {
		clear(samples)
		return
	}
	for i, s := range samples {
		v := math.Round(float64(s) * gain)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		samples[i] = int16(v)
	}
}
