package audio

// G.711 mu-law codec. Twilio Media Streams carry 8kHz mono mu-law; the
// recorder and the voice-energy detector need linear PCM.

const muLawBias = 0x84

// DecodeMuLaw converts one mu-law byte to a 16-bit linear sample.
func DecodeMuLaw(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	sample := int16((int32(mantissa)<<3 + muLawBias) << exponent)
	sample -= muLawBias
	if sign != 0 {
		return -sample
	}
	return sample
}

// EncodeMuLaw converts a 16-bit linear sample to one mu-law byte.
func EncodeMuLaw(s int16) byte {
	sign := byte(0)
	v := int32(s)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > 32635 {
		v = 32635
	}
	v += muLawBias
	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

// DecodeMuLawBuf decodes a mu-law buffer into int16 samples.
func DecodeMuLawBuf(in []byte) []int16 {
	out := make([]int16, len(in))
	for i, b := range in {
		out[i] = DecodeMuLaw(b)
	}
	return out
}
