package audio

import (
	"encoding/binary"
	"testing"
)

func TestMuLaw_RoundTripSpotValues(t *testing.T) {
	cases := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 32000, -32000}
	for _, want := range cases {
		got := DecodeMuLaw(EncodeMuLaw(want))
		// mu-law is lossy; allow the quantization step for the magnitude.
		diff := int32(got) - int32(want)
		if diff < 0 {
			diff = -diff
		}
		limit := int32(want) / 16
		if limit < 0 {
			limit = -limit
		}
		if limit < 32 {
			limit = 32
		}
		if diff > limit {
			t.Fatalf("sample %d round-tripped to %d (diff %d > %d)", want, got, diff, limit)
		}
	}
}

func TestMuLaw_SilenceDecodesQuiet(t *testing.T) {
	// 0xFF is the mu-law encoding of digital silence.
	if s := DecodeMuLaw(0xFF); s < -8 || s > 8 {
		t.Fatalf("expected near-zero sample for 0xFF, got %d", s)
	}
}

func TestDecodeMuLawBuf_Length(t *testing.T) {
	out := DecodeMuLawBuf([]byte{0xFF, 0x7F, 0x00})
	if len(out) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(out))
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	samples := []int16{1, -1, 2, -2}
	b := EncodeWAV(samples, 8000, 2)
	if len(b) != 44+len(samples)*2 {
		t.Fatalf("unexpected wav size %d", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF header")
	}
	if sr := binary.LittleEndian.Uint32(b[24:28]); sr != 8000 {
		t.Fatalf("expected sample rate 8000, got %d", sr)
	}
	if ch := binary.LittleEndian.Uint16(b[22:24]); ch != 2 {
		t.Fatalf("expected 2 channels, got %d", ch)
	}
	if dl := binary.LittleEndian.Uint32(b[40:44]); dl != uint32(len(samples)*2) {
		t.Fatalf("expected data length %d, got %d", len(samples)*2, dl)
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Fatalf("expected zero RMS for empty frame")
	}
	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 3000
	}
	if RMS(loud) < 2900 {
		t.Fatalf("expected high RMS for loud frame")
	}
}
