package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		bytes int // expected encoded length
	}{
		{"zero", 0, 1},
		{"small", 15, 1},
		{"max_1byte", 252, 1},
		{"min_3byte", 253, 3},
		{"max_3byte", 65535, 3},
		{"min_5byte", 65536, 5},
		{"max_5byte", math.MaxUint32, 5},
		{"min_9byte", math.MaxUint32 + 1, 9},
		{"max_uint64", math.MaxUint64, 9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, MaxVarintLen)
			n := PutVarint(buf, tc.value)

			if n != tc.bytes {
				t.Errorf("PutVarint(%d) = %d bytes, want %d", tc.value, n, tc.bytes)
			}
			if got := VarintLen(tc.value); got != n {
				t.Errorf("VarintLen(%d) = %d, want %d", tc.value, got, n)
			}
			if got := VarintLenFromMarker(buf[0]); got != n {
				t.Errorf("VarintLenFromMarker(%#x) = %d, want %d", buf[0], got, n)
			}

			decoded, read, err := ReadVarint(buf[:n])
			if err != nil {
				t.Fatalf("ReadVarint error: %v", err)
			}
			if read != n {
				t.Errorf("ReadVarint read %d bytes, want %d", read, n)
			}
			if decoded != tc.value {
				t.Errorf("ReadVarint = %d, want %d", decoded, tc.value)
			}
		})
	}
}

func TestVarintKnownEncodings(t *testing.T) {
	tests := []struct {
		value uint64
		want  []byte
	}{
		{0, []byte{0}},
		{252, []byte{252}},
		{253, []byte{253, 0, 253}},
		{65535, []byte{253, 0xFF, 0xFF}},
		{65536, []byte{254, 0, 1, 0, 0}},
		{math.MaxUint32 + 1, []byte{255, 0, 0, 0, 1, 0, 0, 0, 0}},
	}

	for _, tc := range tests {
		got := AppendVarint(nil, tc.value)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("AppendVarint(%d) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestReadVarintTruncated(t *testing.T) {
	for _, v := range []uint64{253, 65536, math.MaxUint64} {
		enc := AppendVarint(nil, v)
		for i := 0; i < len(enc); i++ {
			_, _, err := ReadVarint(enc[:i])
			if !errors.Is(err, ErrUnexpectedEndOfBytes) {
				t.Errorf("ReadVarint(%v) error = %v, want ErrUnexpectedEndOfBytes", enc[:i], err)
			}
		}
	}
}

func TestReadVarintNonCanonical(t *testing.T) {
	// Over-long encodings are accepted on read.
	v, n, err := ReadVarint([]byte{253, 0, 7})
	if err != nil {
		t.Fatalf("ReadVarint error: %v", err)
	}
	if v != 7 || n != 3 {
		t.Errorf("ReadVarint = (%d, %d), want (7, 3)", v, n)
	}
}

func TestAppendVarintAppends(t *testing.T) {
	buf := []byte{0xAA}
	buf = AppendVarint(buf, 300)
	want := []byte{0xAA, 253, 0x01, 0x2C}
	if !bytes.Equal(buf, want) {
		t.Errorf("AppendVarint = %v, want %v", buf, want)
	}
}
