package duplicates

import (
	"errors"
	"testing"
)

func TestNewHasher(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "blake3"},
		{"blake3", "blake3"},
		{"BLAKE3", "blake3"},
		{"xxhash", "xxhash"},
	}
	for _, tt := range tests {
		h, err := NewHasher(tt.name)
		if err != nil {
			t.Fatalf("NewHasher(%q) error: %v", tt.name, err)
		}
		if h.Algorithm() != tt.want {
			t.Errorf("NewHasher(%q).Algorithm() = %q, want %q", tt.name, h.Algorithm(), tt.want)
		}
	}

	if _, err := NewHasher("md5"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewHasher(md5) error = %v, want ErrInvalidConfig", err)
	}
}

func TestHasherSum(t *testing.T) {
	for _, algo := range []string{"blake3", "xxhash"} {
		t.Run(algo, func(t *testing.T) {
			h, err := NewHasher(algo)
			if err != nil {
				t.Fatal(err)
			}
			if h.Sum("x = 1") != h.Sum("x = 1") {
				t.Error("equal text should give equal fingerprints")
			}
			if h.Sum("x = 1") == h.Sum("x = 2") {
				t.Error("different text should give different fingerprints")
			}
			if h.Sum("") == (Fingerprint{}) {
				t.Error("empty text should still hash to a non-zero fingerprint")
			}
		})
	}
}

func TestXXHashFingerprintLayout(t *testing.T) {
	h, _ := NewHasher("xxhash")
	fp := h.Sum("return nil")
	for i := 8; i < 16; i++ {
		if fp[i] != 0 {
			t.Fatalf("byte %d = %x, want 0 for a 64-bit fingerprint", i, fp[i])
		}
	}
	if len(fp.String()) != 32 {
		t.Errorf("String() = %q, want 32 hex chars", fp.String())
	}
}
