package crypto

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherProducesSaltedDigests(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct digests for repeated hashing")
	}
	if !h.Verify(first, "pw1") || !h.Verify(second, "pw1") {
		t.Fatalf("expected both digests to verify")
	}
}

func TestHasherVerifyMismatch(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	digest, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h.Verify(digest, "battery staple") {
		t.Fatalf("expected mismatch to return false")
	}
	if h.Verify([]byte("not-a-bcrypt-hash"), "correct horse") {
		t.Fatalf("expected malformed digest to return false")
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	if got := NewHasher(1).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewHasher(bcrypt.MaxCost + 1).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
}

func TestComparePasswordReportsMismatch(t *testing.T) {
	hash, err := NewHasher(bcrypt.MinCost).Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	err = ComparePassword(hash, "other")
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}
