package auth

import (
	"errors"
	"strings"
	"testing"
)

func cheapHasher() *Hasher {
	return NewHasher(Params{MemoryKB: 64, Iterations: 1, Parallelism: 1})
}

func TestHashAndVerify(t *testing.T) {
	h := cheapHasher()
	encoded, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=64,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	if strings.Contains(encoded, "pw1") {
		t.Fatal("hash contains plaintext")
	}
	ok, err := h.Verify("pw1", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}
	ok, err = h.Verify("pw2", encoded)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v", ok, err)
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := cheapHasher()
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestVerifyAcceptsOtherCostParams(t *testing.T) {
	old := NewHasher(Params{MemoryKB: 32, Iterations: 2, Parallelism: 1})
	encoded, err := old.Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	ok, err := cheapHasher().Verify("pw", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify() = %v, %v", ok, err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	h := cheapHasher()
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=1,p=1$!!$aGFzaA",
	} {
		if _, err := h.Verify("pw", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("Verify(%q) error = %v, want ErrMalformedHash", encoded, err)
		}
	}
}
