package signer

import (
	"strings"
	"testing"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	id, err := FromHex(strings.Repeat("11", 32))
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}

	digest := Keccak([]byte("settlement state"))
	sig := id.Sign(digest)
	if len(sig) != 65 {
		t.Fatalf("signature length %d", len(sig))
	}
	if !Verify(id.Address(), digest, sig) {
		t.Fatal("signature did not verify against the signer address")
	}
}

func TestVerifyRejectsWrongAddress(t *testing.T) {
	id, err := FromHex(strings.Repeat("11", 32))
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	other, err := FromHex(strings.Repeat("22", 32))
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}

	digest := Keccak([]byte("settlement state"))
	if Verify(other.Address(), digest, id.Sign(digest)) {
		t.Fatal("signature verified against the wrong address")
	}
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	id, err := FromHex(strings.Repeat("11", 32))
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}

	sig := id.Sign(Keccak([]byte("original")))
	if Verify(id.Address(), Keccak([]byte("tampered")), sig) {
		t.Fatal("signature verified over a different digest")
	}
}

func TestFromHexAcceptsPrefix(t *testing.T) {
	plain, err := FromHex(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	prefixed, err := FromHex("0x" + strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("FromHex with prefix: %v", err)
	}
	if plain.Address() != prefixed.Address() {
		t.Fatalf("addresses differ: %s vs %s", plain.Address(), prefixed.Address())
	}
}

func TestFromHexRejectsBadKeys(t *testing.T) {
	if _, err := FromHex("zz"); err == nil {
		t.Fatal("accepted non-hex key")
	}
	if _, err := FromHex(strings.Repeat("11", 16)); err == nil {
		t.Fatal("accepted short key")
	}
}

func TestAddressFormat(t *testing.T) {
	id, err := NewEphemeral()
	if err != nil {
		t.Fatalf("NewEphemeral: %v", err)
	}
	addr := id.Address()
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		t.Fatalf("address %q", addr)
	}
}
