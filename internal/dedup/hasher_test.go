package dedup

import "testing"

func TestHashContentStable(t *testing.T) {
	a := HashContent([]byte("signed settlement agreement"))
	b := HashContent([]byte("signed settlement agreement"))
	if a != b {
		t.Fatalf("same bytes should hash equal: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	c := HashContent([]byte("signed settlement agreement."))
	if a == c {
		t.Fatalf("different bytes should not collide")
	}
}

func TestHashMetadataCanonicalizes(t *testing.T) {
	a := HashMetadata("Contract.PDF", 1024, "contract")
	b := HashMetadata("  contract.pdf ", 1024, "Contract")
	if a != b {
		t.Fatalf("case and whitespace should not change metadata hash: %s vs %s", a, b)
	}
	if c := HashMetadata("contract.pdf", 1025, "contract"); c == a {
		t.Fatalf("size change should change metadata hash")
	}
	if c := HashMetadata("contract.pdf", 1024, "email"); c == a {
		t.Fatalf("type change should change metadata hash")
	}
}

func TestHashTextDiffers(t *testing.T) {
	if HashText("chunk one") == HashText("chunk two") {
		t.Fatalf("distinct chunk text should not collide")
	}
}
