package session

import (
	"regexp"
	"testing"
)

var uuidShape = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestDeriveWorkspaceIDIsStable(t *testing.T) {
	// Known vectors; these must never change, the hosted app keys workspace
	// data by them.
	cases := map[string]string{
		"cus_OgXvN2UyBTYkoo": "fae09042-5473-17e6-2278-1d42404f9813",
		"cus_123":            "a292cac1-3f78-8f26-f9ec-8aa3b3103b52",
	}
	for customerID, want := range cases {
		got := DeriveWorkspaceID(customerID)
		if got != want {
			t.Fatalf("DeriveWorkspaceID(%q) = %q, want %q", customerID, got, want)
		}
		if got != DeriveWorkspaceID(customerID) {
			t.Fatalf("derivation is not deterministic for %q", customerID)
		}
	}
}

func TestDeriveWorkspaceIDShape(t *testing.T) {
	for _, id := range []string{"cus_a", "cus_b", "", "x"} {
		got := DeriveWorkspaceID(id)
		if !uuidShape.MatchString(got) {
			t.Fatalf("DeriveWorkspaceID(%q) = %q, not UUID-shaped", id, got)
		}
	}
}

func TestDeriveWorkspaceIDDistinguishesCustomers(t *testing.T) {
	if DeriveWorkspaceID("cus_a") == DeriveWorkspaceID("cus_b") {
		t.Fatalf("different customers derived the same workspace id")
	}
}
