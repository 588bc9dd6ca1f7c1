package pipeline

import "testing"

func TestComputeIdentity_Deterministic(t *testing.T) {
	a := ComputeIdentity([]byte("doc"), "gemini", "gemini-2.0-flash", "fintech")
	b := ComputeIdentity([]byte("doc"), "gemini", "gemini-2.0-flash", "fintech")
	if a != b {
		t.Fatalf("identity not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("identity length: got=%d want=64", len(a))
	}
}

func TestComputeIdentity_ConfigChangesNamespace(t *testing.T) {
	base := ComputeIdentity([]byte("doc"), "gemini", "gemini-2.0-flash", "fintech")
	cases := map[string]Identity{
		"content":  ComputeIdentity([]byte("doc2"), "gemini", "gemini-2.0-flash", "fintech"),
		"provider": ComputeIdentity([]byte("doc"), "openai", "gemini-2.0-flash", "fintech"),
		"model":    ComputeIdentity([]byte("doc"), "gemini", "gemini-2.5-pro", "fintech"),
		"sector":   ComputeIdentity([]byte("doc"), "gemini", "gemini-2.0-flash", "healthtech"),
	}
	for name, id := range cases {
		if id == base {
			t.Fatalf("changing %s must change the identity", name)
		}
	}
}

func TestComputeIdentity_FieldBoundaries(t *testing.T) {
	// "ab"+"c" vs "a"+"bc" across the provider boundary must not collide.
	a := ComputeIdentity([]byte("docab"), "c", "m", "s")
	b := ComputeIdentity([]byte("doca"), "bc", "m", "s")
	if a == b {
		t.Fatal("field boundary collision")
	}
}
