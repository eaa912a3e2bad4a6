package providers

import "testing"

func TestNormalizeOpenAIBaseURLDefaultsWhenEmpty(t *testing.T) {
	if got := NormalizeOpenAIBaseURL(""); got != defaultOpenAIBase {
		t.Fatalf("expected default base %q, got %q", defaultOpenAIBase, got)
	}
	if got := NormalizeOpenAIBaseURL("   "); got != defaultOpenAIBase {
		t.Fatalf("expected default base for whitespace-only input, got %q", got)
	}
}

func TestNormalizeOpenAIBaseURLStripsTrailingSlashAndAppendsV1(t *testing.T) {
	got := NormalizeOpenAIBaseURL("https://api.example.com/")
	want := "https://api.example.com/v1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeOpenAIBaseURLLeavesExistingV1Alone(t *testing.T) {
	got := NormalizeOpenAIBaseURL("https://api.example.com/v1")
	want := "https://api.example.com/v1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeOpenAIBaseURLIsAFixedPoint(t *testing.T) {
	inputs := []string{"", "https://api.example.com", "https://api.example.com/", "https://api.example.com/v1/"}
	for _, in := range inputs {
		once := NormalizeOpenAIBaseURL(in)
		twice := NormalizeOpenAIBaseURL(once)
		if once != twice {
			t.Fatalf("normalization of %q is not a fixed point: %q vs %q", in, once, twice)
		}
	}
}
