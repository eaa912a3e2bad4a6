package telegram

import "testing"

func TestMediaTypeForPath(t *testing.T) {
	cases := map[string]string{
		"photos/file_1.JPG":  "image/jpeg",
		"photos/file_2.png":  "image/png",
		"photos/file_3.webp": "image/webp",
		"docs/report.PDF":    "application/pdf",
		"docs/data.bin":      "application/octet-stream",
	}
	for path, want := range cases {
		if got := mediaTypeForPath(path); got != want {
			t.Errorf("mediaTypeForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestIsAllowedEmptyAllowList(t *testing.T) {
	c := New("token", nil, nil)
	if !c.IsAllowed("12345") {
		t.Fatal("expected empty allow-list to permit all senders")
	}
}

func TestIsAllowedRestricts(t *testing.T) {
	c := New("token", []string{"12345"}, nil)
	if !c.IsAllowed("12345") {
		t.Error("expected allow-listed sender to be permitted")
	}
	if c.IsAllowed("99999") {
		t.Error("expected non-allow-listed sender to be rejected")
	}
}
