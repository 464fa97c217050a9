package cache

import (
	"strings"
	"testing"
)

func TestKey_String(t *testing.T) {
	key := Key{
		SourceID: "earth-search",
		URL:      "https://earth-search.aws.element84.com/v1/collections?limit=10",
	}

	got := key.String()

	if !strings.HasPrefix(got, "stacfed:cache:earth-search:") {
		t.Errorf("key = %q, want stacfed:cache:<source>: prefix", got)
	}

	// sha256 hex digest after the last separator.
	hash := got[strings.LastIndex(got, ":")+1:]
	if len(hash) != 64 {
		t.Errorf("hash segment %q has length %d, want 64", hash, len(hash))
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	key := Key{SourceID: "s", URL: "https://example.com/collections"}

	if key.String() != key.String() {
		t.Error("same key produced different strings")
	}
}

func TestKey_String_DistinguishesURLs(t *testing.T) {
	base := Key{SourceID: "s", URL: "https://example.com/collections?limit=10"}
	other := Key{SourceID: "s", URL: "https://example.com/collections?limit=20"}

	if base.String() == other.String() {
		t.Error("different URLs produced the same key")
	}
}

func TestKey_String_DistinguishesSources(t *testing.T) {
	url := "https://example.com/collections"
	a := Key{SourceID: "a", URL: url}
	b := Key{SourceID: "b", URL: url}

	if a.String() == b.String() {
		t.Error("different sources produced the same key")
	}
}
