// Package cursor implements the logical pagination cursor shared across all
// upstream sources, and its opaque token encoding. The token format is known
// only to this package; the rest of the federation core works with the
// structured Logical map.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned when a pagination token cannot be decoded.
// Callers must restart pagination from the first page.
var ErrInvalidCursor = errors.New("invalid pagination token")

// State is one source's pagination position.
type State struct {
	// Next is the upstream-native next-page href, opaque to the core.
	// Empty means the source's first page (or, with Skip > 0, a re-fetch
	// of the first page).
	Next string `json:"next,omitempty"`

	// Skip is the number of items already consumed from the page at this
	// position. Deferred items from an earlier round are recovered by
	// re-fetching the same page and dropping the first Skip items.
	Skip int `json:"skip,omitempty"`

	// Exhausted marks a source that has no more pages. Exhausted sources
	// are never queried again.
	Exhausted bool `json:"exhausted,omitempty"`
}

// Logical maps source IDs to their pagination states. A nil Logical means
// "first page, no source queried yet".
type Logical map[string]State

// Exhausted reports whether every source in the cursor is exhausted.
// A nil or empty cursor is not exhausted.
func (c Logical) Exhausted() bool {
	if len(c) == 0 {
		return false
	}
	for _, s := range c {
		if !s.Exhausted {
			return false
		}
	}
	return true
}

// envelope is the wire form of a token. Skip offsets are only meaningful
// under the sort order that produced them, so the token binds the sort
// specification alongside the per-source states.
type envelope struct {
	Sort    string           `json:"sort,omitempty"`
	Sources map[string]State `json:"sources"`
}

// Encode serializes a logical cursor into an opaque URL-safe token. sort is
// the sort specification the cursor positions were produced under; Decode
// hands it back so continuations under a different order can be rejected.
func Encode(c Logical, sort string) (string, error) {
	if len(c) == 0 {
		return "", fmt.Errorf("cannot encode empty cursor")
	}

	data, err := json.Marshal(envelope{Sort: sort, Sources: c})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a token produced by Encode, returning the cursor and the
// sort specification it was encoded with. Tampered or malformed tokens
// fail with ErrInvalidCursor, never a silently wrong cursor.
func Decode(token string) (Logical, string, error) {
	if token == "" {
		return nil, "", fmt.Errorf("%w: empty token", ErrInvalidCursor)
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if len(env.Sources) == 0 {
		return nil, "", fmt.Errorf("%w: no source states", ErrInvalidCursor)
	}
	for id, s := range env.Sources {
		if id == "" {
			return nil, "", fmt.Errorf("%w: empty source id", ErrInvalidCursor)
		}
		if s.Skip < 0 {
			return nil, "", fmt.Errorf("%w: negative skip for %q", ErrInvalidCursor, id)
		}
	}

	return Logical(env.Sources), env.Sort, nil
}
