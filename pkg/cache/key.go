package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key identifies one cached upstream response.
type Key struct {
	// SourceID is the upstream source the response came from.
	SourceID string

	// URL is the full request URL including query and pagination position.
	URL string
}

// String generates a deterministic Redis key.
// Format: stacfed:cache:<source>:<sha256(url)>
//
// The URL is hashed because upstream hrefs routinely exceed sane key
// lengths and contain separator characters.
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.URL))
	return fmt.Sprintf("stacfed:cache:%s:%s", k.SourceID, hex.EncodeToString(sum[:]))
}
