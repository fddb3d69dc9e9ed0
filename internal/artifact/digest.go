package artifact

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest returns the hex blake3-256 digest of content.
func Digest(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
