package ethutil

import (
	"strings"

	cid "github.com/ipfs/go-cid"
)

// IsIpfsHash reports whether hash is a valid content identifier, either v0 (Qm...) or v1.
func IsIpfsHash(hash string) bool {
	_, err := cid.Decode(strings.TrimSpace(hash))
	return err == nil
}
