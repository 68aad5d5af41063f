package eth

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/enfty.json
var defaultABI []byte

// LoadABI parses the contract ABI at path. The file holds either a raw ABI array or a build
// artifact with an "abi" key. An empty path means the embedded ABI.
func LoadABI(path string) (abi.ABI, error) {
	raw := defaultABI
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, err
		}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return abi.ABI{}, err
		}

		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("no abi key in %s", path)
		}

		raw = artifact.ABI
	}

	return abi.JSON(bytes.NewReader(raw))
}
