package ethutil

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/enfty-lab/gateway/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DecryptPrivateKey decrypts a hex private key encrypted by the line-of-business system.
func DecryptPrivateKey(content, aesKey, vector string) (*ecdsa.PrivateKey, error) {
	plaintext, err := crypto.DecryptAESCBC(content, aesKey, vector)
	if err != nil {
		return nil, err
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(plaintext, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decrypted content is not a private key: %w", err)
	}

	return key, nil
}

// DecryptPrivateKeyOf decrypts a private key and checks it belongs to address.
func DecryptPrivateKeyOf(address, content, aesKey, vector string) (*ecdsa.PrivateKey, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}

	key, err := DecryptPrivateKey(content, aesKey, vector)
	if err != nil {
		return nil, err
	}

	if AddressOf(key) != common.HexToAddress(address) {
		return nil, fmt.Errorf("private key does not belong to %s", address)
	}

	return key, nil
}

func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}
