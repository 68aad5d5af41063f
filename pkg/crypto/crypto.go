package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

func GenerateRandomString() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

// DecryptAESCBC decrypts a base64 content encrypted with AES-CBC and PKCS#7 padding. The key is
// base64 encoded, the vector is used as raw bytes. Surrounding whitespaces of the plaintext are
// removed.
func DecryptAESCBC(content, key, vector string) (string, error) {
	block, iv, err := newCipher(key, vector)
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(content))
	if err != nil {
		return "", fmt.Errorf("invalid content: %w", err)
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("content is not a multiple of the block size")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = unpad(plaintext)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(plaintext)), nil
}

// EncryptAESCBC is the reverse of DecryptAESCBC.
func EncryptAESCBC(plaintext, key, vector string) (string, error) {
	block, iv, err := newCipher(key, vector)
	if err != nil {
		return "", err
	}

	padded := pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func newCipher(key, vector string) (cipher.Block, []byte, error) {
	rawKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid aes key: %w", err)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, nil, err
	}

	iv := []byte(vector)
	if len(iv) != aes.BlockSize {
		return nil, nil, fmt.Errorf("vector must be %d bytes", aes.BlockSize)
	}

	return block, iv, nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}

	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}

	return b[:len(b)-n], nil
}
