package ethutil

import (
	"testing"

	"github.com/enfty-lab/gateway/pkg/crypto"
	"github.com/enfty-lab/gateway/pkg/testutil"
	"github.com/stretchr/testify/require"
)

const testVector = "abcdef0123456789"

func TestDecryptPrivateKeyOf(t *testing.T) {
	encrypted, err := crypto.EncryptAESCBC(testutil.OwnerKey, testutil.AESKey, testVector)
	require.NoError(t, err)

	notAKey, err := crypto.EncryptAESCBC("hello", testutil.AESKey, testVector)
	require.NoError(t, err)

	key, err := DecryptPrivateKeyOf(testutil.OwnerAccount, encrypted, testutil.AESKey, testVector)
	require.NoError(t, err)
	require.Equal(t, testutil.OwnerAccount, AddressOf(key).Hex())

	_, err = DecryptPrivateKeyOf(testutil.AddressA, encrypted, testutil.AESKey, testVector)
	require.Error(t, err)

	_, err = DecryptPrivateKeyOf("0x123", encrypted, testutil.AESKey, testVector)
	require.Error(t, err)

	_, err = DecryptPrivateKeyOf(testutil.OwnerAccount, notAKey, testutil.AESKey, testVector)
	require.Error(t, err)
}

func TestIsIpfsHash(t *testing.T) {
	require.True(t, IsIpfsHash("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
	require.True(t, IsIpfsHash("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"))
	require.False(t, IsIpfsHash("not-a-hash"))
	require.False(t, IsIpfsHash(""))
}
