package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretBox(t *testing.T) {
	box, err := NewSecretBox("an-encryption-key-of-32-characters")
	require.NoError(t, err)

	sealed, err := box.Seal("whsec_abc")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "whsec_abc")

	again, err := box.Seal("whsec_abc")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "whsec_abc", opened)
}

func TestSecretBoxRejects(t *testing.T) {
	_, err := NewSecretBox("")
	assert.Error(t, err)

	box, _ := NewSecretBox("key-one")
	other, _ := NewSecretBox("key-two")

	_, err = box.Seal("")
	assert.Error(t, err)

	sealed, err := box.Seal("secret")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err, "different key")

	_, err = box.Open("not base64!")
	assert.Error(t, err)

	_, err = box.Open("AAAA")
	assert.Error(t, err, "shorter than a nonce")
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CompareSecret(hash, "s3cret"))
	assert.False(t, CompareSecret(hash, "wrong"))
	assert.False(t, CompareSecret("not-a-hash", "s3cret"))

	_, err = HashSecret("")
	assert.Error(t, err)
}
