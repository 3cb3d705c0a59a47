package moodle

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func saltedMD5(password, salt string) string {
	sum := md5.Sum([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		hash string
		want HashFormat
	}{
		{"5f4dcc3b5aa765d61d8327deb882cf99", FormatSaltedMD5},
		{"5F4DCC3B5AA765D61D8327DEB882CF99", FormatSaltedMD5},
		{"$2y$10$abcdefghijklmnopqrstuu", FormatCrypt},
		{"$6$salt$hash", FormatCrypt},
		{"$1$salt$hash", FormatCrypt},
		{"not cached", FormatUnknown},
		{"", FormatUnknown},
		{"5f4dcc3b5aa765d61d8327deb882cf9", FormatUnknown},
		{"{SSHA}abcdef", FormatUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SniffFormat(tt.hash), tt.hash)
	}
}

func TestCheckSaltedMD5(t *testing.T) {
	hash := saltedMD5("password", "s4lt")

	ok, err := CheckPassword(hash, "password", []string{"s4lt"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "Password", []string{"s4lt"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = CheckPassword(hash, "password", []string{""})
	require.NoError(t, err)
	assert.False(t, ok, "salt must be applied")

	ok, err = CheckPassword(hash, "password", []string{"current", "s4lt"})
	require.NoError(t, err)
	assert.True(t, ok, "alternate salts are tried")
}

func TestCheckBcrypt(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	// PHP's password_hash writes the $2y$ variant.
	hash := "$2y$" + string(raw[4:])

	ok, err := CheckPassword(hash, "password", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckCrypt(t *testing.T) {
	sha, err := sha512_crypt.New().Generate([]byte("password"), []byte("$6$labgatesalt"))
	require.NoError(t, err)
	legacy, err := md5_crypt.New().Generate([]byte("password"), []byte("$1$saltsalt"))
	require.NoError(t, err)

	for _, hash := range []string{sha, legacy} {
		ok, err := CheckPassword(hash, "password", nil)
		require.NoError(t, err)
		assert.True(t, ok, hash)

		ok, err = CheckPassword(hash, "passw0rd", nil)
		require.NoError(t, err)
		assert.False(t, ok, hash)
	}
}

func TestUnknownFormatNeverMatches(t *testing.T) {
	for _, hash := range []string{"not cached", "", "$9$weird$hash", "$2y$garbage"} {
		ok, err := CheckPassword(hash, "not cached", []string{""})
		assert.False(t, ok, hash)
		assert.ErrorIs(t, err, ErrUnknownFormat, hash)
	}
}
