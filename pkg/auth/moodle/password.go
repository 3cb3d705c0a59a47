package moodle

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/md5_crypt"
	_ "github.com/GehirnInc/crypt/sha256_crypt"
	_ "github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"
)

// HashFormat identifies how a Moodle password column is encoded.
type HashFormat int

const (
	FormatUnknown HashFormat = iota
	// FormatSaltedMD5 is md5(password + site salt) in lower-case hex.
	FormatSaltedMD5
	// FormatCrypt is a crypt(3) string such as $2y$..., $6$... or $1$....
	FormatCrypt
)

var (
	md5Pattern   = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	cryptPattern = regexp.MustCompile(`^\$[0-9][a-z]?\$`)
)

// ErrUnknownFormat is returned for password columns that are neither
// salted MD5 nor crypt(3).
var ErrUnknownFormat = errors.New("unrecognized password hash format")

// SniffFormat classifies a stored hash.
func SniffFormat(hash string) HashFormat {
	switch {
	case md5Pattern.MatchString(hash):
		return FormatSaltedMD5
	case cryptPattern.MatchString(hash):
		return FormatCrypt
	default:
		return FormatUnknown
	}
}

// CheckPassword reports whether password matches hash. Salted MD5 hashes
// are tried with every salt in order. Hashes in an unknown format return
// ErrUnknownFormat.
func CheckPassword(hash, password string, salts []string) (bool, error) {
	switch SniffFormat(hash) {
	case FormatSaltedMD5:
		want := strings.ToLower(hash)
		for _, salt := range salts {
			sum := md5.Sum([]byte(password + salt))
			if subtle.ConstantTimeCompare([]byte(want), []byte(hex.EncodeToString(sum[:]))) == 1 {
				return true, nil
			}
		}
		return false, nil
	case FormatCrypt:
		return checkCrypt(hash, password)
	default:
		return false, ErrUnknownFormat
	}
}

func checkCrypt(hash, password string) (bool, error) {
	if strings.HasPrefix(hash, "$2") {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, ErrUnknownFormat
		}
	}
	if !crypt.IsHashSupported(hash) {
		return false, ErrUnknownFormat
	}
	return crypt.NewFromHash(hash).Verify(hash, []byte(password)) == nil, nil
}
