// Package samba computes the password hashes and security identifiers kept
// on sambaSamAccount directory entries.
package samba

import (
	"crypto/des"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"unicode/utf16"

	"golang.org/x/crypto/md4" //nolint:staticcheck // MD4 is required for the NT hash
)

// lmMagic is the constant encrypted with each half of the LM key.
var lmMagic = []byte("KGS!@#$%")

// NTHash computes MD4(UTF16LE(password)).
func NTHash(password string) [16]byte {
	units := utf16.Encode([]rune(password))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}

	h := md4.New()
	h.Write(buf)
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// LMHash computes the LAN Manager hash. The password is upper-cased and
// truncated or zero-padded to 14 bytes; each 7-byte half keys a DES
// encryption of the LM magic constant.
func LMHash(password string) [16]byte {
	key := make([]byte, 14)
	copy(key, strings.ToUpper(password))

	var out [16]byte
	for i := 0; i < 2; i++ {
		block, err := des.NewCipher(desKey(key[i*7 : i*7+7]))
		if err != nil {
			// des.NewCipher only fails on a key length other than 8
			panic(err)
		}
		block.Encrypt(out[i*8:], lmMagic)
	}
	return out
}

// desKey spreads 56 key bits over 8 bytes, leaving the low parity bit clear.
func desKey(k []byte) []byte {
	return []byte{
		k[0] & 0xfe,
		(k[0]<<7 | k[1]>>1) & 0xfe,
		(k[1]<<6 | k[2]>>2) & 0xfe,
		(k[2]<<5 | k[3]>>3) & 0xfe,
		(k[3]<<4 | k[4]>>4) & 0xfe,
		(k[4]<<3 | k[5]>>5) & 0xfe,
		(k[5]<<2 | k[6]>>6) & 0xfe,
		k[6] << 1,
	}
}

// Hashes is the pair of hex-encoded hashes stored in the directory.
type Hashes struct {
	LM string
	NT string
}

// HashPassword returns the upper-case hex LM and NT hashes of password, the
// form used by the sambaLMPassword and sambaNTPassword attributes.
func HashPassword(password string) Hashes {
	lm := LMHash(password)
	nt := NTHash(password)
	return Hashes{
		LM: strings.ToUpper(hex.EncodeToString(lm[:])),
		NT: strings.ToUpper(hex.EncodeToString(nt[:])),
	}
}

// Matches compares h against stored values case-insensitively.
func (h Hashes) Matches(lm, nt string) bool {
	return strings.EqualFold(h.LM, lm) && strings.EqualFold(h.NT, nt)
}
