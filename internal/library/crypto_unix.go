//go:build !windows

package library

import crypt "github.com/amoghe/go-crypt"

// cryptUnix hashes password against the algorithm selected by salt's
// prefix (DES/MD5/SHA-256/SHA-512, per crypt(3) convention), grounded
// on builtins/crypto.go's cryptPasswordWithPerm algorithm-from-salt
// dispatch but delegated to a pure-Go crypt(3) implementation instead
// of the teacher's cgo wrapper around the platform's libcrypt, since
// cgo is unavailable in this build.
func cryptUnix(password, salt string) (string, error) {
	return crypt.Crypt(password, salt)
}
