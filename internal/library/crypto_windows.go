//go:build windows

package library

import crypt "github.com/sergeymakinen/go-crypt"

// cryptUnix mirrors crypto_unix.go's algorithm-from-salt dispatch using
// a portable (non-cgo) crypt(3) implementation, for hosts where the
// amoghe/go-crypt build has no platform backend.
func cryptUnix(password, salt string) (string, error) {
	return crypt.Crypt(password, salt)
}
