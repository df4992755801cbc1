package library

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/ripemd160"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildCrypto constructs the Crypto static root: digest/hmac/crypt/
// argon2 helpers, grounded on builtins/crypto.go's string_hash/
// string_hmac/crypt/salt family. Not named in spec.md §6's short list,
// but a natural supplement (spec.md calls out Base64/JSON as the
// in-scope codec libraries and leaves the rest of the host API
// unspecified beyond its interfaces; the teacher ships a substantial
// crypto builtin surface over exactly the dependencies already in
// go.mod, so it gets a home here rather than being left unwired).
func buildCrypto(tbl *atom.Table) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("Crypto"))

	define(tbl, root, "hash", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		s, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		algo, _ := argString(v, args, 1)
		if algo == "" {
			algo = "sha256"
		}
		h, found := newHasher(algo)
		if !found {
			return fail(diag.InvalidArgumentValue)
		}
		h.Write([]byte(s))
		return ok(heapString(v, strings.ToUpper(hex.EncodeToString(h.Sum(nil)))))
	})

	define(tbl, root, "hmac", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		s, hasArg := argString(v, args, 0)
		key, hasKey := argString(v, args, 1)
		if !hasArg || !hasKey {
			return fail(diag.WrongNumberOfParams)
		}
		algo, _ := argString(v, args, 2)
		if algo == "" {
			algo = "sha256"
		}
		mac, found := newHMAC(algo, []byte(key))
		if !found {
			return fail(diag.InvalidArgumentValue)
		}
		mac.Write([]byte(s))
		return ok(heapString(v, strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))))
	})

	define(tbl, root, "crypt", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		password, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		salt, _ := argString(v, args, 1)
		result, err := cryptUnix(password, salt)
		if err != nil {
			return fail(diag.InvalidArgumentValue)
		}
		return ok(heapString(v, result))
	})

	define(tbl, root, "argon2", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		password, hasArg := argString(v, args, 0)
		salt, hasSalt := argString(v, args, 1)
		if !hasArg || !hasSalt {
			return fail(diag.WrongNumberOfParams)
		}
		key := argon2.IDKey([]byte(password), []byte(salt), 1, 64*1024, 4, 32)
		return ok(heapString(v, hex.EncodeToString(key)))
	})

	define(tbl, root, "randomBytes", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		n := int(argInt(args, 0, 16))
		if n <= 0 || n > 1<<16 {
			return fail(diag.InvalidArgumentValue)
		}
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return fail(diag.InternalError)
		}
		return ok(heapString(v, string(buf)))
	})

	return root
}

func newHasher(algo string) (hash.Hash, bool) {
	switch strings.ToLower(algo) {
	case "md5":
		return md5.New(), true
	case "sha1":
		return sha1.New(), true
	case "sha256":
		return sha256.New(), true
	case "sha512":
		return sha512.New(), true
	case "ripemd160":
		return ripemd160.New(), true
	default:
		return nil, false
	}
}

func newHMAC(algo string, key []byte) (hash.Hash, bool) {
	switch strings.ToLower(algo) {
	case "md5":
		return hmac.New(md5.New, key), true
	case "sha1":
		return hmac.New(sha1.New, key), true
	case "sha256":
		return hmac.New(sha256.New, key), true
	case "sha512":
		return hmac.New(sha512.New, key), true
	case "ripemd160":
		return hmac.New(ripemd160.New, key), true
	default:
		return nil, false
	}
}
