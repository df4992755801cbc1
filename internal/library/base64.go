package library

import (
	"encoding/base64"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildBase64 constructs the Base64 static root: encode/decode, with an
// optional second urlSafe argument, grounded on builtins/crypto.go's
// builtinEncodeBase64/builtinDecodeBase64 shape (same optional
// url-safe-without-padding flag).
func buildBase64(tbl *atom.Table) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("Base64"))

	define(tbl, root, "encode", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		s, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		enc := base64.StdEncoding
		if argBool(args, 1, false) {
			enc = base64.RawURLEncoding
		}
		return ok(heapString(v, enc.EncodeToString([]byte(s))))
	})

	define(tbl, root, "decode", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		s, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		enc := base64.StdEncoding
		if argBool(args, 1, false) {
			enc = base64.RawURLEncoding
		}
		data, err := enc.DecodeString(s)
		if err != nil {
			return fail(diag.InvalidArgumentValue)
		}
		return ok(heapString(v, string(data)))
	})

	return root
}
