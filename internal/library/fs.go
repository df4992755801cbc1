package library

import (
	"io"

	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/host"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildFS constructs the FS static root (spec §6): mount/mounted/
// unmount/format plus open/openDirectory/makeDirectory/remove/rename/
// exists, each delegating to the injected host.FS. Returns
// diag.NoFS-flavored errors when fs is nil, grounded on
// builtins/compat_fileio.go's mode-set and error-code shape translated
// from MOO error codes to diag.Code.
func buildFS(tbl *atom.Table, fs host.FS) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("FS"))

	defineValue(tbl, root, "Read", value.NewInt(int32(host.Read)))
	defineValue(tbl, root, "ReadUpdate", value.NewInt(int32(host.ReadUpdate)))
	defineValue(tbl, root, "Write", value.NewInt(int32(host.Write)))
	defineValue(tbl, root, "WriteUpdate", value.NewInt(int32(host.WriteUpdate)))
	defineValue(tbl, root, "Append", value.NewInt(int32(host.Append)))
	defineValue(tbl, root, "AppendUpdate", value.NewInt(int32(host.AppendUpdate)))
	defineValue(tbl, root, "Create", value.NewInt(int32(host.Create)))

	define(tbl, root, "mount", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		if err := fs.Mount(); err != nil {
			return fail(diag.MountFailed)
		}
		return okUndef()
	})

	define(tbl, root, "mounted", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		return okBool(fs.Mounted())
	})

	define(tbl, root, "unmount", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		fs.Unmount()
		return okUndef()
	})

	define(tbl, root, "format", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		if err := fs.Format(); err != nil {
			return fail(diag.FormatFailed)
		}
		return okUndef()
	})

	define(tbl, root, "exists", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		name, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		return okBool(fs.Exists(name))
	})

	define(tbl, root, "makeDirectory", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		name, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		if err := fs.MakeDirectory(name); err != nil {
			return fail(diag.DirectoryNotFound)
		}
		return okUndef()
	})

	define(tbl, root, "remove", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		name, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		if err := fs.Remove(name); err != nil {
			return fail(diag.FileNotFound)
		}
		return okUndef()
	})

	define(tbl, root, "rename", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		from, hasFrom := argString(v, args, 0)
		to, hasTo := argString(v, args, 1)
		if !hasFrom || !hasTo {
			return fail(diag.WrongNumberOfParams)
		}
		if err := fs.Rename(from, to); err != nil {
			return fail(diag.FileNotFound)
		}
		return okUndef()
	})

	define(tbl, root, "open", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		name, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		mode := host.Mode(argInt(args, 1, int32(host.Read)))
		f, err := fs.Open(name, mode)
		if err != nil {
			return fail(diag.FileNotFound)
		}
		return ok(newFileObject(v, f))
	})

	define(tbl, root, "openDirectory", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if fs == nil {
			return fail(diag.NoFS)
		}
		name, hasArg := argString(v, args, 0)
		if !hasArg {
			return fail(diag.WrongNumberOfParams)
		}
		d, err := fs.OpenDirectory(name)
		if err != nil {
			return fail(diag.DirectoryNotFound)
		}
		return ok(newDirectoryObject(v, d))
	})

	return root
}

// newFileObject wraps an open host.File as a scripted object with
// read/write/seek/close methods (spec §6's File proto).
func newFileObject(v *vm.VM, f host.File) value.Value {
	methods := map[string]vm.NativeFunc{
		"read": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			n := int(argInt(args, 0, 4096))
			if n <= 0 {
				return fail(diag.InvalidArgumentValue)
			}
			buf := make([]byte, n)
			read, err := f.Read(buf)
			if err != nil && err != io.EOF {
				return fail(diag.NotReadable)
			}
			return ok(heapString(v, string(buf[:read])))
		},
		"write": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			s, hasArg := argString(v, args, 0)
			if !hasArg {
				return fail(diag.WrongNumberOfParams)
			}
			n, err := f.Write([]byte(s))
			if err != nil {
				return fail(diag.NotWritable)
			}
			return okInt(int32(n))
		},
		"seek": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			offset := int64(argInt(args, 0, 0))
			whence := int(argInt(args, 1, 0))
			pos, err := f.Seek(offset, whence)
			if err != nil {
				return fail(diag.SeekNotAllowed)
			}
			return okInt(int32(pos))
		},
		"close": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			f.Close()
			return okUndef()
		},
	}
	return newMethodObject(v, v.Runtime().Atoms.Atomize("File"), methods)
}

// newDirectoryObject wraps an open host.Directory with a next()/close()
// script surface (spec §6's Directory proto).
func newDirectoryObject(v *vm.VM, d host.Directory) value.Value {
	methods := map[string]vm.NativeFunc{
		"next": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			name, hasNext := d.Next()
			if !hasNext {
				return ok(value.Nul)
			}
			return ok(heapString(v, name))
		},
		"close": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			d.Close()
			return okUndef()
		},
	}
	return newMethodObject(v, v.Runtime().Atoms.Atomize("Directory"), methods)
}
