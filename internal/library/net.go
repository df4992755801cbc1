package library

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/host"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/value"
	"github.com/m8rscript/m8r/internal/vm"
)

// buildNet constructs the Net static root (spec §6): TCP/UDP socket
// factories delegating to the injected host.SystemInterface, plus the
// Event enum sockets report through their onEvent callback. Grounded on
// server/transport.go's connection-event model (Connected/
// Disconnected/ReceivedData/SentData/Error), translated from a
// goroutine-driven net.Conn into the callback shape host.TCPSocket
// exposes.
func buildNet(tbl *atom.Table, sys host.SystemInterface) *object.StaticObject {
	root := object.NewStaticObject(tbl.Atomize("Net"))

	defineValue(tbl, root, "Connected", value.NewInt(int32(host.Connected)))
	defineValue(tbl, root, "Reconnected", value.NewInt(int32(host.Reconnected)))
	defineValue(tbl, root, "Disconnected", value.NewInt(int32(host.Disconnected)))
	defineValue(tbl, root, "ReceivedData", value.NewInt(int32(host.ReceivedData)))
	defineValue(tbl, root, "SentData", value.NewInt(int32(host.SentData)))
	defineValue(tbl, root, "Error", value.NewInt(int32(host.Error)))
	defineValue(tbl, root, "MaxConnections", value.NewInt(int32(host.MaxConnections)))

	define(tbl, root, "createTCP", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if sys == nil {
			return fail(diag.Unimplemented)
		}
		port := int(argInt(args, 0, 0))
		ip, _ := argString(v, args, 1)
		if len(args) < 3 || (args[2].Type() != value.NativeFunction && args[2].Type() != value.Object) {
			return fail(diag.WrongNumberOfParams)
		}
		callback := args[2]
		sock, err := sys.CreateTCP(port, ip, func(connID int, ev host.Event, data []byte) {
			v.FireEvent(callback, value.Undef, []value.Value{
				value.NewInt(int32(connID)),
				value.NewInt(int32(ev)),
				heapString(v, string(data)),
			})
		})
		if err != nil {
			return fail(diag.InternalError)
		}
		return ok(newTCPSocketObject(v, sock))
	})

	define(tbl, root, "createUDP", func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
		if sys == nil {
			return fail(diag.Unimplemented)
		}
		port := int(argInt(args, 0, 0))
		if len(args) < 2 || (args[1].Type() != value.NativeFunction && args[1].Type() != value.Object) {
			return fail(diag.WrongNumberOfParams)
		}
		callback := args[1]
		sock, err := sys.CreateUDP(port, func(connID int, ev host.Event, data []byte) {
			v.FireEvent(callback, value.Undef, []value.Value{
				value.NewInt(int32(connID)),
				value.NewInt(int32(ev)),
				heapString(v, string(data)),
			})
		})
		if err != nil {
			return fail(diag.InternalError)
		}
		return ok(newUDPSocketObject(v, sock))
	})

	return root
}

func newTCPSocketObject(v *vm.VM, sock host.TCPSocket) value.Value {
	methods := map[string]vm.NativeFunc{
		"send": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			connID := int(argInt(args, 0, -1))
			s, hasArg := argString(v, args, 1)
			if !hasArg {
				return fail(diag.WrongNumberOfParams)
			}
			if err := sock.Send(connID, []byte(s)); err != nil {
				return fail(diag.InternalError)
			}
			return okUndef()
		},
		"disconnect": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			connID := int(argInt(args, 0, -1))
			if err := sock.Disconnect(connID); err != nil {
				return fail(diag.InternalError)
			}
			return okUndef()
		},
		"close": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			sock.Close()
			return okUndef()
		},
	}
	return newMethodObject(v, v.Runtime().Atoms.Atomize("TCPSocket"), methods)
}

func newUDPSocketObject(v *vm.VM, sock host.UDPSocket) value.Value {
	methods := map[string]vm.NativeFunc{
		"send": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			ip, hasIP := argString(v, args, 0)
			port := int(argInt(args, 1, 0))
			data, hasData := argString(v, args, 2)
			if !hasIP || !hasData {
				return fail(diag.WrongNumberOfParams)
			}
			if err := sock.Send(ip, port, []byte(data)); err != nil {
				return fail(diag.InternalError)
			}
			return okUndef()
		},
		"close": func(v *vm.VM, this value.Value, args []value.Value) object.CallReturnValue {
			sock.Close()
			return okUndef()
		},
	}
	return newMethodObject(v, v.Runtime().Atoms.Atomize("UDPSocket"), methods)
}
