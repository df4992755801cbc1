package compiler

import (
	"fmt"
	"strconv"

	"github.com/m8rscript/m8r/internal/bytecode"
)

func sprintf(format string, args ...interface{}) string { return fmt.Sprintf(format, args...) }

func itoa(i int32) string { return strconv.FormatInt(int64(i), 10) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// remapRegisters rewrites every R/RK(register-case) operand in code
// through renumber, leaving constant ids, up-value indices, NPARAMS,
// and jump/line immediates untouched. This implements the compiler's
// final pass (spec §4.3): temporaries counted down from MaxRegister are
// remapped into the contiguous range immediately above the locals.
func remapRegisters(code []byte, renumber func(int) int) []byte {
	out := make([]byte, 0, len(code))
	pos := 0
	for pos < len(code) {
		op, imm := bytecode.Decode(code[pos])
		out = append(out, bytecode.Encode(op, imm))
		pos++
		for _, kind := range bytecode.Operands[op] {
			switch kind {
			case bytecode.OperandR:
				out = append(out, byte(renumber(int(code[pos]))))
				pos++
			case bytecode.OperandRK:
				rk := code[pos]
				if bytecode.IsRegister(rk) {
					out = append(out, byte(renumber(int(rk))))
					pos++
				} else {
					sz := bytecode.RKSize(code, pos)
					out = append(out, code[pos:pos+sz]...)
					pos += sz
				}
			case bytecode.OperandU, bytecode.OperandNParams:
				out = append(out, code[pos])
				pos++
			case bytecode.OperandSN, bytecode.OperandUN:
				out = append(out, code[pos], code[pos+1])
				pos += 2
			}
		}
	}
	return out
}
