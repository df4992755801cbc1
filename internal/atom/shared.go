package atom

// SharedNames lists every well-known identifier compiled into the
// runtime: property names the object model and library roots rely on,
// plus every opcode mnemonic (so disassembly and error messages can
// render instruction names without a separate string table) and the
// name of every library root. Order does not matter — NewTable sorts it.
var SharedNames = []string{
	// Core object protocol
	"constructor", "length", "iterator", "prototype", "this",
	"name", "arguments", "call", "apply", "toString", "valueOf",

	// Library roots (§6)
	"Global", "GPIO", "JSON", "TCP", "UDP", "IPAddr", "FS", "File",
	"Directory", "Task", "Timer", "Iterator", "Base64", "Crypto",

	// Timer behaviors
	"Once", "Repeating",

	// File open modes (§6)
	"Read", "ReadUpdate", "Write", "WriteUpdate", "Append",
	"AppendUpdate", "Create",

	// Opcode mnemonics, for disassembly
	"MOVE", "LOADREFK", "STOREFK", "LOADLITA", "LOADLITO",
	"LOADTRUE", "LOADFALSE", "LOADNULL", "LOADTHIS", "LOADUP", "STOREUP",
	"LOADPROP", "LOADELT", "STOPROP", "STOELT", "APPENDELT",
	"APPENDPROP", "PUSH", "POP", "POPX", "LOR", "LAND", "OR", "AND",
	"XOR", "EQ", "NE", "LT", "LE", "GT", "GE", "SHL", "SHR", "SAR",
	"ADD", "SUB", "MUL", "DIV", "MOD", "UMINUS", "UNOT", "UNEG",
	"PREINC", "PREDEC", "POSTINC", "POSTDEC", "CALL", "NEW",
	"CALLPROP", "CLOSURE", "JMP", "JT", "JF", "LINENO", "RET", "RETI",
	"YIELD", "END", "UNKNOWN",
}
