package compiler

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/bytecode"
	"github.com/m8rscript/m8r/internal/scanner"
	"github.com/m8rscript/m8r/internal/value"
)

// precedence table (spec §4.3: precedences 1..15, left/right associative
// per operator). Higher binds tighter.
var binPrec = map[scanner.TokenType]int{
	scanner.TokenLogicalOr:  1,
	scanner.TokenLogicalAnd: 2,
	scanner.TokenBitOr:      3,
	scanner.TokenBitXor:     4,
	scanner.TokenBitAnd:     5,
	scanner.TokenEq:         6,
	scanner.TokenNe:         6,
	scanner.TokenLt:         7,
	scanner.TokenLe:         7,
	scanner.TokenGt:         7,
	scanner.TokenGe:         7,
	scanner.TokenShl:        8,
	scanner.TokenShr:        8,
	scanner.TokenPlus:       9,
	scanner.TokenMinus:      9,
	scanner.TokenStar:       10,
	scanner.TokenSlash:      10,
	scanner.TokenPercent:    10,
}

var binOp = map[scanner.TokenType]bytecode.OpCode{
	scanner.TokenLogicalOr:  bytecode.LOR,
	scanner.TokenLogicalAnd: bytecode.LAND,
	scanner.TokenBitOr:      bytecode.OR,
	scanner.TokenBitXor:     bytecode.XOR,
	scanner.TokenBitAnd:     bytecode.AND,
	scanner.TokenEq:         bytecode.EQ,
	scanner.TokenNe:         bytecode.NE,
	scanner.TokenLt:         bytecode.LT,
	scanner.TokenLe:         bytecode.LE,
	scanner.TokenGt:         bytecode.GT,
	scanner.TokenGe:         bytecode.GE,
	scanner.TokenShl:        bytecode.SHL,
	scanner.TokenShr:        bytecode.SHR,
	scanner.TokenPlus:       bytecode.ADD,
	scanner.TokenMinus:      bytecode.SUB,
	scanner.TokenStar:       bytecode.MUL,
	scanner.TokenSlash:      bytecode.DIV,
	scanner.TokenPercent:    bytecode.MOD,
}

var assignOp = map[scanner.TokenType]bytecode.OpCode{
	scanner.TokenPlusEq:    bytecode.ADD,
	scanner.TokenMinusEq:   bytecode.SUB,
	scanner.TokenStarEq:    bytecode.MUL,
	scanner.TokenSlashEq:   bytecode.DIV,
	scanner.TokenPercentEq: bytecode.MOD,
	scanner.TokenAndEq:     bytecode.AND,
	scanner.TokenOrEq:      bytecode.OR,
	scanner.TokenXorEq:     bytecode.XOR,
	scanner.TokenShlEq:     bytecode.SHL,
	scanner.TokenShrEq:     bytecode.SHR,
}

func (c *Compiler) peek() scanner.Token  { return c.sc.GetToken() }
func (c *Compiler) advance() scanner.Token {
	t := c.sc.GetToken()
	c.sc.RetireToken()
	c.trackLine(t.Pos.Line)
	return t
}

func (c *Compiler) expect(tt scanner.TokenType, what string) scanner.Token {
	t := c.peek()
	if t.Type != tt {
		c.addError("expected %s, got %q", what, t.Text)
		return t
	}
	return c.advance()
}

// parseExpr parses a full expression (including assignment and ternary)
// and bakes the result into a register, returning that register.
func (c *Compiler) parseExpr() int {
	return c.parseAssign()
}

func (c *Compiler) parseAssign() int {
	d := c.parseTernaryDesc()
	t := c.peek()

	if t.Type == scanner.TokenAssign {
		c.advance()
		valReg := c.parseExpr()
		return c.storeInto(d, valReg)
	}
	if op, ok := assignOp[t.Type]; ok {
		c.advance()
		cur := c.bake(d)
		rhs := c.parseExpr()
		res := c.allocTemp()
		c.emit(op)
		c.emitByte(byte(res))
		c.emitByte(byte(cur))
		c.emitByte(byte(rhs))
		return c.storeInto(d, res)
	}
	return c.bake(d)
}

func (c *Compiler) parseTernaryDesc() desc {
	d := c.parseBinaryDesc(0)
	if c.peek().Type == scanner.TokenQuestion {
		c.advance()
		cond := c.bake(d)
		site := c.emitCondJump(bytecode.JF, byte(cond))
		thenReg := c.parseExpr()
		out := c.allocTemp()
		c.emit(bytecode.MOVE)
		c.emitByte(byte(out))
		c.emitByte(byte(thenReg))
		jend := c.emitJump(bytecode.JMP)
		c.matchJump(site, -1)
		c.expect(scanner.TokenColon, "':'")
		elseReg := c.parseExpr()
		c.emit(bytecode.MOVE)
		c.emitByte(byte(out))
		c.emitByte(byte(elseReg))
		c.matchJump(jend, -1)
		return desc{kind: descRegister, reg: out}
	}
	return d
}

// parseBinaryDesc implements precedence climbing starting at minPrec.
func (c *Compiler) parseBinaryDesc(minPrec int) desc {
	left := c.parseUnaryDesc()
	for {
		t := c.peek()
		prec, ok := binPrec[t.Type]
		if !ok || prec < minPrec {
			return left
		}
		c.advance()
		lreg := c.bake(left)
		right := c.parseBinaryDesc(prec + 1)
		rreg := c.bake(right)
		res := c.allocTemp()
		c.emit(binOp[t.Type])
		c.emitByte(byte(res))
		c.emitByte(byte(lreg))
		c.emitByte(byte(rreg))
		left = desc{kind: descRegister, reg: res}
	}
}

func (c *Compiler) parseUnaryDesc() desc {
	t := c.peek()
	switch t.Type {
	case scanner.TokenMinus:
		c.advance()
		operand := c.bake(c.parseUnaryDesc())
		res := c.allocTemp()
		c.emit(bytecode.UMINUS)
		c.emitByte(byte(res))
		c.emitByte(byte(operand))
		return desc{kind: descRegister, reg: res}
	case scanner.TokenNot:
		c.advance()
		operand := c.bake(c.parseUnaryDesc())
		res := c.allocTemp()
		c.emit(bytecode.UNOT)
		c.emitByte(byte(res))
		c.emitByte(byte(operand))
		return desc{kind: descRegister, reg: res}
	case scanner.TokenBitNot:
		c.advance()
		operand := c.bake(c.parseUnaryDesc())
		res := c.allocTemp()
		c.emit(bytecode.UNEG)
		c.emitByte(byte(res))
		c.emitByte(byte(operand))
		return desc{kind: descRegister, reg: res}
	case scanner.TokenInc, scanner.TokenDec:
		c.advance()
		target := c.parseUnaryDesc()
		reg := c.bake(target)
		op := bytecode.PREINC
		if t.Type == scanner.TokenDec {
			op = bytecode.PREDEC
		}
		c.emit(op)
		c.emitByte(byte(reg))
		c.emitByte(byte(reg))
		c.storeInto(target, reg)
		return desc{kind: descRegister, reg: reg}
	default:
		return c.parsePostfixDesc()
	}
}

func (c *Compiler) parsePostfixDesc() desc {
	d := c.parsePrimaryDesc()
	for {
		t := c.peek()
		switch t.Type {
		case scanner.TokenDot:
			c.advance()
			nameTok := c.expect(scanner.TokenIdentifier, "property name")
			a := c.atoms.Atomize(nameTok.Text)
			if c.peek().Type == scanner.TokenLParen {
				base := c.bake(d)
				args := c.parseArgList()
				c.emit(bytecode.CALLPROP)
				c.emitByte(byte(base))
				c.emitAtomRK(a)
				c.emitByte(byte(len(args)))
				d = desc{kind: descRegister, reg: c.popResult()}
				continue
			}
			d = desc{kind: descPropRef, reg2: c.bake(d), name: a}
		case scanner.TokenLBracket:
			c.advance()
			idxReg := c.bake(c.parseTernaryDesc())
			c.expect(scanner.TokenRBracket, "']'")
			d = desc{kind: descEltRef, reg2: c.bake(d), keyReg: idxReg}
		case scanner.TokenLParen:
			base := c.bake(d)
			args := c.parseArgList()
			undef := c.addConstant(value.Undef)
			c.emit(bytecode.CALL)
			c.emitByte(byte(base))
			c.emitByte(undef)
			c.emitByte(byte(len(args)))
			d = desc{kind: descRegister, reg: c.popResult()}
		case scanner.TokenInc, scanner.TokenDec:
			c.advance()
			reg := c.bake(d)
			res := c.allocTemp()
			op := bytecode.POSTINC
			if t.Type == scanner.TokenDec {
				op = bytecode.POSTDEC
			}
			c.emit(op)
			c.emitByte(byte(res))
			c.emitByte(byte(reg))
			c.storeInto(d, reg)
			d = desc{kind: descRegister, reg: res}
		default:
			return d
		}
	}
}

// parseArgList parses "(" expr-list ")" and pushes each argument with
// PUSH so CALL/CALLPROP/NEW can pop NPARAMS values off the value stack.
func (c *Compiler) parseArgList() []int {
	c.expect(scanner.TokenLParen, "'('")
	var regs []int
	for c.peek().Type != scanner.TokenRParen && c.peek().Type != scanner.TokenEOF {
		r := c.parseExpr()
		regs = append(regs, r)
		c.emit(bytecode.PUSH)
		c.emitByte(byte(r))
		if c.peek().Type != scanner.TokenComma {
			break
		}
		c.advance()
	}
	c.expect(scanner.TokenRParen, "')'")
	return regs
}

// popResult allocates a fresh register and emits POP to take the top of
// the value stack (a CALL/CALLPROP/NEW result) into it.
func (c *Compiler) popResult() int {
	r := c.allocTemp()
	c.emit(bytecode.POP)
	c.emitByte(byte(r))
	return r
}

func (c *Compiler) emitAtomRK(a atom.Atom) {
	if int(a) <= 0xFF {
		c.emitByte(bytecode.ConstAtomShort)
		c.emitByte(byte(a))
	} else {
		c.emitByte(bytecode.ConstAtomLong)
		c.fn.code = bytecode.PutUN(c.fn.code, uint16(a))
	}
}

func (c *Compiler) parsePrimaryDesc() desc {
	t := c.peek()
	switch t.Type {
	case scanner.TokenInteger:
		c.advance()
		return desc{kind: descConstant, cval: value.NewInt(t.IntVal)}
	case scanner.TokenFloat:
		c.advance()
		return desc{kind: descConstant, cval: value.NewFloat(t.FloatVal)}
	case scanner.TokenTrue:
		c.advance()
		return desc{kind: descConstant, cval: value.NewBool(true)}
	case scanner.TokenFalse:
		c.advance()
		return desc{kind: descConstant, cval: value.NewBool(false)}
	case scanner.TokenNull:
		c.advance()
		return desc{kind: descConstant, cval: value.Nul}
	case scanner.TokenUndefined:
		c.advance()
		return desc{kind: descConstant, cval: value.Undef}
	case scanner.TokenString:
		c.advance()
		id := c.internStringLiteral(t.StrVal)
		return desc{kind: descConstant, cval: value.NewStringLiteral(id)}
	case scanner.TokenThis:
		c.advance()
		return desc{kind: descThis}
	case scanner.TokenLParen:
		c.advance()
		d := c.parseTernaryDesc()
		c.expect(scanner.TokenRParen, "')'")
		return d
	case scanner.TokenNew:
		c.advance()
		nameTok := c.expect(scanner.TokenIdentifier, "constructor name")
		ctor := c.bake(c.resolveIdentifier(nameTok.Text))
		args := c.parseArgList()
		c.emit(bytecode.NEW)
		c.emitByte(byte(ctor))
		c.emitByte(byte(len(args)))
		return desc{kind: descRegister, reg: c.popResult()}
	case scanner.TokenLBracket:
		return c.parseArrayLiteral()
	case scanner.TokenLBrace:
		return c.parseObjectLiteral()
	case scanner.TokenIdentifier:
		c.advance()
		return c.resolveIdentifier(t.Text)
	case scanner.TokenFunction:
		c.advance()
		rk := c.compileFunctionLiteral(atom.NoAtom)
		clo := c.allocTemp()
		c.emit(bytecode.CLOSURE)
		c.emitByte(byte(clo))
		c.emitByte(rk)
		return desc{kind: descRegister, reg: clo}
	default:
		c.addError("unexpected token %q in expression", t.Text)
		c.advance()
		return desc{kind: descConstant, cval: value.Undef}
	}
}

// parseArrayLiteral parses "[" expr-list "]" into a fresh array object,
// appending each element in source order with APPENDELT.
func (c *Compiler) parseArrayLiteral() desc {
	c.advance()
	r := c.allocTemp()
	c.emit(bytecode.LOADLITA)
	c.emitByte(byte(r))
	for c.peek().Type != scanner.TokenRBracket && c.peek().Type != scanner.TokenEOF {
		v := c.parseExpr()
		c.emit(bytecode.APPENDELT)
		c.emitByte(byte(r))
		c.emitByte(byte(v))
		if c.peek().Type != scanner.TokenComma {
			break
		}
		c.advance()
	}
	c.expect(scanner.TokenRBracket, "']'")
	return desc{kind: descRegister, reg: r}
}

// parseObjectLiteral parses "{" (key ":" expr)-list "}" into a fresh
// object, setting each property in source order with APPENDPROP. Keys
// are either identifiers or string literals.
func (c *Compiler) parseObjectLiteral() desc {
	c.advance()
	r := c.allocTemp()
	c.emit(bytecode.LOADLITO)
	c.emitByte(byte(r))
	for c.peek().Type != scanner.TokenRBrace && c.peek().Type != scanner.TokenEOF {
		keyTok := c.advance()
		var name string
		switch keyTok.Type {
		case scanner.TokenIdentifier:
			name = keyTok.Text
		case scanner.TokenString:
			name = keyTok.StrVal
		default:
			c.addError("unexpected token %q in object literal key", keyTok.Text)
		}
		c.expect(scanner.TokenColon, "':'")
		v := c.parseExpr()
		a := c.atoms.Atomize(name)
		c.emit(bytecode.APPENDPROP)
		c.emitByte(byte(r))
		c.emitAtomRK(a)
		c.emitByte(byte(v))
		if c.peek().Type != scanner.TokenComma {
			break
		}
		c.advance()
	}
	c.expect(scanner.TokenRBrace, "'}'")
	return desc{kind: descRegister, reg: r}
}

func (c *Compiler) resolveIdentifier(name string) desc {
	a := c.atoms.Atomize(name)
	if reg, ok := resolveLocal(c.fn, a); ok {
		return desc{kind: descLocal, reg: reg}
	}
	if idx, ok := resolveUpValue(c.fn, a); ok {
		return desc{kind: descUpValue, name: a, upIdx: idx}
	}
	return desc{kind: descRefK, name: a}
}

// bake materializes d into a register, emitting the load instruction
// the descriptor implies (spec §4.3: "baking a descriptor emits the
// load instruction that materializes its value into a register").
func (c *Compiler) bake(d desc) int {
	switch d.kind {
	case descRegister, descLocal:
		return d.reg
	case descConstant:
		r := c.allocTemp()
		rk := c.addConstant(d.cval)
		c.emit(bytecode.MOVE)
		c.emitByte(byte(r))
		c.emitByte(rk)
		return r
	case descThis:
		r := c.allocTemp()
		c.emit(bytecode.LOADTHIS)
		c.emitByte(byte(r))
		return r
	case descRefK:
		r := c.allocTemp()
		c.emit(bytecode.LOADREFK)
		c.emitByte(byte(r))
		c.emitAtomRK(d.name)
		return r
	case descUpValue:
		r := c.allocTemp()
		c.emit(bytecode.LOADUP)
		c.emitByte(byte(r))
		c.emitByte(byte(d.upIdx))
		return r
	case descPropRef:
		r := c.allocTemp()
		c.emit(bytecode.LOADPROP)
		c.emitByte(byte(r))
		c.emitByte(byte(d.reg2))
		c.emitAtomRK(d.name)
		return r
	case descEltRef:
		r := c.allocTemp()
		c.emit(bytecode.LOADELT)
		c.emitByte(byte(r))
		c.emitByte(byte(d.reg2))
		c.emitByte(byte(d.keyReg))
		return r
	default:
		c.addError("internal: cannot bake descriptor kind %d", d.kind)
		return c.allocTemp()
	}
}

// storeInto emits the store instruction implied by d's kind, writing
// valReg's value into the target the descriptor names, and returns
// valReg (assignment is itself an expression).
func (c *Compiler) storeInto(d desc, valReg int) int {
	switch d.kind {
	case descLocal:
		c.emit(bytecode.MOVE)
		c.emitByte(byte(d.reg))
		c.emitByte(byte(valReg))
	case descRefK:
		c.emit(bytecode.STOREFK)
		c.emitAtomRK(d.name)
		c.emitByte(byte(valReg))
	case descPropRef:
		c.emit(bytecode.STOPROP)
		c.emitByte(byte(d.reg2))
		c.emitAtomRK(d.name)
		c.emitByte(byte(valReg))
	case descEltRef:
		c.emit(bytecode.STOELT)
		c.emitByte(byte(d.reg2))
		c.emitByte(byte(d.keyReg))
		c.emitByte(byte(valReg))
	case descUpValue:
		c.emit(bytecode.STOREUP)
		c.emitByte(byte(d.upIdx))
		c.emitByte(byte(valReg))
	default:
		c.addError("invalid assignment target")
	}
	return valReg
}

func (c *Compiler) internStringLiteral(s string) value.StringLiteralID {
	for i, lit := range c.literalPool {
		if lit == s {
			return value.StringLiteralID(i)
		}
	}
	id := value.StringLiteralID(len(c.literalPool))
	c.literalPool = append(c.literalPool, s)
	return id
}
