package compiler

import (
	"github.com/m8rscript/m8r/internal/atom"
	"github.com/m8rscript/m8r/internal/bytecode"
	"github.com/m8rscript/m8r/internal/diag"
	"github.com/m8rscript/m8r/internal/object"
	"github.com/m8rscript/m8r/internal/scanner"
	"github.com/m8rscript/m8r/internal/value"
)

// Compile parses the entire token stream as a sequence of statements and
// returns the compiled top-level Function plus the program-wide string
// literal pool. Codegen short-circuits once an error has been recorded
// (spec §4.3: "emits no bytecode once an error is recorded").
func (c *Compiler) Compile() (*object.Function, []string, diag.ParseErrorList) {
	c.beginScope()
	for c.peek().Type != scanner.TokenEOF {
		if c.errs.HasErrors() {
			break
		}
		c.parseStatement()
	}
	c.endScope()
	c.emit(bytecode.END)
	fn := c.finishFunction()
	return fn, c.literalPool, c.errs
}

func (c *Compiler) parseStatement() {
	if c.errs.HasErrors() {
		return
	}
	switch c.peek().Type {
	case scanner.TokenLBrace:
		c.parseBlock()
	case scanner.TokenVar:
		c.parseVarDecl()
	case scanner.TokenIf:
		c.parseIf()
	case scanner.TokenWhile:
		c.parseWhile()
	case scanner.TokenDo:
		c.parseDoWhile()
	case scanner.TokenFor:
		c.parseFor()
	case scanner.TokenBreak:
		c.parseBreak()
	case scanner.TokenContinue:
		c.parseContinue()
	case scanner.TokenReturn:
		c.parseReturn()
	case scanner.TokenFunction:
		c.parseFunctionDecl()
	case scanner.TokenSwitch:
		c.parseSwitch()
	case scanner.TokenSemicolon:
		c.advance()
	default:
		c.parseExprStatement()
	}
}

// parseSwitch lowers to a sequential chain of per-case equality tests
// against the switch subject: each case's guard skips to the next
// case's guard on mismatch, and falls through into its body followed
// by a jump to the end (case bodies do not fall through to the next
// case, unlike C). default, if present, must be the last arm: it runs
// unconditionally once every preceding guard has failed.
func (c *Compiler) parseSwitch() {
	c.advance()
	c.expect(scanner.TokenLParen, "'('")
	subject := c.parseExpr()
	c.expect(scanner.TokenRParen, "')'")
	c.expect(scanner.TokenLBrace, "'{'")

	c.fn.loops = append(c.fn.loops, loopCtx{})

	var endJumps []jumpSite

	for c.peek().Type == scanner.TokenCase || c.peek().Type == scanner.TokenDefault {
		isDefault := c.peek().Type == scanner.TokenDefault
		c.advance()

		if isDefault {
			c.expect(scanner.TokenColon, "':'")
			for c.peek().Type != scanner.TokenCase && c.peek().Type != scanner.TokenDefault &&
				c.peek().Type != scanner.TokenRBrace && c.peek().Type != scanner.TokenEOF {
				c.parseStatement()
			}
			endJumps = append(endJumps, c.emitJump(bytecode.JMP))
			continue
		}

		caseVal := c.parseExpr()
		eq := c.allocTemp()
		c.emit(bytecode.EQ)
		c.emitByte(byte(eq))
		c.emitByte(byte(subject))
		c.emitByte(byte(caseVal))
		skip := c.emitCondJump(bytecode.JF, byte(eq))
		c.expect(scanner.TokenColon, "':'")

		for c.peek().Type != scanner.TokenCase && c.peek().Type != scanner.TokenDefault &&
			c.peek().Type != scanner.TokenRBrace && c.peek().Type != scanner.TokenEOF {
			c.parseStatement()
		}
		endJumps = append(endJumps, c.emitJump(bytecode.JMP))
		c.matchJump(skip, -1)
	}
	c.expect(scanner.TokenRBrace, "'}'")

	for _, site := range endJumps {
		c.matchJump(site, -1)
	}

	loop := c.popLoop()
	for _, site := range loop.breakJumps {
		c.matchJump(site, -1)
	}
}

func (c *Compiler) parseBlock() {
	c.expect(scanner.TokenLBrace, "'{'")
	c.beginScope()
	for c.peek().Type != scanner.TokenRBrace && c.peek().Type != scanner.TokenEOF {
		if c.errs.HasErrors() {
			break
		}
		c.parseStatement()
	}
	c.endScope()
	c.expect(scanner.TokenRBrace, "'}'")
}

func (c *Compiler) parseVarDecl() {
	c.advance() // 'var'
	for {
		nameTok := c.expect(scanner.TokenIdentifier, "variable name")
		a := c.atoms.Atomize(nameTok.Text)
		reg := c.declareLocal(a)
		if c.peek().Type == scanner.TokenAssign {
			c.advance()
			val := c.parseExpr()
			c.emit(bytecode.MOVE)
			c.emitByte(byte(reg))
			c.emitByte(byte(val))
		}
		if c.peek().Type != scanner.TokenComma {
			break
		}
		c.advance()
	}
	c.consumeSemicolon()
}

func (c *Compiler) parseExprStatement() {
	// parseExpr always bakes its result into a register (CALL/CALLPROP/
	// NEW pop their own result there too); an expression statement
	// simply discards that register without touching the value stack.
	c.parseExpr()
	c.consumeSemicolon()
}

func (c *Compiler) consumeSemicolon() {
	if c.peek().Type == scanner.TokenSemicolon {
		c.advance()
	}
}

func (c *Compiler) parseIf() {
	c.advance()
	c.expect(scanner.TokenLParen, "'('")
	cond := c.parseExpr()
	c.expect(scanner.TokenRParen, "')'")
	elseSite := c.emitCondJump(bytecode.JF, byte(cond))
	c.parseStatement()
	if c.peek().Type == scanner.TokenElse {
		endSite := c.emitJump(bytecode.JMP)
		c.matchJump(elseSite, -1)
		c.advance()
		c.parseStatement()
		c.matchJump(endSite, -1)
	} else {
		c.matchJump(elseSite, -1)
	}
}

func (c *Compiler) parseWhile() {
	c.advance()
	start := c.label()
	c.expect(scanner.TokenLParen, "'('")
	cond := c.parseExpr()
	c.expect(scanner.TokenRParen, "')'")
	exitSite := c.emitCondJump(bytecode.JF, byte(cond))

	c.fn.loops = append(c.fn.loops, loopCtx{continueIP: start, hasContinueIP: true})
	c.parseStatement()
	loop := c.popLoop()

	back := c.emitJump(bytecode.JMP)
	c.matchJump(back, start)
	c.matchJump(exitSite, -1)
	c.patchLoopExits(loop)
}

func (c *Compiler) parseDoWhile() {
	c.advance()
	start := c.label()
	c.fn.loops = append(c.fn.loops, loopCtx{})
	c.parseStatement()
	loop := c.popLoop()

	contIP := c.label()
	c.expect(scanner.TokenWhile, "'while'")
	c.expect(scanner.TokenLParen, "'('")
	cond := c.parseExpr()
	c.expect(scanner.TokenRParen, "')'")
	c.consumeSemicolon()

	back := c.emitCondJump(bytecode.JT, byte(cond))
	c.matchJump(back, start)

	for _, site := range loop.continueJumps {
		c.matchJump(site, contIP)
	}
	for _, site := range loop.breakJumps {
		c.matchJump(site, -1)
	}
}

func (c *Compiler) parseFor() {
	c.advance()
	c.expect(scanner.TokenLParen, "'('")
	c.beginScope()

	if c.peek().Type == scanner.TokenVar {
		c.parseVarDecl()
	} else if c.peek().Type != scanner.TokenSemicolon {
		c.parseExpr()
		c.consumeSemicolon()
	} else {
		c.advance()
	}

	condStart := c.label()
	var exitSite jumpSite
	hasExit := false
	if c.peek().Type != scanner.TokenSemicolon {
		cond := c.parseExpr()
		exitSite = c.emitCondJump(bytecode.JF, byte(cond))
		hasExit = true
	}
	c.expect(scanner.TokenSemicolon, "';'")

	// Step is deferred: collected now into a side buffer, spliced after
	// the body so "continue" can jump straight to it (spec §4.3's
	// start_deferred/emit_deferred, used for for-iterator steps).
	var step []byte
	hasStep := false
	if c.peek().Type != scanner.TokenRParen {
		main := c.startDeferred()
		c.parseExpr()
		step = c.stopDeferred(main)
		hasStep = true
	}
	c.expect(scanner.TokenRParen, "')'")

	c.fn.loops = append(c.fn.loops, loopCtx{})
	c.parseStatement()
	loop := c.popLoop()

	stepStart := c.label()
	if hasStep {
		c.spliceDeferred(step)
	}
	back := c.emitJump(bytecode.JMP)
	c.matchJump(back, condStart)

	if hasExit {
		c.matchJump(exitSite, -1)
	}
	for _, site := range loop.continueJumps {
		c.matchJump(site, stepStart)
	}
	for _, site := range loop.breakJumps {
		c.matchJump(site, -1)
	}

	c.endScope()
}

func (c *Compiler) popLoop() loopCtx {
	n := len(c.fn.loops)
	loop := c.fn.loops[n-1]
	c.fn.loops = c.fn.loops[:n-1]
	return loop
}

func (c *Compiler) patchLoopExits(loop loopCtx) {
	for _, site := range loop.breakJumps {
		c.matchJump(site, -1)
	}
}

func (c *Compiler) parseBreak() {
	c.advance()
	c.consumeSemicolon()
	if len(c.fn.loops) == 0 {
		c.addError("'break' outside of a loop")
		return
	}
	site := c.emitJump(bytecode.JMP)
	top := len(c.fn.loops) - 1
	c.fn.loops[top].breakJumps = append(c.fn.loops[top].breakJumps, site)
}

func (c *Compiler) parseContinue() {
	c.advance()
	c.consumeSemicolon()
	if len(c.fn.loops) == 0 {
		c.addError("'continue' outside of a loop")
		return
	}
	top := len(c.fn.loops) - 1
	if c.fn.loops[top].hasContinueIP {
		site := c.emitJump(bytecode.JMP)
		c.matchJump(site, c.fn.loops[top].continueIP)
		return
	}
	site := c.emitJump(bytecode.JMP)
	c.fn.loops[top].continueJumps = append(c.fn.loops[top].continueJumps, site)
}

func (c *Compiler) parseReturn() {
	c.advance()
	if c.peek().Type == scanner.TokenSemicolon || c.peek().Type == scanner.TokenRBrace {
		c.consumeSemicolon()
		c.emitImm(bytecode.RETI, 0)
		return
	}
	val := c.parseExpr()
	c.consumeSemicolon()
	c.emit(bytecode.PUSH)
	c.emitByte(byte(val))
	c.emitImm(bytecode.RETI, 1)
}

// parseFunctionDecl compiles "function name(params) { body }" as a
// nested funcState, then assigns the resulting closure to a local
// declared in the enclosing scope (spec §4.3's closures & up-values).
func (c *Compiler) parseFunctionDecl() {
	c.advance()
	nameTok := c.expect(scanner.TokenIdentifier, "function name")
	nameAtom := c.atoms.Atomize(nameTok.Text)
	reg := c.declareLocal(nameAtom)

	rk := c.compileFunctionLiteral(nameAtom)
	clo := c.allocTemp()
	c.emit(bytecode.CLOSURE)
	c.emitByte(byte(clo))
	c.emitByte(rk)
	c.emit(bytecode.MOVE)
	c.emitByte(byte(reg))
	c.emitByte(byte(clo))
}

// compileFunctionLiteral parses "(params) { body }" into a child
// funcState and returns an RK operand addressing the resulting
// *object.Function in the enclosing function's constant pool.
func (c *Compiler) compileFunctionLiteral(nameAtom atom.Atom) byte {
	parent := c.fn
	c.fn = newFuncState(parent, parent.emitLines)

	c.expect(scanner.TokenLParen, "'('")
	for c.peek().Type != scanner.TokenRParen && c.peek().Type != scanner.TokenEOF {
		p := c.expect(scanner.TokenIdentifier, "parameter name")
		c.declareLocal(c.atoms.Atomize(p.Text))
		c.fn.formalParamCount++
		if c.peek().Type != scanner.TokenComma {
			break
		}
		c.advance()
	}
	c.expect(scanner.TokenRParen, "')'")

	c.beginScope()
	c.parseBlock2()
	c.endScope()
	c.emitImm(bytecode.RETI, 0)

	inner := c.finishFunction()
	inner.NameAtom = nameAtom
	c.fn = parent
	return c.addConstant(value.NewFunctionTemplate(inner))
}

// parseBlock2 parses a function body's "{ ... }" without the Compile
// entry point's END terminator (functions end via RET/RETI, not END).
func (c *Compiler) parseBlock2() {
	c.expect(scanner.TokenLBrace, "'{'")
	for c.peek().Type != scanner.TokenRBrace && c.peek().Type != scanner.TokenEOF {
		if c.errs.HasErrors() {
			break
		}
		c.parseStatement()
	}
	c.expect(scanner.TokenRBrace, "'}'")
}
