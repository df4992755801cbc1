package scanner

import "testing"

func tokenTypes(src string) []TokenType {
	s := New(src)
	var types []TokenType
	for {
		tok := s.GetToken()
		s.RetireToken()
		types = append(types, tok.Type)
		if tok.Type == TokenEOF {
			break
		}
	}
	return types
}

func TestIdentifiersAndKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"foo", TokenIdentifier},
		{"_bar", TokenIdentifier},
		{"$elt", TokenIdentifier},
		{"var", TokenVar},
		{"function", TokenFunction},
		{"class", TokenClass},
		{"constructor", TokenConstructor},
		{"if", TokenIf},
		{"else", TokenElse},
		{"while", TokenWhile},
		{"for", TokenFor},
		{"switch", TokenSwitch},
		{"case", TokenCase},
		{"return", TokenReturn},
		{"true", TokenTrue},
		{"false", TokenFalse},
		{"null", TokenNull},
		{"undefined", TokenUndefined},
		{"this", TokenThis},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := New(tt.input)
			tok := s.GetToken()
			if tok.Type != tt.want {
				t.Errorf("Scan(%q) = %v, want %v", tt.input, tok.Type, tt.want)
			}
		})
	}
}

func TestIntegerLiteral(t *testing.T) {
	s := New("42")
	tok := s.GetToken()
	if tok.Type != TokenInteger || tok.IntVal != 42 {
		t.Fatalf("got %v %d, want INTEGER 42", tok.Type, tok.IntVal)
	}
}

func TestHexIntegerLiteral(t *testing.T) {
	s := New("0x1F")
	tok := s.GetToken()
	if tok.Type != TokenInteger || tok.IntVal != 31 {
		t.Fatalf("got %v %d, want INTEGER 31", tok.Type, tok.IntVal)
	}
}

func TestFloatLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"3.14", 3.14},
		{"1e10", 1e10},
		{"2.5e-3", 2.5e-3},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := New(tt.input)
			tok := s.GetToken()
			if tok.Type != TokenFloat || tok.FloatVal != tt.want {
				t.Fatalf("got %v %v, want FLOAT %v", tok.Type, tok.FloatVal, tt.want)
			}
		})
	}
}

func TestStringEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"quote\""`, `quote"`},
		{`"\x41\x42"`, "AB"},
		{`"\101\102"`, "AB"},
		{`'single'`, "single"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := New(tt.input)
			tok := s.GetToken()
			if tok.Type != TokenString || tok.StrVal != tt.want {
				t.Fatalf("got %v %q, want STRING %q", tok.Type, tok.StrVal, tt.want)
			}
		})
	}
}

func TestMaximalMunchOperators(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{">>=", []TokenType{TokenShrEq, TokenEOF}},
		{">>", []TokenType{TokenShr, TokenEOF}},
		{">", []TokenType{TokenGt, TokenEOF}},
		{"===", []TokenType{TokenEq, TokenEOF}},
		{"==", []TokenType{TokenEq, TokenEOF}},
		{"=", []TokenType{TokenAssign, TokenEOF}},
		{"&&", []TokenType{TokenLogicalAnd, TokenEOF}},
		{"++", []TokenType{TokenInc, TokenEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := tokenTypes(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenTypes(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("tokenTypes(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLineCommentSkipped(t *testing.T) {
	got := tokenTypes("1 // comment\n2")
	want := []TokenType{TokenInteger, TokenInteger, TokenEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBlockCommentSkipped(t *testing.T) {
	got := tokenTypes("1 /* multi\nline */ 2")
	want := []TokenType{TokenInteger, TokenInteger, TokenEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLineTrackingAcrossComment(t *testing.T) {
	s := New("1\n// c\n2")
	s.GetToken()
	s.RetireToken()
	tok := s.GetToken()
	if tok.Pos.Line != 3 {
		t.Fatalf("line = %d, want 3", tok.Pos.Line)
	}
}

func TestLookaheadDoesNotConsumeUntilRetired(t *testing.T) {
	s := New("1 2")
	first := s.GetToken()
	again := s.GetToken()
	if first.Type != again.Type || first.IntVal != again.IntVal {
		t.Fatalf("GetToken without retire changed: %v vs %v", first, again)
	}
	s.RetireToken()
	second := s.GetToken()
	if second.IntVal != 2 {
		t.Fatalf("after retire, got %d, want 2", second.IntVal)
	}
}

func TestSequenceOfOperatorsAndDelimiters(t *testing.T) {
	got := tokenTypes("a.b(1,2);")
	want := []TokenType{
		TokenIdentifier, TokenDot, TokenIdentifier, TokenLParen,
		TokenInteger, TokenComma, TokenInteger, TokenRParen, TokenSemicolon, TokenEOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("token[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
