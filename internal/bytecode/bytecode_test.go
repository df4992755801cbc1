package bytecode

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := Encode(RETI, 3)
	op, imm := Decode(b)
	if op != RETI || imm != 3 {
		t.Fatalf("Decode(Encode(RETI, 3)) = (%v, %d), want (RETI, 3)", op, imm)
	}
}

func TestSNRoundTrip(t *testing.T) {
	var code []byte
	code = PutSN(code, -12345)
	if got := ReadSN(code, 0); got != -12345 {
		t.Fatalf("ReadSN = %d, want -12345", got)
	}
}

func TestJumpDeltaAppliesSpecSkew(t *testing.T) {
	if got := JumpDelta(JMP, 10); got != 7 {
		t.Fatalf("JumpDelta(JMP, 10) = %d, want 7", got)
	}
	if got := JumpDelta(JT, 10); got != 6 {
		t.Fatalf("JumpDelta(JT, 10) = %d, want 6", got)
	}
}

func TestRKSizeForSentinels(t *testing.T) {
	code := []byte{ConstAtomShort, 5}
	if got := RKSize(code, 0); got != 2 {
		t.Fatalf("RKSize(AtomShort) = %d, want 2", got)
	}
	code2 := []byte{ConstAtomLong, 0, 5}
	if got := RKSize(code2, 0); got != 3 {
		t.Fatalf("RKSize(AtomLong) = %d, want 3", got)
	}
	code3 := []byte{5} // plain register
	if got := RKSize(code3, 0); got != 1 {
		t.Fatalf("RKSize(register) = %d, want 1", got)
	}
}

func TestLineForIP(t *testing.T) {
	lt := LineTable{{StartIP: 0, Line: 1}, {StartIP: 10, Line: 2}, {StartIP: 20, Line: 5}}
	if got := lt.LineForIP(15); got != 2 {
		t.Fatalf("LineForIP(15) = %d, want 2", got)
	}
	if got := lt.LineForIP(25); got != 5 {
		t.Fatalf("LineForIP(25) = %d, want 5", got)
	}
}

func TestEveryOpcodeFitsSixBits(t *testing.T) {
	for op := range OpCodeNames {
		if op&^OpCodeMask != 0 {
			t.Fatalf("opcode %v = %d does not fit in 6 bits", op, op)
		}
	}
}
