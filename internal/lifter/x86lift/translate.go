package x86lift

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/lifter"
)

// isBlockEnd reports whether in is a control-flow instruction that
// must be the last instruction lifted into a Block (spec §4.7: a
// block ends at the first branch/call/return).
func isBlockEnd(in *insn) bool {
	if in.twoByte {
		switch in.opcode2 {
		case 0x05: // SYSCALL
			return true
		}
		if in.opcode2 >= 0x80 && in.opcode2 <= 0x8f { // Jcc rel32
			return true
		}
		return false
	}
	switch in.opcode {
	case 0xe8, 0xe9, 0xeb: // CALL/JMP rel
		return true
	case 0xc2, 0xc3: // RET
		return true
	}
	if in.opcode >= 0x70 && in.opcode <= 0x7f { // Jcc rel8
		return true
	}
	if in.opcode == 0xff && in.hasModRM && (in.opExt == 2 || in.opExt == 3 || in.opExt == 4 || in.opExt == 5) {
		return true // CALL/JMP r/m (near and far forms)
	}
	return false
}

// translate turns one decoded insn into its pcode ops.
func translate(in *insn) ([]lifter.PcodeOp, error) {
	ib := &instrBuilder{}
	if err := translateInto(ib, in); err != nil {
		return nil, err
	}
	return ib.ops, nil
}

func translateInto(ib *instrBuilder, in *insn) error {
	if in.twoByte {
		return translateTwoByte(ib, in)
	}
	op := in.opcode

	if isAccumImmALU(op) {
		size := accumSize(op, in)
		dst := gpVarnode(0, size) // AL or eAX/RAX
		imm := constVn(uint64(in.imm), size)
		result := aluCompute(ib, aluKind(op), dst, imm, size)
		if aluKind(op) != 7 { // CMP does not store
			ib.copyTo(result, dst)
		}
		return nil
	}

	switch {
	case op <= 0x3d && in.hasModRM && (op&0xc6) != 0x06 && aluOpcodeInTable(op):
		return translateALUModRM(ib, in)
	case op == 0x84 || op == 0x85: // TEST Eb,Gb / Ev,Gv
		size := opSizeByte(op, in)
		a := loadOperand(ib, in, size)
		g := gpVarnode(in.regField, size)
		r := ib.bin(lifter.OpIntAnd, a, g, size)
		setFlagsLogic(ib, r)
		return nil
	case op == 0x88 || op == 0x89: // MOV Eb,Gb / Ev,Gv
		size := opSizeByte(op, in)
		g := gpVarnode(in.regField, size)
		storeOperand(ib, in, size, g)
		return nil
	case op == 0x8a || op == 0x8b: // MOV Gb,Eb / Gv,Ev
		size := opSizeByte(op, in)
		v := loadOperand(ib, in, size)
		writeReg(ib, in.regField, size, v)
		return nil
	case op == 0x8d: // LEA Gv, M
		if !in.isMem {
			return fmt.Errorf("x86lift: LEA with a register operand at 0x%x", in.pc)
		}
		addr := effectiveAddress(ib, in)
		writeReg(ib, in.regField, in.opSize, truncateAddr(ib, addr, in.opSize))
		return nil
	case op == 0xc6: // MOV Eb, imm8
		storeOperand(ib, in, 1, constVn(uint64(in.imm), 1))
		return nil
	case op == 0xc7: // MOV Ev, imm32 (sign-extended)
		storeOperand(ib, in, in.opSize, constVn(uint64(in.imm), in.opSize))
		return nil
	case op >= 0xb8 && op <= 0xbf: // MOV r, imm
		size := uint32(4)
		if in.rexW {
			size = 8
		}
		writeReg(ib, in.rm, size, constVn(uint64(in.imm), size))
		return nil
	case op >= 0x50 && op <= 0x57: // PUSH r64
		pushVal(ib, gpVarnode(in.rm, 8))
		return nil
	case op >= 0x58 && op <= 0x5f: // POP r64
		v := popVal(ib, 8)
		writeReg(ib, in.rm, 8, v)
		return nil
	case op == 0x68: // PUSH imm32 (sign-extended to 64 bits)
		pushVal(ib, constVn(uint64(in.imm), 8))
		return nil
	case op == 0x6a: // PUSH imm8 (sign-extended to 64 bits)
		pushVal(ib, constVn(uint64(in.imm), 8))
		return nil
	case op == 0x80, op == 0x81, op == 0x83: // group1 ALU, Eb/Ev, imm
		return translateGroup1(ib, in)
	case op == 0xc0, op == 0xc1, op == 0xd0, op == 0xd1, op == 0xd2, op == 0xd3:
		return translateGroup2(ib, in)
	case op == 0xf6, op == 0xf7:
		return translateGroup3(ib, in)
	case op == 0xfe: // INC/DEC Eb
		return translateIncDecByte(ib, in)
	case op == 0xff:
		return translateGroup5(ib, in)
	case op == 0xe8: // CALL rel32
		target := in.pc + uint64(in.length) + uint64(int64(in.imm))
		ib.emit(lifter.OpCall, []lifter.Varnode{constVn(target, 8)}, nil)
		return nil
	case op == 0xe9: // JMP rel32
		target := in.pc + uint64(in.length) + uint64(int64(in.imm))
		ib.emit(lifter.OpBranch, []lifter.Varnode{constVn(target, 8)}, nil)
		return nil
	case op == 0xeb: // JMP rel8
		target := in.pc + uint64(in.length) + uint64(int64(in.imm))
		ib.emit(lifter.OpBranch, []lifter.Varnode{constVn(target, 8)}, nil)
		return nil
	case op >= 0x70 && op <= 0x7f: // Jcc rel8
		target := in.pc + uint64(in.length) + uint64(int64(in.imm))
		cond := condCode(ib, int(op&0x0f))
		ib.emit(lifter.OpCBranch, []lifter.Varnode{constVn(target, 8), cond}, nil)
		return nil
	case op == 0xc3: // RET
		return translateRet(ib, 0)
	case op == 0xc2: // RET imm16
		return translateRet(ib, uint64(in.imm))
	case op == 0xc9: // LEAVE
		translateLeave(ib)
		return nil
	case op == 0x90: // NOP
		return nil
	case op == 0x98: // CDQE (only REX.W form supported)
		if !in.rexW {
			return fmt.Errorf("x86lift: 32-bit CBW/CWDE at 0x%x unsupported (16-bit operands not modeled)", in.pc)
		}
		eax := gpVarnode(0, 4)
		rax := gpVarnode(0, 8)
		ib.unTo(lifter.OpIntSext, eax, 8, rax)
		return nil
	case op == 0x99: // CQO
		if !in.rexW {
			return fmt.Errorf("x86lift: 32-bit CDQ at 0x%x unsupported (16-bit operands not modeled)", in.pc)
		}
		rax := gpVarnode(0, 8)
		signExt := ib.bin(lifter.OpIntSRight, rax, constVn(63, 8), 8)
		writeReg(ib, 2, 8, signExt)
		return nil
	}
	return fmt.Errorf("x86lift: unsupported opcode 0x%02x at 0x%x", op, in.pc)
}

func translateTwoByte(ib *instrBuilder, in *insn) error {
	switch {
	case in.opcode2 == 0x05: // SYSCALL
		return fmt.Errorf("x86lift: SYSCALL at 0x%x unsupported: the syscall number lives in RAX at run time, but CALLOTHER's dispatch key is fixed at lift time", in.pc)
	case in.opcode2 >= 0x80 && in.opcode2 <= 0x8f: // Jcc rel32
		target := in.pc + uint64(in.length) + uint64(int64(in.imm))
		cond := condCode(ib, int(in.opcode2&0x0f))
		ib.emit(lifter.OpCBranch, []lifter.Varnode{constVn(target, 8), cond}, nil)
		return nil
	case in.opcode2 == 0xb6: // MOVZX Gv, Eb
		v := loadOperand(ib, in, 1)
		writeReg(ib, in.regField, in.opSize, ib.zext(v, in.opSize))
		return nil
	case in.opcode2 == 0xbe: // MOVSX Gv, Eb
		v := loadOperand(ib, in, 1)
		writeReg(ib, in.regField, in.opSize, ib.sext(v, in.opSize))
		return nil
	case in.opcode2 == 0xb7, in.opcode2 == 0xbf:
		return fmt.Errorf("x86lift: MOVZX/MOVSX from a 16-bit operand at 0x%x unsupported", in.pc)
	}
	return fmt.Errorf("x86lift: unsupported two-byte opcode 0x0f 0x%02x at 0x%x", in.opcode2, in.pc)
}

// aluOpcodeInTable reports whether op is one of the thirty-two
// two-operand ALU ModRM forms (ADD..CMP, four addressing shapes each).
func aluOpcodeInTable(op byte) bool {
	low := op & 0x07
	return low <= 0x03
}

func translateALUModRM(ib *instrBuilder, in *insn) error {
	kind := aluKind(in.opcode)
	size := opSizeByte(in.opcode, in)
	dirGv := in.opcode&0x02 != 0 // Gv,Ev direction when set; Ev,Gv otherwise

	if dirGv {
		a := gpVarnode(in.regField, size)
		c := loadOperand(ib, in, size)
		result := aluCompute(ib, kind, a, c, size)
		if kind != 7 {
			writeReg(ib, in.regField, size, result)
		}
		return nil
	}
	a := loadOperand(ib, in, size)
	c := gpVarnode(in.regField, size)
	result := aluCompute(ib, kind, a, c, size)
	if kind != 7 {
		storeOperand(ib, in, size, result)
	}
	return nil
}

func translateGroup1(ib *instrBuilder, in *insn) error {
	kind := in.opExt
	if kind > 7 {
		return fmt.Errorf("x86lift: bad group1 /digit %d at 0x%x", kind, in.pc)
	}
	size := uint32(4)
	if in.opcode == 0x80 {
		size = 1
	} else if in.rexW {
		size = 8
	}
	a := loadOperand(ib, in, size)
	c := constVn(uint64(in.imm), size)
	result := aluCompute(ib, kind, a, c, size)
	if kind != 7 {
		storeOperand(ib, in, size, result)
	}
	return nil
}

func translateGroup2(ib *instrBuilder, in *insn) error {
	size := uint32(4)
	if in.rexW {
		size = 8
	}
	if in.opcode == 0xc0 || in.opcode == 0xd0 || in.opcode == 0xd2 {
		size = 1
	}
	a := loadOperand(ib, in, size)
	var count lifter.Varnode
	switch in.opcode {
	case 0xc0, 0xc1:
		count = constVn(uint64(in.imm)&0x3f, size)
	case 0xd0, 0xd1:
		count = constVn(1, size)
	case 0xd2, 0xd3:
		count = ib.zext(gpVarnode(1, 1), size) // CL
	}
	var result lifter.Varnode
	switch in.opExt {
	case 4, 6: // SHL/SAL
		result = ib.bin(lifter.OpIntLeft, a, count, size)
	case 5: // SHR
		result = ib.bin(lifter.OpIntRight, a, count, size)
	case 7: // SAR
		result = ib.bin(lifter.OpIntSRight, a, count, size)
	default:
		return fmt.Errorf("x86lift: unsupported group2 /digit %d (ROL/ROR/RCL/RCR) at 0x%x", in.opExt, in.pc)
	}
	setFlagsLogic(ib, result)
	storeOperand(ib, in, size, result)
	return nil
}

func translateGroup3(ib *instrBuilder, in *insn) error {
	size := uint32(4)
	if in.opcode == 0xf6 {
		size = 1
	} else if in.rexW {
		size = 8
	}
	a := loadOperand(ib, in, size)
	switch in.opExt {
	case 0, 1: // TEST
		c := constVn(uint64(in.imm), size)
		r := ib.bin(lifter.OpIntAnd, a, c, size)
		setFlagsLogic(ib, r)
		return nil
	case 2: // NOT
		r := ib.un(lifter.OpIntNegate, a, size)
		storeOperand(ib, in, size, r)
		return nil
	case 3: // NEG
		r := ib.un(lifter.OpInt2Comp, a, size)
		setFlagsSub(ib, constVn(0, size), a, r)
		storeOperand(ib, in, size, r)
		return nil
	}
	return fmt.Errorf("x86lift: unsupported group3 /digit %d (MUL/IMUL/DIV/IDIV) at 0x%x", in.opExt, in.pc)
}

func translateIncDecByte(ib *instrBuilder, in *insn) error {
	if in.opExt != 0 && in.opExt != 1 {
		return fmt.Errorf("x86lift: bad /digit %d for 0xfe at 0x%x", in.opExt, in.pc)
	}
	a := loadOperand(ib, in, 1)
	one := constVn(1, 1)
	var r lifter.Varnode
	if in.opExt == 0 {
		r = ib.bin(lifter.OpIntAdd, a, one, 1)
		setFlagsIncDec(ib, a, r, true)
	} else {
		r = ib.bin(lifter.OpIntSub, a, one, 1)
		setFlagsIncDec(ib, a, r, false)
	}
	storeOperand(ib, in, 1, r)
	return nil
}

func translateGroup5(ib *instrBuilder, in *insn) error {
	size := in.opSize
	switch in.opExt {
	case 0: // INC
		a := loadOperand(ib, in, size)
		r := ib.bin(lifter.OpIntAdd, a, constVn(1, size), size)
		setFlagsIncDec(ib, a, r, true)
		storeOperand(ib, in, size, r)
		return nil
	case 1: // DEC
		a := loadOperand(ib, in, size)
		r := ib.bin(lifter.OpIntSub, a, constVn(1, size), size)
		setFlagsIncDec(ib, a, r, false)
		storeOperand(ib, in, size, r)
		return nil
	case 2: // CALL r/m64 (near, indirect)
		target := loadOperand(ib, in, 8)
		ib.emit(lifter.OpCallInd, []lifter.Varnode{target}, nil)
		return nil
	case 3:
		return fmt.Errorf("x86lift: far CALL (0xff /3) at 0x%x unsupported", in.pc)
	case 4: // JMP r/m64 (near, indirect)
		target := loadOperand(ib, in, 8)
		ib.emit(lifter.OpBranchInd, []lifter.Varnode{target}, nil)
		return nil
	case 5:
		return fmt.Errorf("x86lift: far JMP (0xff /5) at 0x%x unsupported", in.pc)
	case 6: // PUSH r/m64
		v := loadOperand(ib, in, 8)
		pushVal(ib, v)
		return nil
	}
	return fmt.Errorf("x86lift: bad group5 /digit %d at 0x%x", in.opExt, in.pc)
}

// accumSize is the operand size of an accumulator-immediate ALU form:
// the low bit of the opcode picks byte vs the prevailing opSize.
func accumSize(op byte, in *insn) uint32 {
	if op&1 == 0 {
		return 1
	}
	return in.opSize
}

// opSizeByte picks byte-vs-opSize for the ALU/MOV/TEST ModRM forms,
// whose low opcode bit makes the same distinction as accumSize.
func opSizeByte(op byte, in *insn) uint32 {
	if op&1 == 0 {
		return 1
	}
	return in.opSize
}

func truncateAddr(ib *instrBuilder, addr lifter.Varnode, size uint32) lifter.Varnode {
	if size == 8 {
		return addr
	}
	out := ib.newTmp(size)
	ib.emit(lifter.OpSubpiece, []lifter.Varnode{addr, {Space: lifter.SpaceConst, Offset: 0, Size: 1}}, &out)
	return out
}

func pushVal(ib *instrBuilder, value lifter.Varnode) {
	rsp := gpVarnode(4, 8)
	newRsp := ib.bin(lifter.OpIntSub, rsp, constVn(8, 8), 8)
	ib.copyTo(newRsp, gpVarnode(4, 8))
	v8 := value
	if value.Size != 8 {
		v8 = ib.sext(value, 8)
	}
	ib.emit(lifter.OpStore, []lifter.Varnode{newRsp, v8}, nil)
}

func popVal(ib *instrBuilder, size uint32) lifter.Varnode {
	rsp := gpVarnode(4, 8)
	out := ib.newTmp(size)
	ib.emit(lifter.OpLoad, []lifter.Varnode{rsp}, &out)
	newRsp := ib.bin(lifter.OpIntAdd, rsp, constVn(8, 8), 8)
	ib.copyTo(newRsp, gpVarnode(4, 8))
	return out
}

func translateRet(ib *instrBuilder, extra uint64) error {
	retAddr := popVal(ib, 8)
	if extra != 0 {
		adjusted := ib.bin(lifter.OpIntAdd, gpVarnode(4, 8), constVn(extra, 8), 8)
		ib.copyTo(adjusted, gpVarnode(4, 8))
	}
	ib.emit(lifter.OpReturn, []lifter.Varnode{retAddr}, nil)
	return nil
}

func translateLeave(ib *instrBuilder) {
	rbp := gpVarnode(5, 8)
	ib.copyTo(rbp, gpVarnode(4, 8))
	popped := popVal(ib, 8)
	ib.copyTo(popped, gpVarnode(5, 8))
}

// aluCompute emits a, c combined by kind (the ADD..CMP group1 /digit
// numbering) and sets CF/OF/SF/ZF accordingly, returning the result
// (CMP's caller discards it rather than storing it back).
func aluCompute(ib *instrBuilder, kind int, a, c lifter.Varnode, size uint32) lifter.Varnode {
	switch kind {
	case 0: // ADD
		sum := ib.bin(lifter.OpIntAdd, a, c, size)
		setFlagsAdd(ib, a, c, sum)
		return sum
	case 1: // OR
		r := ib.bin(lifter.OpIntOr, a, c, size)
		setFlagsLogic(ib, r)
		return r
	case 2: // ADC: carry-in folded into the operand before add; CF/OF are
		// therefore an approximation of the true three-operand carry chain.
		cfWide := ib.zext(flagVarnode("CF"), size)
		widened := ib.bin(lifter.OpIntAdd, a, cfWide, size)
		sum := ib.bin(lifter.OpIntAdd, widened, c, size)
		setFlagsAdd(ib, a, c, sum)
		return sum
	case 3: // SBB, same approximation as ADC
		cfWide := ib.zext(flagVarnode("CF"), size)
		widened := ib.bin(lifter.OpIntSub, a, cfWide, size)
		diff := ib.bin(lifter.OpIntSub, widened, c, size)
		setFlagsSub(ib, a, c, diff)
		return diff
	case 4: // AND
		r := ib.bin(lifter.OpIntAnd, a, c, size)
		setFlagsLogic(ib, r)
		return r
	case 5: // SUB
		d := ib.bin(lifter.OpIntSub, a, c, size)
		setFlagsSub(ib, a, c, d)
		return d
	case 6: // XOR
		r := ib.bin(lifter.OpIntXor, a, c, size)
		setFlagsLogic(ib, r)
		return r
	case 7: // CMP
		d := ib.bin(lifter.OpIntSub, a, c, size)
		setFlagsSub(ib, a, c, d)
		return d
	}
	panic(fmt.Sprintf("x86lift: bad ALU kind %d", kind))
}

func setFlagsAdd(ib *instrBuilder, a, c, sum lifter.Varnode) {
	cf := flagVarnode("CF")
	ib.emit(lifter.OpIntCarry, []lifter.Varnode{a, c}, &cf)
	of := flagVarnode("OF")
	ib.emit(lifter.OpIntSCarry, []lifter.Varnode{a, c}, &of)
	sf := flagVarnode("SF")
	zero := constVn(0, sum.Size)
	ib.emit(lifter.OpIntSLess, []lifter.Varnode{sum, zero}, &sf)
	zf := flagVarnode("ZF")
	ib.emit(lifter.OpIntEqual, []lifter.Varnode{sum, zero}, &zf)
}

func setFlagsSub(ib *instrBuilder, a, c, diff lifter.Varnode) {
	cf := flagVarnode("CF")
	ib.emit(lifter.OpIntULess, []lifter.Varnode{a, c}, &cf)
	of := flagVarnode("OF")
	ib.emit(lifter.OpIntSBorrow, []lifter.Varnode{a, c}, &of)
	sf := flagVarnode("SF")
	zero := constVn(0, diff.Size)
	ib.emit(lifter.OpIntSLess, []lifter.Varnode{diff, zero}, &sf)
	zf := flagVarnode("ZF")
	ib.emit(lifter.OpIntEqual, []lifter.Varnode{diff, zero}, &zf)
}

// setFlagsLogic models AND/OR/XOR/TEST clearing CF/OF and setting
// SF/ZF from the result; PF is left stale (not tracked by this
// reference lifter, see condCode).
func setFlagsLogic(ib *instrBuilder, result lifter.Varnode) {
	cf := flagVarnode("CF")
	ib.emit(lifter.OpCopy, []lifter.Varnode{constVn(0, 1)}, &cf)
	of := flagVarnode("OF")
	ib.emit(lifter.OpCopy, []lifter.Varnode{constVn(0, 1)}, &of)
	sf := flagVarnode("SF")
	zero := constVn(0, result.Size)
	ib.emit(lifter.OpIntSLess, []lifter.Varnode{result, zero}, &sf)
	zf := flagVarnode("ZF")
	ib.emit(lifter.OpIntEqual, []lifter.Varnode{result, zero}, &zf)
}

// setFlagsIncDec models INC/DEC: OF/SF/ZF change, CF is left
// untouched (real x86-64 semantics).
func setFlagsIncDec(ib *instrBuilder, before, after lifter.Varnode, isInc bool) {
	one := constVn(1, before.Size)
	of := flagVarnode("OF")
	if isInc {
		ib.emit(lifter.OpIntSCarry, []lifter.Varnode{before, one}, &of)
	} else {
		ib.emit(lifter.OpIntSBorrow, []lifter.Varnode{before, one}, &of)
	}
	sf := flagVarnode("SF")
	zero := constVn(0, after.Size)
	ib.emit(lifter.OpIntSLess, []lifter.Varnode{after, zero}, &sf)
	zf := flagVarnode("ZF")
	ib.emit(lifter.OpIntEqual, []lifter.Varnode{after, zero}, &zf)
}

// condCode materializes the one-byte 0/1 guard for Jcc condition cc
// (the x86 tttn encoding). It is built entirely from plain bitwise
// ops over already-materialized 0/1 flag bytes rather than BOOL_AND/
// BOOL_OR/BOOL_NEGATE: those pcode ops pass their operands straight to
// the builder's Bool combinators without a toBool coercion, so a flag
// value that round-tripped through a register write (and is therefore
// a plain bit-vector, not a Bool-kinded node) would be fed to a
// Boolean operator unchanged. INT_AND/INT_OR/INT_XOR have no such
// requirement and, restricted to a strict 0/1 domain, compute the same
// truth table; only the final CBRANCH guard needs a real Boolean,
// which the interpreter's toBool() supplies by comparing against zero.
func condCode(ib *instrBuilder, cc int) lifter.Varnode {
	cf := flagVarnode("CF")
	zf := flagVarnode("ZF")
	sf := flagVarnode("SF")
	of := flagVarnode("OF")
	one := constVn(1, 1)
	notv := func(v lifter.Varnode) lifter.Varnode { return ib.bin(lifter.OpIntXor, v, one, 1) }

	switch cc {
	case 0x0: // O
		return of
	case 0x1: // NO
		return notv(of)
	case 0x2: // B/C/NAE
		return cf
	case 0x3: // AE/NB/NC
		return notv(cf)
	case 0x4: // E/Z
		return zf
	case 0x5: // NE/NZ
		return notv(zf)
	case 0x6: // BE/NA
		return ib.bin(lifter.OpIntOr, cf, zf, 1)
	case 0x7: // A/NBE
		return notv(ib.bin(lifter.OpIntOr, cf, zf, 1))
	case 0x8: // S
		return sf
	case 0x9: // NS
		return notv(sf)
	case 0xa: // P/PE (parity not tracked, treated as always clear)
		return constVn(0, 1)
	case 0xb: // NP/PO
		return constVn(1, 1)
	case 0xc: // L/NGE
		return ib.bin(lifter.OpIntXor, sf, of, 1)
	case 0xd: // GE/NL
		return notv(ib.bin(lifter.OpIntXor, sf, of, 1))
	case 0xe: // LE/NG
		sxo := ib.bin(lifter.OpIntXor, sf, of, 1)
		return ib.bin(lifter.OpIntOr, zf, sxo, 1)
	case 0xf: // G/NLE
		sxo := ib.bin(lifter.OpIntXor, sf, of, 1)
		return notv(ib.bin(lifter.OpIntOr, zf, sxo, 1))
	}
	panic(fmt.Sprintf("x86lift: bad condition code %d", cc))
}
