package x86lift

import "fmt"

// insn is the fully-parsed shape of one x86-64 instruction: decode()
// only classifies bytes into these fields; translate() (in translate.go)
// turns them into pcode. Splitting decode from translation keeps
// RIP-relative addressing simple: by the time translate() runs, the
// instruction's total length (and therefore the address of the next
// instruction, the base of a RIP-relative operand) is already known.
type insn struct {
	pc     uint64
	length uint32

	rex        bool
	rexW       bool
	rexR       bool
	rexX       bool
	rexB       bool
	segFS      bool
	opcode     byte
	twoByte    bool
	opcode2    byte
	opSize     uint32 // 1, 4, or 8
	hasModRM   bool
	mod        int
	regField   int
	rm         int
	isMem      bool
	base       int
	noBase     bool
	index      int
	noIndex    bool
	scale      int
	ripRel     bool
	dispSize   int // 0, 1, or 4
	disp       int64
	immSize    uint32 // 0, 1, 2 (RET imm16 only), 4, or 8
	imm        int64
	opExt      int // the /digit extension for group opcodes (== regField)
}

// decoder walks raw bytes producing one insn at a time.
type decoder struct {
	data []byte
	pos  int
	pc   uint64
}

func (d *decoder) remaining() int { return len(d.data) - d.pos }

func (d *decoder) u8() (byte, error) {
	if d.remaining() < 1 {
		return 0, fmt.Errorf("x86lift: truncated instruction at 0x%x", d.pc)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) i8() (int64, error) {
	b, err := d.u8()
	return int64(int8(b)), err
}

func (d *decoder) u32() (uint32, error) {
	if d.remaining() < 4 {
		return 0, fmt.Errorf("x86lift: truncated immediate at 0x%x", d.pc)
	}
	v := uint32(d.data[d.pos]) | uint32(d.data[d.pos+1])<<8 | uint32(d.data[d.pos+2])<<16 | uint32(d.data[d.pos+3])<<24
	d.pos += 4
	return v, nil
}

func (d *decoder) i32() (int64, error) {
	v, err := d.u32()
	return int64(int32(v)), err
}

func (d *decoder) u64() (uint64, error) {
	if d.remaining() < 8 {
		return 0, fmt.Errorf("x86lift: truncated immediate at 0x%x", d.pc)
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(d.data[d.pos+i]) << (8 * i)
	}
	d.pos += 8
	return v, nil
}

// decodeOne parses one instruction starting at pc from data (at least
// one full instruction's worth of bytes must be present).
func decodeOne(data []byte, pc uint64) (*insn, error) {
	d := &decoder{data: data, pos: 0, pc: pc}
	in := &insn{pc: pc, opSize: 4}

	for {
		if d.remaining() == 0 {
			return nil, fmt.Errorf("x86lift: empty instruction at 0x%x", pc)
		}
		b := data[d.pos]
		switch b {
		case 0x66: // operand-size override: 16-bit operands unsupported
			return nil, fmt.Errorf("x86lift: unsupported 16-bit operand-size prefix at 0x%x", pc)
		case 0x67, 0xf0, 0xf2, 0xf3: // addr-size/lock/rep: accepted, no effect modeled
			d.pos++
			continue
		case 0x64:
			in.segFS = true
			d.pos++
			continue
		case 0x65:
			in.segFS = true // GS modeled identically to FS, see package doc
			d.pos++
			continue
		case 0x2e, 0x36, 0x3e, 0x26: // CS/SS/DS/ES overrides: no-op in a flat model
			d.pos++
			continue
		}
		if b&0xf0 == 0x40 { // REX prefix
			in.rex = true
			in.rexW = b&0x08 != 0
			in.rexR = b&0x04 != 0
			in.rexX = b&0x02 != 0
			in.rexB = b&0x01 != 0
			d.pos++
			continue
		}
		break
	}
	if in.rexW {
		in.opSize = 8
	}

	op, err := d.u8()
	if err != nil {
		return nil, err
	}
	in.opcode = op
	if op == 0x0f {
		op2, err := d.u8()
		if err != nil {
			return nil, err
		}
		in.twoByte = true
		in.opcode2 = op2
	}

	if err := decodeOperands(d, in); err != nil {
		return nil, err
	}

	in.length = uint32(d.pos)
	return in, nil
}

// needsModRM reports whether this opcode's ModRM byte (and therefore
// addressing-mode bytes) must be decoded before any immediate.
func needsModRM(in *insn) bool {
	if in.twoByte {
		switch in.opcode2 {
		case 0x05: // SYSCALL
			return false
		case 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
			0x88, 0x89, 0x8a, 0x8b, 0x8c, 0x8d, 0x8e, 0x8f: // Jcc rel32
			return false
		}
		return true // MOVZX/MOVSX/CMOVcc etc.
	}
	op := in.opcode
	switch {
	case op >= 0x50 && op <= 0x5f: // PUSH/POP r64
		return false
	case op >= 0xb8 && op <= 0xbf: // MOV r, imm
		return false
	case op == 0xe8, op == 0xe9, op == 0xeb: // CALL/JMP rel
		return false
	case op >= 0x70 && op <= 0x7f: // Jcc rel8
		return false
	case op == 0xc3, op == 0xc9, op == 0x90, op == 0x99, op == 0x98: // RET/LEAVE/NOP/CQO/CDQE
		return false
	case op == 0xc2: // RET imm16
		return false
	case op == 0x6a, op == 0x68: // PUSH imm8/imm32
		return false
	case isAccumImmALU(op):
		return false
	}
	return true
}

// isAccumImmALU reports whether op is one of the sixteen "accumulator,
// immediate" ALU forms (ADD AL/eAX, imm and its seven siblings through
// CMP), which carry no ModRM byte: the destination is implied to be
// AL or eAX/RAX.
func isAccumImmALU(op byte) bool {
	if op > 0x3d {
		return false
	}
	low := op & 0x07
	return low == 0x04 || low == 0x05
}

// aluKind maps an ALU opcode's base nibble (or a group1 /digit) to the
// ADD..CMP index used by aluCompute.
func aluKind(op byte) int { return int((op >> 3) & 7) }

func decodeOperands(d *decoder, in *insn) error {
	// The one-byte accumulator-immediate ALU forms (0x04,0x0c,0x14,...)
	// and B8+r/50+r/58+r forms carry their register operand in the
	// opcode's low bits and never have a ModRM byte.
	if !needsModRM(in) {
		return decodeImmediateOnly(d, in)
	}

	m, err := d.u8()
	if err != nil {
		return err
	}
	in.hasModRM = true
	in.mod = int(m >> 6)
	in.regField = int((m >> 3) & 7)
	in.rm = int(m & 7)
	in.opExt = in.regField
	if in.rexR {
		in.regField |= 0x8
	}

	if in.mod == 3 {
		in.isMem = false
		in.rm |= boolBit(in.rexB) << 3
		return decodeTrailingImmediate(d, in)
	}

	in.isMem = true
	rm := in.rm
	if rm == 4 { // SIB byte follows
		sib, err := d.u8()
		if err != nil {
			return err
		}
		in.scale = 1 << (sib >> 6)
		in.index = int((sib>>3)&7) | boolBit(in.rexX)<<3
		in.base = int(sib&7) | boolBit(in.rexB)<<3
		if (sib>>3)&7 == 4 && !in.rexX {
			in.noIndex = true
		}
		if sib&7 == 5 && in.mod == 0 {
			in.noBase = true
		}
	} else {
		in.base = rm | boolBit(in.rexB)<<3
		in.noIndex = true
		if rm == 5 && in.mod == 0 {
			in.ripRel = true
			in.noBase = true
		}
	}

	switch in.mod {
	case 0:
		if in.noBase && !in.ripRel {
			disp, err := d.i32()
			if err != nil {
				return err
			}
			in.dispSize = 4
			in.disp = disp
		} else if in.ripRel {
			disp, err := d.i32()
			if err != nil {
				return err
			}
			in.dispSize = 4
			in.disp = disp
		}
	case 1:
		disp, err := d.i8()
		if err != nil {
			return err
		}
		in.dispSize = 1
		in.disp = disp
	case 2:
		disp, err := d.i32()
		if err != nil {
			return err
		}
		in.dispSize = 4
		in.disp = disp
	}

	return decodeTrailingImmediate(d, in)
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// decodeImmediateOnly handles opcodes with no ModRM byte at all:
// register-in-opcode forms (PUSH/POP/MOV-imm) and rel8/rel32 branches.
func decodeImmediateOnly(d *decoder, in *insn) error {
	op := in.opcode
	switch {
	case !in.twoByte && op >= 0x50 && op <= 0x5f:
		in.rm = int(op&7) | boolBit(in.rexB)<<3
		return nil
	case !in.twoByte && op >= 0xb8 && op <= 0xbf:
		in.rm = int(op&7) | boolBit(in.rexB)<<3
		if in.rexW {
			v, err := d.u64()
			if err != nil {
				return err
			}
			in.immSize = 8
			in.imm = int64(v)
		} else {
			v, err := d.u32()
			if err != nil {
				return err
			}
			in.immSize = 4
			in.imm = int64(v)
		}
		return nil
	case !in.twoByte && (op == 0xe8 || op == 0xe9):
		v, err := d.i32()
		if err != nil {
			return err
		}
		in.immSize = 4
		in.imm = v
		return nil
	case !in.twoByte && op == 0xeb:
		v, err := d.i8()
		if err != nil {
			return err
		}
		in.immSize = 1
		in.imm = v
		return nil
	case !in.twoByte && op >= 0x70 && op <= 0x7f:
		v, err := d.i8()
		if err != nil {
			return err
		}
		in.immSize = 1
		in.imm = v
		return nil
	case !in.twoByte && op == 0xc2:
		lo, err := d.u8()
		if err != nil {
			return err
		}
		hi, err := d.u8()
		if err != nil {
			return err
		}
		in.immSize = 2
		in.imm = int64(uint16(lo) | uint16(hi)<<8)
		return nil
	case !in.twoByte && op == 0x6a: // PUSH imm8
		v, err := d.i8()
		if err != nil {
			return err
		}
		in.immSize = 1
		in.imm = v
		return nil
	case !in.twoByte && op == 0x68: // PUSH imm32
		v, err := d.i32()
		if err != nil {
			return err
		}
		in.immSize = 4
		in.imm = v
		return nil
	case !in.twoByte && isAccumImmALU(op):
		if op&1 == 0 {
			v, err := d.u8()
			if err != nil {
				return err
			}
			in.immSize = 1
			in.imm = int64(int8(v))
		} else {
			v, err := d.i32()
			if err != nil {
				return err
			}
			in.immSize = 4
			in.imm = v
		}
		return nil
	case in.twoByte && op == 0x05: // SYSCALL
		return nil
	case in.twoByte && op >= 0x80 && op <= 0x8f: // Jcc rel32
		v, err := d.i32()
		if err != nil {
			return err
		}
		in.immSize = 4
		in.imm = v
		return nil
	case !in.twoByte && (op == 0xc3 || op == 0xc9 || op == 0x90 || op == 0x99 || op == 0x98):
		return nil
	}
	return fmt.Errorf("x86lift: unsupported opcode 0x%02x at 0x%x", op, in.pc)
}

// decodeTrailingImmediate reads the immediate that follows a ModRM
// (+SIB+disp) operand, sized per the opcode.
func decodeTrailingImmediate(d *decoder, in *insn) error {
	op := in.opcode
	if in.twoByte {
		return nil // MOVZX/MOVSX/CMOVcc carry no immediate
	}
	switch op {
	case 0xc6: // MOV r/m8, imm8
		v, err := d.u8()
		if err != nil {
			return err
		}
		in.immSize = 1
		in.imm = int64(int8(v))
	case 0xc7: // MOV r/m, imm32 (sign-extended to opSize)
		v, err := d.i32()
		if err != nil {
			return err
		}
		in.immSize = 4
		in.imm = v
	case 0x80: // group1 Eb, imm8
		v, err := d.u8()
		if err != nil {
			return err
		}
		in.immSize = 1
		in.imm = int64(int8(v))
	case 0x81: // group1 Ev, imm32
		v, err := d.i32()
		if err != nil {
			return err
		}
		in.immSize = 4
		in.imm = v
	case 0x83: // group1 Ev, imm8 sign-extended
		v, err := d.i8()
		if err != nil {
			return err
		}
		in.immSize = 1
		in.imm = v
	case 0xc0, 0xc1: // group2 shift, imm8 count
		v, err := d.u8()
		if err != nil {
			return err
		}
		in.immSize = 1
		in.imm = int64(v)
	case 0xf6: // group3, imm8 only for TEST (/0,/1)
		if in.opExt == 0 || in.opExt == 1 {
			v, err := d.u8()
			if err != nil {
				return err
			}
			in.immSize = 1
			in.imm = int64(int8(v))
		}
	case 0xf7:
		if in.opExt == 0 || in.opExt == 1 {
			v, err := d.i32()
			if err != nil {
				return err
			}
			in.immSize = 4
			in.imm = v
		}
	}
	return nil
}
