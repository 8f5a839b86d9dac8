// Package hid defines the canonical mouse report model and the wire formats
// accepted from physical devices and emitted to the host.
package hid

// Button bit positions in the report bitfield.
const (
	ButtonLeft = iota
	ButtonRight
	ButtonMiddle
	ButtonSide1
	ButtonSide2

	ButtonCount = 5
)

// ButtonMask covers the five supported buttons; upper bits are reserved.
const ButtonMask = 0x1F

// ReportLen is the size of the emitted wire report.
const ReportLen = 8

// MouseReport is the canonical report built fresh each merge cycle.
// X/Y carry full 16-bit precision; narrowing happens only at the final
// clamp in the merge pipeline, never on intermediate values.
type MouseReport struct {
	// Buttons bitfield: bit 0=Left, 1=Right, 2=Middle, 3=Side1, 4=Side2
	Buttons uint8
	X, Y    int16
	Wheel   int8
	Pan     int8
}

// Encode packs the report into the 8-byte wire layout:
//
//	Byte 0: buttons (bits 5-7 reserved)
//	Byte 1: reserved
//	Byte 2: wheel (int8)
//	Byte 3: pan (int8)
//	Bytes 4-5: X (int16 little-endian)
//	Bytes 6-7: Y (int16 little-endian)
func (r MouseReport) Encode() [ReportLen]byte {
	var b [ReportLen]byte
	b[0] = r.Buttons & ButtonMask
	b[2] = byte(r.Wheel)
	b[3] = byte(r.Pan)
	b[4] = byte(r.X)
	b[5] = byte(r.X >> 8)
	b[6] = byte(r.Y)
	b[7] = byte(r.Y >> 8)
	return b
}

// DecodeReport parses a raw physical report. Three lengths are understood:
//
//	8 bytes: buttons, reserved, wheel, pan, xlo, xhi, ylo, yhi (full 16-bit)
//	4 bytes: buttons, x, y, wheel (legacy 8-bit, sign-extended to 16)
//	3 bytes: buttons, x, y
//
// Any other length is unrecognized and reported as ok=false; callers drop
// the report without mutating state.
func DecodeReport(raw []byte) (r MouseReport, ok bool) {
	switch len(raw) {
	case 8:
		r.Buttons = raw[0] & ButtonMask
		r.Wheel = int8(raw[2])
		r.Pan = int8(raw[3])
		r.X = int16(raw[4]) | int16(raw[5])<<8
		r.Y = int16(raw[6]) | int16(raw[7])<<8
		return r, true
	case 4:
		r.Buttons = raw[0] & ButtonMask
		r.X = int16(int8(raw[1]))
		r.Y = int16(int8(raw[2]))
		r.Wheel = int8(raw[3])
		return r, true
	case 3:
		r.Buttons = raw[0] & ButtonMask
		r.X = int16(int8(raw[1]))
		r.Y = int16(int8(raw[2]))
		return r, true
	default:
		return MouseReport{}, false
	}
}

// ClampInt16 narrows a wide accumulator sum to the int16 report field.
func ClampInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// ClampInt8 narrows a value to the int8 report field.
func ClampInt8(v int32) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}
