package hid

// KeyboardReportLen is the boot-protocol keyboard report size.
const KeyboardReportLen = 8

// KeyboardReport builds a one-shot boot keyboard report carrying a single
// key code with an optional modifier byte. The bridge forwards these
// unmodified; there is no keyboard state machine.
func KeyboardReport(mod, code uint8) [KeyboardReportLen]byte {
	var b [KeyboardReportLen]byte
	b[0] = mod
	b[2] = code
	return b
}
