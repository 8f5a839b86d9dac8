package command

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ramseymcgrath/kmbridge/hid"
	"github.com/ramseymcgrath/kmbridge/remap"
)

const verbPrefix = "km."

// AuxSink forwards one-shot keyboard and vendor reports. Both are
// pass-through: the bridge keeps no keyboard state. Best effort; a false
// return is not surfaced to the command channel.
type AuxSink interface {
	SendKeyboard(report []byte) bool
	SendVendor(data []byte) bool
}

// buttonIndex maps button verbs and lock suffixes to bit positions.
var buttonIndex = map[string]int{
	"left":   hid.ButtonLeft,
	"right":  hid.ButtonRight,
	"middle": hid.ButtonMiddle,
	"side1":  hid.ButtonSide1,
	"side2":  hid.ButtonSide2,
}

var lockButtonIndex = map[string]int{
	"lock_ml":  hid.ButtonLeft,
	"lock_mr":  hid.ButtonRight,
	"lock_mm":  hid.ButtonMiddle,
	"lock_ms1": hid.ButtonSide1,
	"lock_ms2": hid.ButtonSide2,
}

// Handler executes km.* lines against the engine. Anything malformed is
// ignored without a response: the channel is a best-effort REPL, not an
// error reporting surface.
type Handler struct {
	engine *remap.Engine
	aux    AuxSink
	logger *slog.Logger
}

// NewHandler binds a dispatcher to the engine. aux may be nil, in which
// case key and vendor commands are accepted and dropped.
func NewHandler(engine *remap.Engine, aux AuxSink, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, aux: aux, logger: logger}
}

// Execute implements Executor.
func (h *Handler) Execute(line string, now time.Time) (string, bool) {
	if !strings.HasPrefix(line, verbPrefix) {
		return "", false
	}
	verb, args, ok := splitVerb(line[len(verbPrefix):])
	if !ok {
		return "", false
	}

	if btn, found := buttonIndex[verb]; found {
		state, ok := boolArg(args)
		if !ok {
			return "", false
		}
		if state {
			h.engine.Press(btn)
		} else {
			h.engine.Release(btn, now)
		}
		return "", true
	}

	if btn, found := lockButtonIndex[verb]; found {
		if len(args) == 0 {
			return lockToken(h.engine.ButtonLocked(btn)), true
		}
		state, ok := boolArg(args)
		if !ok {
			return "", false
		}
		h.engine.SetButtonLock(btn, state)
		return "", true
	}

	switch verb {
	case "click":
		if len(args) != 1 {
			return "", false
		}
		btn, err := strconv.Atoi(args[0])
		if err != nil || btn < 0 || btn >= hid.ButtonCount {
			return "", false
		}
		h.engine.Click(btn, now)
		return "", true

	case "move":
		if len(args) != 2 {
			return "", false
		}
		dx, errX := strconv.ParseInt(args[0], 10, 32)
		dy, errY := strconv.ParseInt(args[1], 10, 32)
		if errX != nil || errY != nil {
			return "", false
		}
		h.engine.Move(int32(dx), int32(dy))
		return "", true

	case "wheel":
		if len(args) != 1 {
			return "", false
		}
		w, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return "", false
		}
		h.engine.AddWheel(int32(w))
		return "", true

	case "lock_mx":
		if len(args) == 0 {
			return lockToken(h.engine.AxisLockedX()), true
		}
		state, ok := boolArg(args)
		if !ok {
			return "", false
		}
		h.engine.SetAxisLockX(state)
		return "", true

	case "lock_my":
		if len(args) == 0 {
			return lockToken(h.engine.AxisLockedY()), true
		}
		state, ok := boolArg(args)
		if !ok {
			return "", false
		}
		h.engine.SetAxisLockY(state)
		return "", true

	case "buttons":
		if len(args) != 0 {
			return "", false
		}
		return "km." + strconv.Itoa(int(h.engine.Buttons())), true

	case "key":
		var mod, code uint8
		switch len(args) {
		case 1:
			c, ok := byteArg(args[0])
			if !ok {
				return "", false
			}
			code = c
		case 2:
			m, okM := byteArg(args[0])
			c, okC := byteArg(args[1])
			if !okM || !okC {
				return "", false
			}
			mod, code = m, c
		default:
			return "", false
		}
		if h.aux != nil {
			rep := hid.KeyboardReport(mod, code)
			h.aux.SendKeyboard(rep[:])
		}
		return "", true

	case "vendor":
		if len(args) == 0 {
			return "", false
		}
		data := make([]byte, len(args))
		for i, a := range args {
			b, ok := byteArg(a)
			if !ok {
				return "", false
			}
			data[i] = b
		}
		if h.aux != nil {
			h.aux.SendVendor(data)
		}
		return "", true
	}

	return "", false
}

// splitVerb separates "verb(a,b)" into the verb and its arguments.
// Parentheses are optional (a bare verb is a zero-argument form) but must
// balance exactly, with nothing after the closing one.
func splitVerb(s string) (verb string, args []string, ok bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if strings.ContainsAny(s, ") \t") || s == "" {
			return "", nil, false
		}
		return s, nil, true
	}
	if open == 0 || !strings.HasSuffix(s, ")") {
		return "", nil, false
	}
	verb = s[:open]
	inner := s[open+1 : len(s)-1]
	if strings.ContainsAny(inner, "()") {
		return "", nil, false
	}
	if inner == "" {
		return verb, nil, true
	}
	parts := strings.Split(inner, ",")
	args = make([]string, len(parts))
	for i, p := range parts {
		args[i] = strings.TrimSpace(p)
	}
	return verb, args, true
}

// boolArg accepts exactly one argument that is exactly "0" or "1".
func boolArg(args []string) (bool, bool) {
	if len(args) != 1 {
		return false, false
	}
	switch args[0] {
	case "0":
		return false, true
	case "1":
		return true, true
	}
	return false, false
}

func byteArg(s string) (uint8, bool) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

func lockToken(locked bool) string {
	if locked {
		return "1"
	}
	return "0"
}
