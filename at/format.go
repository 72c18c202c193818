package at

import "strconv"

// Format renders cmd as op into buf and returns the used part of it:
//
//	AT<token>[?|=?|=<args>]\r\n
//
// Integers are written in decimal. Strings are quoted, with '"', ',' and
// '\' escaped by a backslash. The returned slice aliases buf and is only
// valid until buf is reused.
//
// Format does not check op against the command's permitted operations;
// that is the caller's precondition.
func Format(buf *[MaxCommandLen]byte, cmd Command, op Op, p Params, env Env) ([]byte, error) {
	w := writer{buf: buf}
	w.str("AT")
	w.str(cmd.Token())
	w.str(op.Suffix())
	if op == OpSet {
		if p == nil || p.Command() != cmd {
			return nil, ErrParamsMismatch
		}
		if err := w.args(p.Args(env)); err != nil {
			return nil, err
		}
	}
	w.str(CRLF)
	if w.overflow {
		return nil, ErrCommandTooLong
	}
	return buf[:w.n], nil
}

type writer struct {
	buf      *[MaxCommandLen]byte
	n        int
	overflow bool
}

func (w *writer) put(c byte) {
	if w.n >= len(w.buf) {
		w.overflow = true
		return
	}
	w.buf[w.n] = c
	w.n++
}

func (w *writer) str(s string) {
	for i := 0; i < len(s); i++ {
		w.put(s[i])
	}
}

func (w *writer) args(args []any) error {
	for i, arg := range args {
		if i > 0 {
			w.put(',')
		}
		switch a := arg.(type) {
		case int:
			w.decimal(a)
		case string:
			w.quoted(a)
		default:
			return ErrArgType
		}
	}
	return nil
}

func (w *writer) decimal(a int) {
	var digits [20]byte
	for _, c := range strconv.AppendInt(digits[:0], int64(a), 10) {
		w.put(c)
	}
}

func (w *writer) quoted(s string) {
	w.put('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == ',' || c == '\\' {
			w.put('\\')
		}
		w.put(c)
	}
	w.put('"')
}
