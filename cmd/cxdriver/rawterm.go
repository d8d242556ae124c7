package main

import (
	"os"
	"syscall"

	"github.com/pkg/term/termios"
)

// rawTerm puts stdin into raw mode so a single 'q' keystroke can abort the
// engine without waiting for Enter. Grounded on the teacher's
// debugger/terminal/colorterm/easyterm package: save the canonical
// termios attributes, install a raw/cbreak attribute set, and restore the
// original on exit.
type rawTerm struct {
	fd       uintptr
	saved    syscall.Termios
	restored bool
}

func newRawTerm(in *os.File) (*rawTerm, error) {
	fd := in.Fd()
	var saved syscall.Termios
	if err := termios.Tcgetattr(fd, &saved); err != nil {
		return nil, err
	}

	raw := saved
	termios.Cfmakeraw(&raw)
	if err := termios.Tcsetattr(fd, termios.TCIFLUSH, &raw); err != nil {
		return nil, err
	}

	return &rawTerm{fd: fd, saved: saved}, nil
}

func (t *rawTerm) restore() {
	if t.restored {
		return
	}
	t.restored = true
	_ = termios.Tcsetattr(t.fd, termios.TCIFLUSH, &t.saved)
}

// watchForQuit blocks reading single bytes from stdin and closes abort
// when it sees 'q' or 'Q'.
func (t *rawTerm) watchForQuit(abort chan<- struct{}) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n > 0 && (buf[0] == 'q' || buf[0] == 'Q') {
			close(abort)
			return
		}
	}
}
