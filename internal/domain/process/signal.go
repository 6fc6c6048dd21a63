package process

import "golang.org/x/sys/unix"

// Signaler delivers signals to other processes.
type Signaler interface {
	Signal(pid int, sig unix.Signal) error
}

type UnixSignaler struct{}

func (UnixSignaler) Signal(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}
