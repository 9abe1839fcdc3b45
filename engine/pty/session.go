package pty

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// Session is an interactive shell attached to a pseudo-terminal,
// multiplexed over a bidirectional socket by the surface layer.
type Session struct {
	ptmx *os.File
	cmd  *exec.Cmd
}

// StartSession spawns an interactive bash on a fresh PTY. A
// PROMPT_COMMAND hook prints a hidden OSC marker with the last exit
// status after every command so the client can track command state.
func StartSession(rows, cols uint16) (*Session, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	cmd := exec.Command(shell)
	cmd.Env = append(os.Environ(), `PROMPT_COMMAND=printf "\033]1337;DONE:%s\007" "$?"`)

	size := &pty.Winsize{Rows: rows, Cols: cols}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, fmt.Errorf("start pty session: %w", err)
	}

	return &Session{ptmx: ptmx, cmd: cmd}, nil
}

// Write sends user keystrokes to the terminal.
func (s *Session) Write(data []byte) error {
	_, err := s.ptmx.Write(data)
	return err
}

// Read reads decoded terminal output.
func (s *Session) Read(buf []byte) (int, error) {
	return s.ptmx.Read(buf)
}

// Resize syncs the PTY size with the client terminal.
func (s *Session) Resize(rows, cols uint16) error {
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Terminate kills the shell's process group and closes the PTY.
func (s *Session) Terminate() {
	if s.cmd != nil && s.cmd.Process != nil {
		syscall.Kill(-s.cmd.Process.Pid, syscall.SIGTERM)
	}
	if s.ptmx != nil {
		s.ptmx.Close()
	}
	go func() {
		if s.cmd != nil {
			s.cmd.Wait()
		}
	}()
}
