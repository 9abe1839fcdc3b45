// Package pty runs shell commands on a pseudo-terminal, streaming
// output chunks while optionally injecting sudo credentials through a
// trap-protected wrapper script.
package pty

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
)

const (
	// SudoSentinel replaces the system sudo prompt so the runner can
	// reliably detect the credential-input point.
	SudoSentinel = "FLOWX_SUDO_PROMPT:"

	rejectionMarker = "Sorry, try again."

	chunkSize        = 4096
	pollInterval     = 100 * time.Millisecond
	authWaitTimeout  = 5 * time.Second
	rejectionWindow  = 1 * time.Second
	terminateTimeout = 2 * time.Second
)

// OutputFunc receives streamed output chunks tagged with their stream
// label ("stdout" or "stderr").
type OutputFunc func(chunk string, stream string)

// RunFunc is the signature of the PTY runner, injectable for tests.
type RunFunc func(ctx context.Context, command, sudoPassword string, onOutput OutputFunc) (int, string, string)

// Run executes a shell command on a pseudo-terminal and returns
// (exit_code, stdout, stderr). Output chunks are forwarded to onOutput
// as they arrive; the PTY merges the child's streams, so accumulated
// output is reported as stdout and the stderr return carries only
// runner-level failures.
func Run(ctx context.Context, command, sudoPassword string, onOutput OutputFunc) (int, string, string) {
	emit := func(chunk, stream string) {
		if onOutput != nil {
			onOutput(chunk, stream)
		}
	}

	script := command
	if sudoPassword != "" {
		script = sudoWrapper(command)
	}

	cmd := exec.Command("/bin/bash", "-c", script)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		msg := err.Error()
		emit(msg, "stderr")
		return 1, "", msg
	}

	// Kill the whole process group on cancellation. pty.Start puts the
	// shell in its own session, so -pid reaches the refresher too (the
	// trap then reaps it on shell exit).
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			terminate(cmd)
		case <-done:
		}
	}()

	var output strings.Builder

	if sudoPassword != "" {
		ok, authOut := authenticate(ptmx, sudoPassword, emit)
		output.WriteString(authOut)
		if !ok {
			terminate(cmd)
			ptmx.Close()
			cmd.Wait()
			return 1, output.String(), "[FlowX Error] Incorrect sudo password."
		}
	}

	// Streaming phase: non-blocking reads with a short poll deadline so
	// cancellation is observed promptly.
	buf := make([]byte, chunkSize)
	for {
		if ctx.Err() != nil {
			break
		}

		ptmx.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := filterSentinel(string(buf[:n]))
			if chunk != "" {
				output.WriteString(chunk)
				emit(chunk, "stdout")
			}
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			// EOF or EIO: the child is gone and the PTY is drained.
			break
		}
	}

	ptmx.Close()
	waitErr := cmd.Wait()

	exitCode := 1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if exitCode < 0 {
		exitCode = 1
	}
	if waitErr == nil {
		exitCode = 0
	}

	return exitCode, output.String(), ""
}

// authenticate waits for the sentinel prompt, sends the password, and
// races the rejection marker against a short timeout. It returns false
// on rejection and any non-sentinel output captured during the window.
func authenticate(ptmx *os.File, password string, emit OutputFunc) (bool, string) {
	buf := make([]byte, chunkSize)
	var seen strings.Builder

	deadline := time.Now().Add(authWaitTimeout)
	for !strings.Contains(seen.String(), SudoSentinel) {
		if time.Now().After(deadline) {
			// No prompt appeared; the command may not need sudo after
			// all. Fall through to streaming.
			return true, flushAuthOutput(seen.String(), emit)
		}
		ptmx.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := ptmx.Read(buf)
		if n > 0 {
			seen.Write(buf[:n])
		}
		if err != nil && !os.IsTimeout(err) {
			return true, flushAuthOutput(seen.String(), emit)
		}
	}

	if _, err := ptmx.Write([]byte(password + "\n")); err != nil {
		return false, ""
	}

	// Rejection race: "try again" within the window means the password
	// was wrong; timeout or EOF means sudo accepted it and moved on.
	var window strings.Builder
	windowDeadline := time.Now().Add(rejectionWindow)
	for time.Now().Before(windowDeadline) {
		ptmx.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := ptmx.Read(buf)
		if n > 0 {
			window.Write(buf[:n])
			if strings.Contains(window.String(), rejectionMarker) {
				emit("\n[FlowX Error] Incorrect sudo password.\n", "stderr")
				return false, ""
			}
		}
		if err != nil && !os.IsTimeout(err) {
			break
		}
	}

	return true, flushAuthOutput(window.String(), emit)
}

func flushAuthOutput(raw string, emit OutputFunc) string {
	chunk := filterSentinel(raw)
	if chunk != "" {
		emit(chunk, "stdout")
	}
	return chunk
}

// sudoWrapper builds the hybrid wrapper script: prime authentication
// with the sentinel prompt, keep a background refresher alive, and
// guarantee via trap that the refresher dies with the shell.
func sudoWrapper(command string) string {
	return fmt.Sprintf(`
sudo -S -k -p %q -v

(while true; do sudo -n -v 2>/dev/null; sleep 50; done) &
REFRESHER_PID=$!

trap "kill $REFRESHER_PID 2>/dev/null" EXIT

eval %s
CMD_EXIT=$?

exit $CMD_EXIT
`, SudoSentinel, shellQuote(command))
}

// shellQuote wraps a string in single quotes with POSIX escaping so it
// evaluates safely inside the wrapper.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// filterSentinel drops any line containing the sentinel prompt so the
// credential-input machinery never leaks into user-visible output.
func filterSentinel(chunk string) string {
	if !strings.Contains(chunk, SudoSentinel) {
		return chunk
	}
	lines := strings.Split(chunk, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.Contains(line, SudoSentinel) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid targets the process group created by pty.Start.
	syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}
