// Package runner executes external command-line tools.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"results-agent/src/logger"
)

// Runner runs a command to completion and returns its stdout.
type Runner interface {
	Run(ctx context.Context, command []string) ([]byte, error)
}

// ExitError is returned when a command exits with a non-zero status.
type ExitError struct {
	Command []string
	Status  int
	Stderr  []byte
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Command, " "), e.Status)
	if stderr := strings.TrimSpace(string(e.Stderr)); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Subprocess runs commands as local subprocesses.
type Subprocess struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env replaces the environment when non-empty.
	Env []string
	Log logger.Logger
}

// NewSubprocess creates a Subprocess that logs to log.
func NewSubprocess(log logger.Logger) *Subprocess {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Subprocess{Log: log}
}

// Run runs command until it exits or ctx is canceled, in which case the
// whole process group is killed.
func (r *Subprocess) Run(ctx context.Context, command []string) ([]byte, error) {
	if len(command) == 0 {
		return nil, errors.New("empty command")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	r.log().Debug("starting: %v", cmd.Args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command[0], err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &ExitError{
				Command: command,
				Status:  exitErr.ExitCode(),
				Stderr:  stderr.Bytes(),
			}
		}
		if err != nil {
			return nil, err
		}
		return stdout.Bytes(), nil
	case <-ctx.Done():
		// A negative pid addresses the process group.
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return nil, ctx.Err()
	}
}

func (r *Subprocess) log() logger.Logger {
	if r.Log == nil {
		return logger.NewSilentLogger()
	}
	return r.Log
}
