package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// CommandRunner runs external programs.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec. Output is stdout and stderr
// combined.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	return out, err
}

// checkExecutable returns an error unless path is a regular file with an
// execute bit set.
func checkExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if fi.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

// UIDSource lists POSIX uids already in use on the host.
type UIDSource interface {
	UsedUIDs(ctx context.Context) ([]int, error)
}

// Getent enumerates the host's passwd database with getent(1).
type Getent struct {
	// Command defaults to "getent".
	Command string
	Runner  CommandRunner
}

// UsedUIDs implements UIDSource.
func (g Getent) UsedUIDs(ctx context.Context) ([]int, error) {
	cmd := g.Command
	if cmd == "" {
		cmd = "getent"
	}
	runner := g.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	out, err := runner.Run(ctx, cmd, "passwd")
	if err != nil {
		// exit status 2: the database has no entries
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 2 {
			return nil, nil
		}
		return nil, fmt.Errorf("getent passwd: %w", err)
	}
	return parsePasswd(out), nil
}

// parsePasswd returns the uid field of every passwd(5) line.
func parsePasswd(data []byte) []int {
	var uids []int
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Split(sc.Text(), ":")
		if len(fields) < 3 {
			continue
		}
		if uid, err := strconv.Atoi(fields[2]); err == nil {
			uids = append(uids, uid)
		}
	}
	return uids
}
