package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrPasswordMismatch indicates passwords don't match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// stdin is read directly when it is not a terminal so passwords can be
// piped in from scripts.
var stdin io.Reader = os.Stdin

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Password reads a password, masking it on a terminal.
func Password(label string) (string, error) {
	if !IsInteractive() {
		return readLine(stdin)
	}
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	result, err := p.Run()
	return result, wrapError(err)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewPassword prompts for a password and its confirmation. Piped input
// is read once and not confirmed.
func NewPassword(minLength int) (string, error) {
	if !IsInteractive() {
		pw, err := readLine(stdin)
		if err != nil {
			return "", err
		}
		if len(pw) < minLength {
			return "", fmt.Errorf("password must be at least %d characters", minLength)
		}
		return pw, nil
	}

	p := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}
	password, err := p.Run()
	if err != nil {
		return "", wrapError(err)
	}

	confirm, err := Password("Confirm password")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}
