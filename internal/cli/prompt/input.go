package prompt

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted returns true if the error indicates the user aborted (Ctrl+C).
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input prompts for optional text input. Without a terminal it returns
// defaultValue without prompting.
func Input(label string, defaultValue string) (string, error) {
	if !IsInteractive() {
		return defaultValue, nil
	}
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	result, err := p.Run()
	return result, wrapError(err)
}
