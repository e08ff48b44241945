// Package prompt implements the interactive terminal prompts used by the
// user management commands.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted reports that the user cancelled a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted")

// ErrPasswordMismatch reports that the confirmation entry differed from
// the first one.
var ErrPasswordMismatch = errors.New("passwords do not match")

// IsAborted reports whether the error came from a cancelled prompt.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) ||
		errors.Is(err, promptui.ErrInterrupt) ||
		errors.Is(err, promptui.ErrAbort)
}

// wrapAbort folds promptui's interrupt errors into ErrAborted so callers
// only have one cancellation error to check.
func wrapAbort(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// InputRequired prompts for a non-empty line of input.
func InputRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s must not be empty", strings.ToLower(label))
			}
			return nil
		},
	}
	value, err := p.Run()
	return value, wrapAbort(err)
}

// Password prompts for a masked secret.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	value, err := p.Run()
	return value, wrapAbort(err)
}

// PasswordWithConfirmation prompts for a masked secret twice. The first
// entry must be at least minLength characters; the second must match.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			if len(s) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}
	password, err := p.Run()
	if err != nil {
		return "", wrapAbort(err)
	}

	confirm, err := Password(confirmLabel)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label + " [y/N]",
		IsConfirm: true,
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		// promptui reports any non-affirmative answer as ErrAbort.
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ConfirmWithForce skips the prompt when force is set, for scripted use.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label)
}

// SelectOption is one entry in a selection list.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select asks the user to pick one option with the arrow keys and returns
// the value of the chosen option.
func Select(label string, options []SelectOption) (string, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label | white }}",
		Selected: "* {{ .Label | green }}",
	}
	if len(options) > 0 && options[0].Description != "" {
		templates.Details = `
{{ "Description:" | faint }}	{{ .Description }}`
	}

	p := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: templates,
		Size:      10,
	}
	i, _, err := p.Run()
	if err != nil {
		return "", wrapAbort(err)
	}
	return options[i].Value, nil
}
