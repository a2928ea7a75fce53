package cli

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/odaudit/odaudit/internal/credential"
)

const defaultBaseURL = "https://example.opendental.com/api/v1"

// promptRunner is a variable for testing purposes to allow mocking prompt.Run()
var promptRunner = func(prompt promptui.Prompt) (string, error) {
	return prompt.Run()
}

func captureBaseURL() (string, error) {
	prompt := promptui.Prompt{
		Label:    "OpenDental API Base URL",
		Default:  defaultBaseURL,
		Validate: validateBaseURL,
	}
	value, err := promptRunner(prompt)
	if err != nil {
		return "", err
	}
	value = strings.TrimSpace(value)
	if err := validateBaseURL(value); err != nil {
		return "", err
	}
	return value, nil
}

func validateBaseURL(input string) error {
	c := credential.Credential{
		BaseURL:      strings.TrimSpace(input),
		DeveloperKey: "placeholder",
		CustomerKey:  "placeholder",
	}
	return c.Validate()
}

func captureSecret(label string) (credential.Secret, error) {
	validate := func(input string) error {
		if strings.TrimSpace(input) == "" {
			return errors.New(label + " cannot be empty")
		}
		return nil
	}
	prompt := promptui.Prompt{
		Label:    label,
		Mask:     '*',
		Validate: validate,
	}
	value, err := promptRunner(prompt)
	if err != nil {
		return "", err
	}
	if err := validate(value); err != nil {
		return "", err
	}
	return credential.Secret(strings.TrimSpace(value)), nil
}

// captureConfirm asks a yes/no question that defaults to no.
func captureConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := promptRunner(prompt); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
