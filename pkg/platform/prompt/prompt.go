package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const (
	userPrompt = "local-ca> $ "
)

var (
	ErrPassphraseMismatch = errors.New("prompt: passphrases don't match")
	ErrPassphraseTooShort = errors.New("prompt: passphrase too short")
)

func PrintBanner(version string) {
	color.New(color.FgGreen).Printf("Local CA v%s\n\n", version)
}

func PasswordPrompt(message string) []byte {
	fmt.Printf("%s: \n", message)
	fmt.Printf(userPrompt)
	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println()
	return passphrase
}

// ConfirmedPassphrase collects a new passphrase with confirmation,
// rejecting it before any of the callers touch key material.
func ConfirmedPassphrase(minLength int) ([]byte, error) {
	passphrase := PasswordPrompt("Enter CA Key Passphrase")
	confirm := PasswordPrompt("Confirm CA Key Passphrase")
	if err := ValidatePassphrase(passphrase, confirm, minLength); err != nil {
		return nil, err
	}
	return passphrase, nil
}

func ValidatePassphrase(passphrase, confirm []byte, minLength int) error {
	if len(passphrase) < minLength {
		return fmt.Errorf("%w: minimum %d characters", ErrPassphraseTooShort, minLength)
	}
	if !bytes.Equal(passphrase, confirm) {
		return ErrPassphraseMismatch
	}
	return nil
}

func Prompt(message string) []byte {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("%s: \n", message)
	fmt.Printf(userPrompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal(err)
	}

	return []byte(response)
}
