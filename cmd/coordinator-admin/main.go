// Command coordinator-admin generates a bcrypt hash of the shared bearer
// token for use as auth.token_hash in the coordinator's YAML
// configuration. The plaintext token never touches disk or argv.
package main

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && (args[0] == "help" || args[0] == "--help") {
		printHelp()
		return nil
	}

	token, err := promptToken("Shared bearer token: ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	confirm, err := promptToken("Confirm token: ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if token != confirm {
		return fmt.Errorf("tokens do not match")
	}
	if len(token) < 16 {
		return fmt.Errorf("token too short (want at least 16 characters)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

func printHelp() {
	fmt.Fprintln(os.Stderr, `Usage: coordinator-admin

Prompts for a shared bearer token (hidden input) and prints its bcrypt
hash on stdout. Paste the hash into auth.token_hash in coordinator.yaml
and distribute the plaintext token to agents out of band.`)
}

func promptToken(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
