// Changes the password of an existing secret store file in place.
// Usage: STORE_PATH=... go run ./cmd/rekey
package main

import (
	"errors"
	"fmt"
	"os"

	"mcw/internal/vault"

	"golang.org/x/term"
)

func main() {
	path := os.Getenv("STORE_PATH")
	if path == "" {
		fmt.Fprintln(os.Stderr, "STORE_PATH is required")
		os.Exit(1)
	}

	current, err := prompt("Current password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store, err := vault.Open(path, current)
	clear(current)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open store:", err)
		os.Exit(1)
	}
	defer store.Close()

	next, err := prompt("New password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	confirm, err := prompt("Repeat new password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if string(next) != string(confirm) {
		fmt.Fprintln(os.Stderr, "passwords do not match")
		os.Exit(1)
	}
	clear(confirm)

	if err := store.Rekey(next); err != nil {
		fmt.Fprintln(os.Stderr, "rekey failed:", err)
		os.Exit(1)
	}
	clear(next)
	fmt.Println("store re-encrypted")
}

func prompt(label string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, label)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	return raw, nil
}
