package commands

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/klabast/wb-services/recycle-kalender/internal/app"
)

// HashPassword handles the hash-password subcommand
func HashPassword(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	overwrite := fs.Bool("overwrite", false, "Overwrite existing auth file without asking")
	file := fs.String("file", os.Getenv("AUTH_FILE"), "Path to auth file (default: auth.secret next to the binary)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: recycle-kalender hash-password [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Creates the auth file protecting /admin/audit (Argon2id).\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	path, err := app.AuthFilePath(*file)
	if err != nil {
		fail(err)
	}

	stdin := bufio.NewReader(os.Stdin)

	username, err := prompt(stdin, "Enter username: ")
	if err != nil {
		fail(fmt.Errorf("reading username: %w", err))
	}
	if username == "" {
		fail(errors.New("username cannot be empty"))
	}

	password, err := readPassword(stdin, "Enter password:   ")
	if err != nil {
		fail(fmt.Errorf("reading password: %w", err))
	}
	confirm, err := readPassword(stdin, "Confirm password: ")
	if err != nil {
		fail(fmt.Errorf("reading password confirmation: %w", err))
	}
	if password == "" {
		fail(errors.New("password cannot be empty"))
	}
	if password != confirm {
		fail(errors.New("passwords do not match"))
	}

	err = app.CreateAuthFile(path, username, password, *overwrite)
	if errors.Is(err, app.ErrAuthFileExists) {
		answer, _ := prompt(stdin, fmt.Sprintf("Auth file %s already exists. Overwrite? (y/N): ", path))
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			fail(errors.New("aborted"))
		}
		err = app.CreateAuthFile(path, username, password, true)
	}
	if err != nil {
		fail(err)
	}

	fmt.Printf("Auth file created: %s (mode: 0400 read-only)\n", path)
	fmt.Printf("   Username: %s\n", username)
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword hides the input on a terminal and falls back to a plain line
// read when stdin is piped.
func readPassword(r *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(r, label)
	}
	fmt.Print(label)
	password, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
