// Package tokencli implements the admintoken command: it mints a bearer
// token for the lakeadmin admin API.
package tokencli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/server/auth"
	"golang.org/x/term"
)

// SecretEnv is read before prompting for the signing secret.
const SecretEnv = "LAKEADMIN_TOKEN_SECRET"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// stdinFd is the descriptor the secret prompt reads from.
var stdinFd = func() int { return int(os.Stdin.Fd()) }

// Run parses args, obtains the secret and prints one token to stdout.
func Run(args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("admintoken", flag.ContinueOnError)
	fs.SetOutput(stderr)
	operator := fs.String("operator", getenv("USER"), "operator name recorded in the token")
	ttl := fs.Duration("ttl", 24*time.Hour, "token validity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *operator == "" {
		return errors.New("operator is required (-operator)")
	}
	if *ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	secret := []byte(getenv(SecretEnv))
	if len(secret) == 0 {
		var err error
		secret, err = promptSecret(stderr)
		if err != nil {
			return err
		}
	}
	defer clear(secret)

	token, err := auth.GenerateToken(*operator, secret, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}

func promptSecret(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Token secret: "); err != nil {
		return nil, err
	}
	secret, err := readPassword(stdinFd())
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	secret = []byte(strings.TrimSpace(string(secret)))
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}
	return secret, nil
}
