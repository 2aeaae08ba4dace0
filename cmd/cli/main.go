// Command homedisk is a CLI client for the homedisk HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/and161185/homedisk/internal/config"
)

// ---- token store ----

type tokenFile struct {
	Server      string    `json:"server"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

var errLoginRequired = errors.New("no valid token (login required)")

func tokenPath() string { return filepath.Join(config.Dir(), "token.json") }

func saveToken(server string, tk tokenResponse) error {
	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{Server: server, AccessToken: tk.AccessToken, ExpiresAt: tk.ExpiresAt}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

// loadToken returns the cached token if it was issued by server and is still valid.
func loadToken(server string, now time.Time) (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errLoginRequired
		}
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || tf.Server != server || !now.Before(tf.ExpiresAt) {
		return "", errLoginRequired
	}
	return tf.AccessToken, nil
}

// readPassword prompts on stderr and reads from the terminal without echo.
var readPassword = func(stderr io.Writer) (string, error) {
	fmt.Fprint(stderr, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func usage(w io.Writer) {
	fmt.Fprint(w, `homedisk CLI
Usage:
  homedisk [-server URL] <cmd> [args]

Commands:
  version
  register <username>      (prompts for password, saves token)
  login    <username>      (prompts for password, saves token)
  whoami
  ls       [path]
  mkdir    <path>
  rm       <path>
`)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("homedisk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	defaultServer := os.Getenv("HOMEDISK_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	server := fs.String("server", defaultServer, "server base URL")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	err := dispatch(ctx, cmd, rest, *server, stdout, stderr)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		usage(stderr)
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

var errUsage = errors.New("usage")

func dispatch(ctx context.Context, cmd string, args []string, server string, stdout, stderr io.Writer) error {
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "homedisk %s (%s)\n", version, buildDate)
		return nil

	case "register", "login":
		if len(args) != 1 {
			return errUsage
		}
		password, err := readPassword(stderr)
		if err != nil {
			return err
		}
		c := newClient(server, "")
		var tk tokenResponse
		if cmd == "register" {
			tk, err = c.register(ctx, args[0], password)
		} else {
			tk, err = c.login(ctx, args[0], password)
		}
		if err != nil {
			return err
		}
		if err := saveToken(server, tk); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil
	}

	switch {
	case cmd == "whoami" && len(args) == 0:
	case cmd == "ls" && len(args) <= 1:
	case (cmd == "mkdir" || cmd == "rm") && len(args) == 1:
	default:
		return errUsage
	}

	tok, err := loadToken(server, time.Now())
	if err != nil {
		return err
	}
	c := newClient(server, tok)

	switch cmd {
	case "whoami":
		me, err := c.whoami(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s (%s)\n", me.Username, me.ID)

	case "ls":
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		l, err := c.list(ctx, path)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		for _, d := range l.Dirs {
			fmt.Fprintf(tw, "%s/\t%s\t\n", d.Name, d.Size)
		}
		for _, f := range l.Files {
			fmt.Fprintf(tw, "%s\t%s\t%s ago\n", f.Name, f.Size, f.Modified)
		}
		return tw.Flush()

	case "mkdir", "rm":
		if cmd == "mkdir" {
			err = c.mkdir(ctx, args[0])
		} else {
			err = c.remove(ctx, args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
	}
	return nil
}
