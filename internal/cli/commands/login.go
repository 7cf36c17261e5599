package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type loginOptions struct {
	project  string
	email    string
	password string

	// readPassword prompts for the password when none was supplied
	readPassword func() (string, error)
}

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	opts := &loginOptions{readPassword: promptPassword}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the selected project with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.project = projectFlag(cmd)
			return runLogin(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "Email address (or set SNACKER_EMAIL)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password (or set SNACKER_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, out io.Writer, opts *loginOptions) error {
	email := opts.email
	if email == "" {
		email = os.Getenv("SNACKER_EMAIL")
	}
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or SNACKER_EMAIL env var)")
	}

	password := opts.password
	if password == "" {
		password = os.Getenv("SNACKER_PASSWORD")
	}

	pc, err := openProject(opts.project)
	if err != nil {
		return err
	}
	defer pc.provider.Close()

	if password == "" {
		password, err = opts.readPassword()
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Signing in to %s (%s)...\n", pc.project.Alias, pc.project.URL)

	s, err := pc.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	fmt.Fprintf(out, "  User: %s (%s)\n", s.User.Email, s.User.ID)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "  Access token expires: %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}

	return nil
}

// promptPassword reads the password from the terminal without echo
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or SNACKER_PASSWORD env var)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}
