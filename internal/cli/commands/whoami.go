package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleksTheDev/snacker/internal/session"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in to the selected project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), cmd.OutOrStdout(), projectFlag(cmd), timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "How long to wait for the session to be restored")

	return cmd
}

func runWhoami(ctx context.Context, out io.Writer, alias string, timeout time.Duration) error {
	pc, err := openProject(alias)
	if err != nil {
		return err
	}
	defer pc.provider.Close()

	synchronizer := session.New(pc.provider, pc.logger)
	synchronizer.Start(ctx)
	defer synchronizer.Close()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, err := session.WaitResolved(waitCtx, synchronizer)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s waiting for the session to be restored", timeout)
		}
		return err
	}

	if !st.SignedIn() {
		fmt.Fprintf(out, "Not signed in to %s. Run 'snacker login' to sign in.\n", pc.project.Alias)
		return nil
	}

	user := st.Session.User
	fmt.Fprintf(out, "Signed in to %s as %s\n", pc.project.Alias, user.Email)
	fmt.Fprintf(out, "  User ID: %s\n", user.ID)
	if user.Role != "" {
		fmt.Fprintf(out, "  Role: %s\n", user.Role)
	}
	if !st.Session.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "  Access token expires: %s\n", st.Session.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}

	return nil
}
