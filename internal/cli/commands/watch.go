package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleksTheDev/snacker/internal/identity"
	"github.com/AleksTheDev/snacker/internal/session"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every change of the session until interrupted",
		Long: `Print the current session state and every later change until interrupted.

Tokens are refreshed before they expire, and sign-ins or sign-outs made by
other snacker processes are picked up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), projectFlag(cmd), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON object per line")

	return cmd
}

// watchLine is the --json output format
type watchLine struct {
	Time      time.Time  `json:"time"`
	Status    string     `json:"status"`
	Event     string     `json:"event,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func runWatch(ctx context.Context, out io.Writer, alias string, jsonOutput bool) error {
	pc, err := openProject(alias)
	if err != nil {
		return err
	}
	defer pc.provider.Close()

	scheduler, err := identity.NewScheduler(pc.provider, pc.settings.Identity.RefreshSchedule, pc.settings.Identity.WatchSchedule, pc.logger)
	if err != nil {
		return err
	}

	synchronizer := session.New(pc.provider, pc.logger)
	defer synchronizer.Close()

	var mu sync.Mutex
	sub := synchronizer.Subscribe(func(st session.State) {
		if st.Pending() {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if err := printState(out, st, jsonOutput); err != nil {
			pc.logger.Warn().Err(err).Msg("Failed to print session state")
		}
	})
	defer sub.Unsubscribe()

	synchronizer.Start(ctx)
	scheduler.Start()
	defer scheduler.Stop()

	<-ctx.Done()
	return nil
}

func printState(out io.Writer, st session.State, jsonOutput bool) error {
	line := watchLine{
		Time:   time.Now().UTC(),
		Status: st.Status.String(),
		Event:  string(st.Event),
	}
	if st.Session != nil {
		line.UserID = st.Session.User.ID
		line.Email = st.Session.User.Email
		if !st.Session.ExpiresAt.IsZero() {
			expiresAt := st.Session.ExpiresAt.UTC()
			line.ExpiresAt = &expiresAt
		}
	}

	if jsonOutput {
		return json.NewEncoder(out).Encode(line)
	}

	_, err := fmt.Fprintf(out, "%s  %-10s  %-16s  %s\n",
		line.Time.Format(time.RFC3339), line.Status, line.Event, line.Email)
	return err
}
