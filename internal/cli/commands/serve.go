package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleksTheDev/snacker/internal/history"
	"github.com/AleksTheDev/snacker/internal/identity"
	"github.com/AleksTheDev/snacker/internal/server"
	"github.com/AleksTheDev/snacker/internal/session"
)

// NewServeCmd creates the serve command
func NewServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the session of the selected project over a local HTTP API",
		Long: `Serve the session of the selected project over a local HTTP API.

The API listens on SNACKER_LISTEN_ADDR and exposes the current session,
a Server-Sent Events stream of changes, and the transition history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), projectFlag(cmd), version)
		},
	}
}

func runServe(ctx context.Context, out io.Writer, alias, version string) error {
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

	// hist stays a nil interface when history is disabled
	var hist server.HistoryReader
	if path := pc.settings.History.Path; path != "" {
		db, err := history.Open(path, pc.logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := history.Close(db); err != nil {
				pc.logger.Warn().Err(err).Msg("Failed to close history database")
			}
		}()

		recorder := history.NewRecorder(db, pc.project.Ref(), pc.logger)
		sub := synchronizer.Subscribe(recorder.Observe)
		defer sub.Unsubscribe()
		hist = recorder
	}

	srv := server.New(pc.settings, synchronizer, pc.provider, hist, pc.project.Alias, pc.logger, version)

	synchronizer.Start(ctx)
	scheduler.Start()
	defer scheduler.Stop()

	fmt.Fprintf(out, "Serving session of %s on http://%s\n", pc.project.Alias, pc.settings.Server.ListenAddr)
	return srv.Start(ctx)
}
