package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/quickserve/expo/internal/server"
	"github.com/quickserve/expo/internal/utils"
	"github.com/quickserve/expo/pkg/archive"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd runs the watch session and exposes the snapshot and
// acknowledgment operations over HTTP for remote dashboards.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the order store and serve the dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		alarmInterval, _ := cmd.Flags().GetDuration("alarm-interval")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		noSweep, _ := cmd.Flags().GetBool("no-sweep")
		silent, _ := cmd.Flags().GetBool("silent")
		listenAddr, _ := cmd.Flags().GetString("listen")

		client, err := newRemoteClient()
		if err != nil {
			return err
		}
		store, release, err := openAcks()
		if err != nil {
			return err
		}
		defer release()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		sess, sched := buildSession(client, store, interval, alarmInterval, silent)
		defer sched.StopAll()

		if !noSweep {
			migrator := &archive.Migrator{
				Remote:      client,
				Log:         utils.Log,
				Concurrency: concurrency,
				Collection:  client.Collection(),
				ArchiveRoot: client.ArchiveRoot(),
			}
			if _, err := migrator.Sweep(ctx); err != nil {
				utils.Log.Warnf("Archive sweep failed, continuing without it: %v", err)
			}
		}

		go func() {
			srv := server.New(sess, viper.GetString("server.username"), viper.GetString("server.password"))
			if err := srv.Start(listenAddr); err != nil {
				utils.Log.Errorf("API server stopped: %v", err)
			}
		}()

		return sess.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Duration("interval", 5*time.Second, "Poll period for the order store")
	serveCmd.Flags().Duration("alarm-interval", 30*time.Second, "Repeat interval for the unaccepted-order alarm")
	serveCmd.Flags().Int("concurrency", 4, "Number of concurrent archive migrations")
	serveCmd.Flags().Bool("no-sweep", false, "Skip the archive sweep at session start")
	serveCmd.Flags().Bool("silent", false, "Disable alert sounds (alarm state machine still runs)")
	serveCmd.Flags().String("listen", ":8732", "HTTP listen address for the dashboard API")
}
