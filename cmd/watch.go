package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/quickserve/expo/internal/utils"
	"github.com/quickserve/expo/pkg/acks"
	"github.com/quickserve/expo/pkg/alarm"
	"github.com/quickserve/expo/pkg/archive"
	"github.com/quickserve/expo/pkg/entry"
	"github.com/quickserve/expo/pkg/reconcile"
	"github.com/quickserve/expo/pkg/remote"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// watchCmd implements: expo watch
//
// This is the dashboard session: a one-shot archive sweep, then the
// reconciliation loop with audible alarms until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the order store and alert until orders are accepted",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		alarmInterval, _ := cmd.Flags().GetDuration("alarm-interval")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		noSweep, _ := cmd.Flags().GetBool("no-sweep")
		silent, _ := cmd.Flags().GetBool("silent")

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

		if !noSweep {
			migrator := &archive.Migrator{
				Remote:      client,
				Log:         utils.Log,
				Concurrency: concurrency,
				Collection:  client.Collection(),
				ArchiveRoot: client.ArchiveRoot(),
			}
			res, err := migrator.Sweep(ctx)
			if err != nil {
				utils.Log.Warnf("Archive sweep failed, continuing without it: %v", err)
			} else if res.Archived > 0 || res.Failed > 0 {
				utils.Log.Infof("Archive sweep: %d archived, %d failed", res.Archived, res.Failed)
			}
		}

		utils.Log.Infof("Watching %s every %s", viper.GetString("remote.url"), interval)
		err = sess.Run(ctx)
		sched.StopAll()
		return err
	},
}

// buildSession wires the scheduler and session together. The alarm's
// qualifying predicate reads the session's live state, so each firing
// re-checks whether any unaccepted order remains.
func buildSession(client *remote.Client, store *acks.Store, interval, alarmInterval time.Duration, silent bool) (*reconcile.Session, *alarm.Scheduler) {
	var sess *reconcile.Session

	var sounder alarm.Sounder
	if silent {
		sounder = silentSounder{}
	} else {
		sounder = alarm.ExecSounder{Commands: map[entry.Category]string{
			entry.CategoryOrder:   viper.GetString("sound.orders"),
			entry.CategoryMessage: viper.GetString("sound.messages"),
		}}
	}

	sched := alarm.New(alarm.Config{
		Interval: alarmInterval,
		Sounder:  sounder,
		Log:      utils.Log,
		Qualify: func(cat entry.Category) bool {
			if sess == nil || cat != entry.CategoryOrder {
				return false
			}
			return sess.HasUnacceptedOrders()
		},
	})

	sess = reconcile.New(reconcile.Config{
		Remote:   client,
		Acks:     store,
		Alarms:   sched,
		Interval: interval,
		Log:      utils.Log,
	})
	return sess, sched
}

// silentSounder suppresses audio for headless runs.
type silentSounder struct{}

func (silentSounder) Play(entry.Category) error { return nil }

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.PersistentFlags().Duration("interval", 5*time.Second, "Poll period for the order store")
	watchCmd.PersistentFlags().Duration("alarm-interval", 30*time.Second, "Repeat interval for the unaccepted-order alarm")
	watchCmd.PersistentFlags().Int("concurrency", 4, "Number of concurrent archive migrations")
	watchCmd.PersistentFlags().Bool("no-sweep", false, "Skip the archive sweep at session start")
	watchCmd.PersistentFlags().Bool("silent", false, "Disable alert sounds (alarm state machine still runs)")
}
