package cmd

import (
	"fmt"

	"github.com/quickserve/expo/pkg/entry"
	"github.com/quickserve/expo/pkg/reconcile"
	"github.com/spf13/cobra"
)

// acceptCmd marks an order accepted: durable local acknowledgment plus
// the Accepted At write-through on the remote record.
var acceptCmd = &cobra.Command{
	Use:   "accept <entry-id>",
	Short: "Accept an order by its entry ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newRemoteClient()
		if err != nil {
			return err
		}
		store, release, err := openAcks()
		if err != nil {
			return err
		}
		defer release()

		sess := reconcile.New(reconcile.Config{
			Remote: client,
			Acks:   store,
			Alarms: noAlarms{},
		})
		if err := sess.AcceptOrder(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("accepted %s\n", args[0])
		return nil
	},
}

// noAlarms satisfies reconcile.Alerter for one-shot commands that must
// not trigger sounds or mutate alarm state.
type noAlarms struct{}

func (noAlarms) EnsureRunning(entry.Category) {}
func (noAlarms) FireOnce(entry.Category)      {}
func (noAlarms) Stop(entry.Category)          {}
func (noAlarms) StopAll()                     {}

func init() {
	rootCmd.AddCommand(acceptCmd)
}
