package cmd

import (
	"fmt"

	"github.com/quickserve/expo/pkg/reconcile"
	"github.com/spf13/cobra"
)

// readCmd marks a phone message as read by staff.
var readCmd = &cobra.Command{
	Use:   "read <entry-id>",
	Short: "Mark a phone message as read",
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
		if err := sess.MarkMessageRead(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("marked %s read\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
}
