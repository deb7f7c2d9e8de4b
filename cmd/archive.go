package cmd

import (
	"fmt"

	"github.com/quickserve/expo/internal/utils"
	"github.com/quickserve/expo/pkg/archive"
	"github.com/spf13/cobra"
)

// archiveCmd runs the stale-entry sweep once, outside of a watch
// session. Safe to run twice; already-archived entries are skipped.
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move entries not placed today into date-keyed archive buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		client, err := newRemoteClient()
		if err != nil {
			return err
		}

		migrator := &archive.Migrator{
			Remote:      client,
			Log:         utils.Log,
			Concurrency: concurrency,
			Collection:  client.Collection(),
			ArchiveRoot: client.ArchiveRoot(),
		}
		res, err := migrator.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("archived %d, kept %d, failed %d\n", res.Archived, res.Kept, res.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().Int("concurrency", 4, "Number of concurrent archive migrations")
}
