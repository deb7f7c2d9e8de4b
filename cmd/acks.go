package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// acksCmd prints the durable acknowledgment sets.
var acksCmd = &cobra.Command{
	Use:   "acks",
	Short: "Show the durable acknowledgment sets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, release, err := openAcks()
		if err != nil {
			return err
		}
		defer release()

		sets := store.Sets()
		printSet("accepted orders", sets.Accepted)
		printSet("seen orders", sets.SeenOrders)
		printSet("seen messages", sets.SeenMessages)
		printSet("read messages", sets.ReadMessages)
		return nil
	},
}

func printSet(name string, set map[string]struct{}) {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Printf("%s (%d)\n", name, len(ids))
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
}

func init() {
	rootCmd.AddCommand(acksCmd)
}
