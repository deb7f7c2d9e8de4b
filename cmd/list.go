package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/quickserve/expo/pkg/entry"
	"github.com/quickserve/expo/pkg/reconcile"
	"github.com/spf13/cobra"
)

// listCmd does a single fetch and prints the current dashboard state.
// It only reads: no seen-marking, no alarms.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch the order store once and print orders and messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		showAccepted, _ := cmd.Flags().GetBool("accepted")

		client, err := newRemoteClient()
		if err != nil {
			return err
		}
		store, release, err := openAcks()
		if err != nil {
			return err
		}
		defer release()

		records, err := client.FetchAll(cmd.Context())
		if err != nil {
			return err
		}
		orders, messages := entry.ClassifyAll(records)
		now := time.Now()
		snap := reconcile.Snapshot{
			Orders:    orders,
			Messages:  messages,
			Acks:      store.Sets(),
			FetchedAt: now,
		}

		fmt.Printf("Orders today: %d\n\n", snap.OrdersToday(now))

		if showAccepted {
			printOrders("ACCEPTED ORDERS (today/yesterday)", snap.RecentAccepted(now), now)
		} else {
			printOrders("PENDING ORDERS", snap.Unaccepted(), now)
		}

		unread := snap.UnreadMessages()
		fmt.Printf("MESSAGES (%d unread)\n", len(unread))
		for _, m := range unread {
			fmt.Printf("  %s  %s  %s  %q\n", m.ID, m.CallerName, m.CallerPhone, m.Reason)
		}
		return nil
	},
}

func printOrders(title string, orders []entry.Entry, now time.Time) {
	fmt.Printf("%s (%d)\n", title, len(orders))
	for _, o := range orders {
		line := fmt.Sprintf("  %s  #%s  %s", o.ID, o.OrderID, o.CustomerName)
		if o.OrderType != "" {
			line += "  " + strings.ToUpper(string(o.OrderType))
		}
		if o.DeliveryAddress != "" {
			line += "  " + o.DeliveryAddress
		}
		if elapsed := reconcile.Elapsed(o, now); elapsed != "" {
			line += "  (" + elapsed + ")"
		}
		fmt.Println(line)
		fmt.Printf("    %s  %s  pickup %s\n", strings.Join(o.Items, ", "), o.TotalPrice, o.PickupTime)
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("accepted", false, "Show accepted orders from today and yesterday instead of pending ones")
}
