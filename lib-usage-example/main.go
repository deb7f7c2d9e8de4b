// Example of embedding the expo engine in another program instead of
// running the CLI.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/quickserve/expo/pkg/acks"
	"github.com/quickserve/expo/pkg/alarm"
	"github.com/quickserve/expo/pkg/entry"
	"github.com/quickserve/expo/pkg/reconcile"
	"github.com/quickserve/expo/pkg/remote"
)

func main() {
	client := remote.New("https://qsr-orders-default-rtdb.firebaseio.com")

	store, err := acks.Open("expo.sqlite")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	var sess *reconcile.Session
	sched := alarm.New(alarm.Config{
		Qualify: func(cat entry.Category) bool {
			return cat == entry.CategoryOrder && sess.HasUnacceptedOrders()
		},
	})

	sess = reconcile.New(reconcile.Config{
		Remote:   client,
		Acks:     store,
		Alarms:   sched,
		Interval: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	go func() {
		if err := sess.Run(ctx); err != nil {
			log.Println(err)
		}
	}()

	time.Sleep(10 * time.Second)
	snap := sess.Snapshot()
	for _, o := range snap.Unaccepted() {
		fmt.Printf("pending order %s from %s\n", o.ID, o.CustomerName)
	}
}
