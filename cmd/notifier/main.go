// Command notifier runs a replica of the notification service: replicas
// elect a leader over a broadcast channel and only the leader consumes the
// notification queue.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
