// pushprobe sends a test message through every configured notification
// channel and prints the per-channel summary.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/TsubakiDev/btr/internal/config"
	"github.com/TsubakiDev/btr/internal/notify"
)

func main() {
	path := "push.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.LoadPush(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", path, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok, summary := notify.Dispatch(ctx, notify.Message{
		Title: "btr push test",
		Body:  fmt.Sprintf("channel probe at %s", time.Now().Format(time.RFC3339)),
	}, cfg)

	fmt.Println(summary)
	if !ok {
		os.Exit(1)
	}
}
