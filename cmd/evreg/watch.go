package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/evreg/internal/client"
	"github.com/alfredjeanlab/evreg/internal/events"
	"github.com/alfredjeanlab/evreg/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:         "watch",
	Short:       "Stream registration and reconciliation events",
	GroupID:     "catalog",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{streamingAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("EVREG_NATS_URL")
		}
		if natsURL == "" {
			if r, ok := activeRemote(); ok {
				natsURL = r.NATSURL
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			if len(topics) == 0 {
				topics = []string{events.TopicAll}
			}
			return watchNATS(ctx, cmd.OutOrStdout(), natsURL, topics)
		}
		return watchSSE(ctx, cmd.OutOrStdout(), httpURL, topics)
	},
}

// watchNATS prints every message matching patterns until ctx is done.
func watchNATS(ctx context.Context, w io.Writer, natsURL string, patterns []string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return err
	}
	defer sub.Close()

	msgs := make(chan events.Message)
	var wg sync.WaitGroup
	for _, pattern := range patterns {
		ch, err := sub.Subscribe(ctx, pattern)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range ch {
				select {
				case msgs <- m:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(msgs)
	}()

	for m := range msgs {
		printStreamEvent(w, m.Topic, m.Data)
	}
	if n := sub.Dropped(); n > 0 {
		log.Printf("nats: %d events dropped while the terminal lagged", n)
	}
	return nil
}

// watchSSE follows the server's event stream until ctx is done or the
// server closes it.
func watchSSE(ctx context.Context, w io.Writer, baseURL string, topics []string) error {
	body, err := client.NewHTTPClient(baseURL).Stream(ctx, topics)
	if err != nil {
		return err
	}
	defer body.Close()

	err = readSSE(body, func(topic string, data []byte) {
		printStreamEvent(w, topic, data)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readSSE parses a text/event-stream body and calls fn once per event.
// Comment lines and ids are ignored.
func readSSE(r io.Reader, fn func(topic string, data []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var topic string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				fn(topic, []byte(strings.Join(data, "\n")))
			}
			topic, data = "", nil
		case strings.HasPrefix(line, "event:"):
			topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return sc.Err()
}

func printStreamEvent(w io.Writer, topic string, data []byte) {
	fmt.Fprintf(w, "%s %s %s\n", ui.RenderMuted(time.Now().Format("15:04:05")), ui.RenderAccent(topic), data)
}

func init() {
	watchCmd.Flags().StringSlice("topics", nil, "topics or patterns to follow (default: all evreg topics)")
	watchCmd.Flags().String("nats", "", "read from NATS directly instead of the server stream")
}
