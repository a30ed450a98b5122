// Command record subscribes to the configured feed channels and persists
// every message to a size-capped SQLite store for later inspection.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	kalshi "github.com/tradeforge/kalshi-go"
	"github.com/tradeforge/kalshi-go/internal/config"
	"github.com/tradeforge/kalshi-go/internal/recorder"
	"github.com/tradeforge/kalshi-go/internal/telemetry"
)

func main() {
	settingsPath := flag.String("settings", "record.yaml", "path to recorder settings YAML")
	flag.Parse()

	env := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(env.LogLevel))

	settings, err := config.LoadRecordSettings(*settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load settings: %v\n", err)
		os.Exit(1)
	}

	client, err := kalshi.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}

	store, err := recorder.Open(settings.DBPath, settings.MaxStoreBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed := client.Feed()
	for _, ch := range settings.Channels {
		channel := kalshi.Channel(ch)
		if !channel.IsValid() {
			telemetry.Warnf("record: skipping unknown channel %q", ch)
			continue
		}
		feed.On(channel, func(msg kalshi.Message) {
			raw, err := json.Marshal(msg)
			if err != nil {
				return
			}
			if err := store.Insert(string(msg.Channel()), msg.MarketTicker(), raw); err != nil {
				telemetry.Warnf("record: %v", err)
			}
		})
		if err := feed.Subscribe(channel, settings.Tickers...); err != nil {
			telemetry.Warnf("record: subscribe %s: %v", channel, err)
		}
	}

	if err := feed.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "feed start: %v\n", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		feed.Stop()
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats := feed.Stats()
				telemetry.Infof("record: connected=%v msgs=%d reconnects=%d rows=%d",
					stats.Connected, stats.MessagesReceived, stats.ReconnectCount, store.Count())
			}
		}
	})

	if err := g.Wait(); err != nil {
		telemetry.Errorf("record: %v", err)
	}
}
