// Command watch maintains live order books for the given markets and
// prints best bid/ask as quotes move.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	kalshi "github.com/tradeforge/kalshi-go"
	"github.com/tradeforge/kalshi-go/internal/config"
	"github.com/tradeforge/kalshi-go/internal/telemetry"
)

func main() {
	tickersFlag := flag.String("tickers", "", "comma-separated market tickers")
	interval := flag.Duration("interval", 2*time.Second, "print interval")
	flag.Parse()

	env := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(env.LogLevel))

	tickers := strings.Split(*tickersFlag, ",")
	if *tickersFlag == "" || len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/watch -tickers TICKER-A,TICKER-B")
		os.Exit(1)
	}

	client, err := kalshi.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Books are written by the feed's dispatch goroutine and read by the
	// print loop, so access goes through mu.
	var mu sync.Mutex
	books := make(map[string]*kalshi.Orderbook, len(tickers))
	for _, t := range tickers {
		books[t] = kalshi.NewOrderbook(t)
	}

	feed := client.Feed()
	feed.On(kalshi.ChannelOrderbookDelta, func(msg kalshi.Message) {
		mu.Lock()
		defer mu.Unlock()
		book, ok := books[msg.MarketTicker()]
		if !ok {
			return
		}
		if err := book.Apply(msg); err != nil {
			telemetry.Warnf("watch: %v", err)
		}
	})

	if err := feed.Subscribe(kalshi.ChannelOrderbookDelta, tickers...); err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}
	if err := feed.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "feed start: %v\n", err)
		os.Exit(1)
	}
	defer feed.Stop()

	printTicker := time.NewTicker(*interval)
	defer printTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-printTicker.C:
			mu.Lock()
			for _, t := range tickers {
				book := books[t]
				bid, bidOK := book.BestBid()
				ask, askOK := book.BestAsk()
				if !bidOK && !askOK {
					fmt.Printf("%-30s (no book yet)\n", t)
					continue
				}
				fmt.Printf("%-30s bid=%s ask=%s yes_depth=%d no_depth=%d\n",
					t, fmtPrice(bid, bidOK), fmtPrice(ask, askOK),
					book.Depth(kalshi.SideYes), book.Depth(kalshi.SideNo))
			}
			mu.Unlock()
		}
	}
}

func fmtPrice(p int, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%d¢", p)
}
