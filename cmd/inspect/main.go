// Command inspect queries a recorded feed store.
package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

func main() {
	ticker := flag.String("ticker", "", "filter by market ticker")
	channel := flag.String("channel", "", "filter by channel (ticker, trade, orderbook_delta, ...)")
	n := flag.Int("n", 10, "max results to return")
	pretty := flag.Bool("pretty", false, "pretty-print JSON")
	dbPath := flag.String("db", "data/feed.db", "path to feed store")
	flag.Parse()

	if *ticker == "" && *channel == "" {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/inspect -ticker <TICKER> [-channel ticker] [-n 10] [-pretty]")
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(10000)&mode=ro")
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	q := `SELECT id, received, channel, ticker, byte_size, raw FROM feed_payloads WHERE 1=1`
	var args []any
	if *ticker != "" {
		q += ` AND ticker = ?`
		args = append(args, *ticker)
	}
	if *channel != "" {
		q += ` AND channel = ?`
		args = append(args, *channel)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, *n)

	rows, err := db.Query(q, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		var received, channelVal, tickerVal string
		var byteSize int
		var raw []byte
		if err := rows.Scan(&id, &received, &channelVal, &tickerVal, &byteSize, &raw); err != nil {
			fmt.Fprintf(os.Stderr, "scan: %v\n", err)
			continue
		}
		count++

		rawStr := string(raw)
		if *pretty {
			var buf bytes.Buffer
			if err := json.Indent(&buf, raw, "", "  "); err == nil {
				rawStr = buf.String()
			}
		}

		fmt.Printf("--- id=%d channel=%s ticker=%s received=%s bytes=%d ---\n%s\n\n",
			id, channelVal, tickerVal, received, byteSize, rawStr)
	}
	if count == 0 {
		fmt.Println("(no payloads found)")
	} else {
		fmt.Printf("(%d results)\n", count)
	}
}
