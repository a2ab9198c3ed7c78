// ABOUTME: Minimal fake referee box: relays stdin lines to every connected station.
// ABOUTME: Usage: fake-refbox [-listen :28097]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
)

func main() {
	listen := flag.String("listen", ":28097", "TCP address to listen on")
	flag.Parse()

	if err := run(*listen); err != nil {
		log.Fatal(err)
	}
}

func run(listen string) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer ln.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var (
		mu      sync.Mutex
		clients = map[net.Conn]struct{}{}
	)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		mu.Lock()
		for c := range clients {
			_ = c.Close()
		}
		mu.Unlock()
	}()

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			line := sc.Text() + "\n"
			mu.Lock()
			for c := range clients {
				if _, err := c.Write([]byte(line)); err != nil {
					fmt.Fprintf(os.Stderr, "dropping %s: %v\n", c.RemoteAddr(), err)
					_ = c.Close()
					delete(clients, c)
				}
			}
			fmt.Fprintf(os.Stderr, "sent to %d stations\n", len(clients))
			mu.Unlock()
		}
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "fake refbox listening on %s, type messages to broadcast\n", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		fmt.Fprintf(os.Stderr, "station connected from %s\n", conn.RemoteAddr())
		mu.Lock()
		clients[conn] = struct{}{}
		mu.Unlock()
	}
}
