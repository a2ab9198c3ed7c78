// ABOUTME: Minimal fake robot for field testing: prints parameter commands, reports JSON telemetry.
// ABOUTME: Usage: fake-robot [-listen :9001] [-x 2 -y 4] [-interval 200ms]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/teamera/basestation/internal/agent"
	"github.com/teamera/basestation/internal/field"
)

func main() {
	listen := flag.String("listen", ":9001", "UDP address to listen on")
	x := flag.Float64("x", 2, "Starting x position in meters")
	y := flag.Float64("y", 4, "Starting y position in meters")
	interval := flag.Duration("interval", 200*time.Millisecond, "Telemetry interval")
	flag.Parse()

	if err := run(*listen, orb.Point{*x, *y}, *interval); err != nil {
		log.Fatal(err)
	}
}

func run(listen string, start orb.Point, interval time.Duration) error {
	conn, err := net.ListenPacket("udp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Fprintf(os.Stderr, "fake robot listening on %s\n", conn.LocalAddr())

	var (
		mu   sync.Mutex
		peer net.Addr
	)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var step float64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			mu.Lock()
			to := peer
			mu.Unlock()
			if to == nil {
				continue
			}
			step++
			payload, err := json.Marshal(telemetry(start, step))
			if err != nil {
				continue
			}
			if _, err := conn.WriteTo(payload, to); err != nil {
				fmt.Fprintf(os.Stderr, "telemetry send failed: %v\n", err)
			}
		}
	}()

	buf := make([]byte, 64*1024)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		mu.Lock()
		if peer == nil || peer.String() != from.String() {
			fmt.Fprintf(os.Stderr, "station at %s\n", from)
		}
		peer = from
		mu.Unlock()

		line := strings.TrimSpace(string(buf[:n]))
		if line != "" {
			fmt.Printf("< %s\n", line)
		}
	}
}

// telemetry circles the robot around start and keeps the ball a meter ahead.
func telemetry(start orb.Point, step float64) agent.Telemetry {
	angle := math.Mod(step*5, 360)
	rad := angle * math.Pi / 180
	pos := orb.Point{start.X() + 0.5*math.Cos(rad), start.Y() + 0.5*math.Sin(rad)}
	heading := field.NormalizeHeading(angle + 90)
	hrad := heading * math.Pi / 180
	ball := orb.Point{pos.X() + math.Cos(hrad), pos.Y() + math.Sin(hrad)}
	obstacles := []orb.Point{{field.Width / 2, field.Height / 2}}
	return agent.Telemetry{
		Position:    &pos,
		Orientation: &heading,
		Ball:        &ball,
		Obstacles:   &obstacles,
	}
}
