// streamtest connects to a relay, registers a role, and prints the frames it
// receives. As a sensor it can also publish synthetic readings.
// Usage:
//
//	go run ./cmd/streamtest --url ws://localhost:8080/ws --role dashboard
//	go run ./cmd/streamtest --role sensor --send-interval 100ms
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/gait-relay/internal/registry"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "relay WebSocket URL")
	roleName := flag.String("role", "dashboard", "role to register as (sensor, processor, dashboard)")
	sendInterval := flag.Duration("send-interval", 0, "publish a synthetic sensor frame this often; 0 disables")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	role, err := registry.ParseRole(*roleName)
	if err != nil {
		logger.Error("invalid role", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"kind": "register", "role": string(role)}); err != nil {
		logger.Error("failed to register", "error", err)
		os.Exit(1)
	}
	logger.Info("registered", "url", *url, "role", role)

	var received, sent atomic.Int64

	go func() {
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("connection closed", "error", err)
				}
				return
			}
			received.Add(1)
			printFrame(data, *verbose)
		}
	}()

	// Writes happen only on this goroutine.
	var sendTick <-chan time.Time
	if *sendInterval > 0 {
		t := time.NewTicker(*sendInterval)
		defer t.Stop()
		sendTick = t.C
	}

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	logger.Info("streaming started - press Ctrl+C to stop")

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			logger.Info("shutdown complete", "received", received.Load(), "sent", sent.Load())
			return

		case now := <-sendTick:
			if err := conn.WriteJSON(syntheticReading(now.Sub(start))); err != nil {
				logger.Error("send failed", "error", err)
				cancel()
				continue
			}
			sent.Add(1)

		case <-statsTicker.C:
			logger.Info("stats", "received", received.Load(), "sent", sent.Load())
		}
	}
}

// syntheticReading produces a gait-like sinusoid so processors have something
// to chew on.
func syntheticReading(elapsed time.Duration) map[string]any {
	phase := elapsed.Seconds() * 2 * math.Pi
	return map[string]any{
		"kind":    "sensor",
		"accel_x": math.Round(math.Sin(phase)*1000) / 1000,
		"accel_z": math.Round((9.81+math.Cos(2*phase))*1000) / 1000,
		"t_ms":    elapsed.Milliseconds(),
	}
}

func printFrame(data []byte, verbose bool) {
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		fmt.Printf("[RAW] %s\n", data)
		return
	}

	if verbose {
		out, _ := json.MarshalIndent(frame, "", "  ")
		fmt.Printf("[FRAME] %s\n", out)
		return
	}

	kind := frame["kind"]
	if kind == nil {
		kind = frame["type"]
	}
	fmt.Printf("[%v] origin=%v ts=%v fields=%d\n",
		kind, frame["originIdentity"], frame["serverTimestamp"], len(frame))
}
