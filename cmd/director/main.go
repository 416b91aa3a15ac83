// Command director runs the Director role of the distributed variable
// memory system: the stateful coordinator that places variables across
// registered Shards and exposes the user-facing value API described by
// internal/director.
//
// It replaces the teacher's cmd/coordinator — same shape (an HTTP server,
// a registration endpoint, a health monitor running in the background,
// graceful shutdown on SIGINT/SIGTERM) — wired to an entirely different
// domain: placement and striping of Int/List variables rather than
// key/value shard routing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/distmem/internal/clock"
	"github.com/dreamware/distmem/internal/director"
	"github.com/dreamware/distmem/internal/obslog"
	"github.com/dreamware/distmem/internal/obsmetrics"
)

func main() {
	var (
		listenAddr  string
		maxPerShard int
		lamport     bool
		debugLog    bool
	)

	root := &cobra.Command{
		Use:   "director",
		Short: "Run the Director coordinator for the distributed variable memory system",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), listenAddr, maxPerShard, lamport, debugLog)
		},
	}

	root.Flags().StringVar(&listenAddr, "listen", ":9000", "address the Director listens on for Shard registration and RPC")
	root.Flags().IntVar(&maxPerShard, "max-per-shard", 1000, "maximum element count per Shard (strict upper bound)")
	root.Flags().BoolVar(&lamport, "lamport-clock", false, "use a Lamport clock instead of wall-clock timestamps for modify ordering")
	root.Flags().BoolVar(&debugLog, "debug", false, "enable verbose development logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, listenAddr string, maxPerShard int, lamport bool, debugLog bool) error {
	log := obslog.New("director", 0, debugLog)
	defer log.Sync() //nolint:errcheck

	var c clock.Clock = clock.WallClock{}
	if lamport {
		c = clock.NewLamportClock()
	}

	metrics := obsmetrics.NewDirectorMetrics(prometheus.DefaultRegisterer)
	d := director.New(director.Config{
		MaxPerShard: maxPerShard,
		Clock:       c,
		Log:         log,
		Metrics:     metrics,
	})

	hm := director.NewHealthMonitor(5*time.Second, log)
	go hm.Start(ctx, d)
	defer hm.Stop()

	server := director.NewServer(d, broadcastDirectory(d, log))

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("director listening", "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// broadcastDirectory returns a director.RegisterHook that pushes the
// Director's full rank->address book to every known Shard whenever a new
// one registers, so Shards can dial each other directly for REDUCE hops.
func broadcastDirectory(d *director.Director, log *zap.SugaredLogger) director.RegisterHook {
	return func(rank int, addr string) {
		snapshot := d.Directory().Snapshot()
		go pushDirectoryToAll(d, snapshot, log)
	}
}
