// Command shard runs the Shard role of the distributed variable memory
// system: a single-threaded dispatcher (internal/shardsvc) that owns a
// local Store and executes ALLOC/READ/MODIFY/FREE/MAP/FILTER/REDUCE
// against it.
//
// It replaces the teacher's cmd/node — registration-with-retry against a
// coordinator, an HTTP server, graceful shutdown — generalized from
// on-demand key/value shards to one variable-memory dispatch loop per
// process.
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

	"github.com/dreamware/distmem/internal/clock"
	"github.com/dreamware/distmem/internal/clusterproto"
	"github.com/dreamware/distmem/internal/obslog"
	"github.com/dreamware/distmem/internal/obsmetrics"
	"github.com/dreamware/distmem/internal/shardsvc"
)

func main() {
	var (
		rank         int
		listenAddr   string
		publicAddr   string
		directorAddr string
		lamport      bool
		debugLog     bool
	)

	root := &cobra.Command{
		Use:   "shard",
		Short: "Run a Shard worker for the distributed variable memory system",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rank <= 0 {
				return fmt.Errorf("shard: --rank must be >= 1 (rank 0 is the Director)")
			}
			if publicAddr == "" {
				publicAddr = "http://127.0.0.1" + listenAddr
			}
			return run(cmd.Context(), rank, listenAddr, publicAddr, directorAddr, lamport, debugLog)
		},
	}

	root.Flags().IntVar(&rank, "rank", 0, "this Shard's rank (must be >= 1)")
	root.Flags().StringVar(&listenAddr, "listen", ":9001", "address this Shard listens on")
	root.Flags().StringVar(&publicAddr, "addr", "", "externally reachable address for this Shard (default: derived from --listen)")
	root.Flags().StringVar(&directorAddr, "director-addr", "http://127.0.0.1:9000", "Director's address")
	root.Flags().BoolVar(&lamport, "lamport-clock", false, "use a Lamport clock instead of wall-clock timestamps")
	root.Flags().BoolVar(&debugLog, "debug", false, "enable verbose development logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rank int, listenAddr, publicAddr, directorAddr string, lamport bool, debugLog bool) error {
	log := obslog.New("shard", rank, debugLog)
	defer log.Sync() //nolint:errcheck

	var c clock.Clock = clock.WallClock{}
	if lamport {
		c = clock.NewLamportClock()
	}

	metrics := obsmetrics.NewShardMetrics(prometheus.DefaultRegisterer)
	d := shardsvc.New(shardsvc.Config{
		Rank:         rank,
		DirectorAddr: directorAddr,
		Clock:        c,
		Log:          log,
		Metrics:      metrics,
	})

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	go d.Run(dispatchCtx)

	server := shardsvc.NewServer(d)
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("shard listening", "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	regCtx, cancelReg := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelReg()
	if err := clusterproto.Register(regCtx, directorAddr, rank, publicAddr); err != nil {
		return fmt.Errorf("shard: failed to register with director: %w", err)
	}
	log.Infow("registered with director", "director_addr", directorAddr)

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
