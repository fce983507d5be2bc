// Command wfcdemo drives an Engine through repeated Tick calls from a
// viewer fixed at the origin with velocity (1,0,0), which shifts the
// scheduler's look-ahead point, logging lifecycle and conflict events as
// they arrive.
// It exists to exercise the engine end-to-end, not as a rendering host.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	wfcterrain "github.com/firestar-voxel/wfcterrain"
	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/scheduler"
	"github.com/firestar-voxel/wfcterrain/internal/telemetry"
	"github.com/firestar-voxel/wfcterrain/internal/wfcconfig"
)

func main() {
	var cfgPath string
	var tickRate time.Duration
	flag.StringVar(&cfgPath, "config", "", "path to engine configuration file")
	flag.DurationVar(&tickRate, "tick", 200*time.Millisecond, "interval between engine ticks")
	flag.Parse()

	cfg, err := wfcconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	hooks := telemetry.StdLog{}
	eng, err := wfcterrain.New(cfg, hooks)
	if err != nil {
		log.Fatalf("initialise engine: %v", err)
	}
	defer eng.Close()

	eng.SubscribeEvents(scheduler.EventChunkStateChanged, func(ev scheduler.Event) {
		log.Printf("chunk %v -> %s", ev.Chunk, ev.State)
	})
	eng.SubscribeEvents(scheduler.EventBoundaryConflict, func(ev scheduler.Event) {
		log.Printf("boundary conflict at %v/%v vs %v (cell %d)", ev.Conflict.ChunkA, ev.Chunk, ev.Conflict.ChunkB, ev.Conflict.Index)
	})
	eng.SubscribeEvents(scheduler.EventContradiction, func(ev scheduler.Event) {
		log.Printf("contradiction in chunk %v: %v", ev.Chunk, ev.Err)
	})

	eng.UpdateViewer(coords.WorldPos{}, coords.WorldPos{X: 1, Z: 0})

	ctx, cancel := signalContext()
	defer cancel()

	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("shutting down, %d chunks loaded", eng.LoadedChunks())
			return
		case <-ticker.C:
			eng.Tick()
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
