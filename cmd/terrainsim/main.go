package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxelterrain/internal/config"
)

func main() {
	var (
		cfgPath string
		opts    simOptions
	)
	flag.StringVar(&cfgPath, "config", "terrain.yml", "path to terrain configuration file")
	flag.StringVar(&opts.SaveDir, "save-dir", "", "directory holding the save log (defaults to persistence.dir)")
	flag.BoolVar(&opts.NewGame, "new", false, "ignore any saved world and generate a new one")
	flag.IntVar(&opts.Steps, "steps", 8, "viewpoint moves before exiting, 0 walks until interrupted")
	flag.IntVar(&opts.StepDistance, "step-distance", 0, "voxels per viewpoint move, 0 uses two chunk widths")
	flag.StringVar(&opts.PreviewDir, "preview-dir", "", "write isometric PNG previews of the chunks under the final viewpoint")
	flag.Parse()

	logger := log.New(os.Stderr, "terrain ", log.LstdFlags|log.Lmicroseconds)

	if wrote, err := writeConfigFromEnv(cfgPath); err != nil {
		log.Fatalf("apply config from environment: %v", err)
	} else if wrote {
		logger.Printf("configuration from environment written to %s", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := config.WriteDefault(cfgPath); err != nil {
				log.Fatalf("write default config: %v", err)
			}
			logger.Printf("no configuration found, default configuration written to %s", cfgPath)
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	sim, err := newSimulation(ctx, cfg, opts, logger)
	if err != nil {
		log.Fatalf("initialise terrain: %v", err)
	}
	defer sim.Close()

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("terrain exited with error: %v", err)
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
			return
		}

		// Ensure the process terminates if the final save stalls.
		time.AfterFunc(10*time.Second, func() {
			log.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
