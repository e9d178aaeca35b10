package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mumpsdb/cache"
	"mumpsdb/command"
	"mumpsdb/config"
	"mumpsdb/core"
	"mumpsdb/embedding"
	"mumpsdb/monitoring"
	"mumpsdb/persistence"
	"mumpsdb/server"
	"mumpsdb/shutdown"
)

const defaultConfigFile = "mumpsdb.conf"

type launchMode struct {
	socket     bool
	console    bool
	configFile string
}

func main() {
	mode, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(1)
	}
	if mode == nil {
		printUsage()
		os.Exit(0)
	}

	if err := run(mode); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs interprets the launch flags. A nil mode with nil error means
// help was requested.
func parseArgs(args []string) (*launchMode, error) {
	mode := &launchMode{configFile: defaultConfigFile}

	for i := 0; i < len(args); i++ {
		switch strings.ToLower(args[i]) {
		case "--socket", "-s":
			mode.socket = true
		case "--console", "-c":
			mode.console = true
		case "--both", "-b":
			mode.socket = true
			mode.console = true
		case "--help", "-h":
			return nil, nil
		case "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--config requires a file argument")
			}
			i++
			mode.configFile = args[i]
		default:
			return nil, fmt.Errorf("Unknown argument: %s", args[i])
		}
	}

	// No mode flags means both
	if !mode.socket && !mode.console {
		mode.socket = true
		mode.console = true
	}
	return mode, nil
}

func printUsage() {
	fmt.Println("MUMPS-like Database Server")
	fmt.Println("Usage: mumpsdb [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --socket, -s     Start in socket server mode only")
	fmt.Println("  --console, -c    Start in console mode only")
	fmt.Println("  --both, -b       Start in both modes (default)")
	fmt.Println("  --config FILE    Configuration file (default " + defaultConfigFile + ")")
	fmt.Println("  --help, -h       Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  mumpsdb --socket    # Socket server only on port 9090")
	fmt.Println("  mumpsdb --console   # Console mode only")
	fmt.Println("  mumpsdb             # Default: both modes")
}

func run(mode *launchMode) error {
	cfg, err := config.LoadFile(mode.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	log := logger.WithField("component", "main")

	metrics := monitoring.NewMetrics()

	queryCache := cache.NewQueryCache(cfg.Cache.MaxSize)
	queryCache.StartCleanup(time.Minute)

	store := core.NewStore(queryCache)

	embedService := embedding.NewService(embedding.Config{
		Enabled:   cfg.Database.AutoEmbeddingEnabled,
		BaseURL:   cfg.EmbeddingURL(),
		Model:     cfg.RAG.EmbeddingModel,
		Threshold: cfg.RAG.SimilarityThreshold,
	}, metrics, logger.WithField("component", "embedding"))

	execOpts := command.Options{
		DefaultDepth: cfg.Database.QueryDefaultDepth,
		MaxDepth:     cfg.Database.QueryMaxDepth,
		DefaultTopK:  cfg.RAG.SearchDefaultTopK,
		MaxTopK:      cfg.RAG.SearchMaxTopK,
	}
	executor := command.NewExecutor(store, embedService, metrics, execOpts, logger.WithField("component", "executor"))

	snapshotService, err := persistence.NewSnapshotService(
		store, cfg.Persistence.SnapshotFile, cfg.Persistence.SnapshotCompression,
		metrics, logger.WithField("component", "snapshot"))
	if err != nil {
		return err
	}

	aofWriter := persistence.NewAOFWriter(
		cfg.Persistence.AOFFile, cfg.Persistence.AOFQueueSize,
		metrics, logger.WithField("component", "aof"))

	// Truncating the log before each snapshot keeps replay bounded to the
	// tail; overlapping records are idempotent on replay.
	saveSnapshot := func() {
		if err := aofWriter.Truncate(); err != nil {
			log.WithError(err).Error("AOF truncate failed, skipping snapshot")
			return
		}
		if err := snapshotService.Save(); err != nil {
			log.WithError(err).Error("snapshot failed")
		}
	}
	snapshotStop := make(chan struct{})

	startupMgr := shutdown.NewStartupManager(60*time.Second, logger.WithField("component", "startup"))
	startupMgr.Register("snapshot-load", 1, func(ctx context.Context) error {
		return snapshotService.Load()
	})
	startupMgr.Register("aof-replay", 2, func(ctx context.Context) error {
		// Replay goes through a bare executor so no records are
		// re-appended and no embeddings are generated while catching up.
		replayExec := command.NewExecutor(store, nil, metrics, execOpts, logger.WithField("component", "replay"))
		replaySess := command.NewSession()
		return persistence.Replay(cfg.Persistence.AOFFile, metrics, logger.WithField("component", "replay"), func(record string) error {
			response, _ := replayExec.Execute(replaySess, record)
			if strings.HasPrefix(response, "ERROR:") {
				return fmt.Errorf("%s", response)
			}
			return nil
		})
	})
	startupMgr.Register("aof-writer", 3, func(ctx context.Context) error {
		if err := aofWriter.Start(); err != nil {
			return err
		}
		executor.SetAOF(aofWriter.Append)
		return nil
	})
	startupMgr.Register("snapshot-scheduler", 4, func(ctx context.Context) error {
		go func() {
			interval := time.Duration(cfg.Persistence.AutoSaveInterval) * time.Minute
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					saveSnapshot()
				case <-snapshotStop:
					return
				}
			}
		}()
		return nil
	})

	if err := startupMgr.Start(context.Background()); err != nil {
		return err
	}

	shutdownMgr := shutdown.NewManager(30*time.Second, logger.WithField("component", "shutdown"))
	shutdownMgr.Listen()

	var socketServer *server.Server
	shutdownMgr.Register("server", 1, func(ctx context.Context) error {
		if socketServer != nil {
			return socketServer.Stop(ctx)
		}
		return nil
	})
	shutdownMgr.Register("aof", 2, func(ctx context.Context) error {
		aofWriter.Stop(5 * time.Second)
		return nil
	})
	shutdownMgr.Register("snapshot", 3, func(ctx context.Context) error {
		close(snapshotStop)
		return snapshotService.Save()
	})
	shutdownMgr.Register("cache", 4, func(ctx context.Context) error {
		queryCache.Stop()
		return nil
	})

	group, ctx := errgroup.WithContext(context.Background())

	if mode.socket {
		socketServer = server.NewServer(
			cfg.ListenAddr(), cfg.Client.WelcomeMessage, cfg.Server.MaxConnections,
			executor, logger.WithField("component", "server"))
		group.Go(func() error {
			if err := socketServer.Start(); err != nil {
				log.WithError(err).Error("socket server failed")
				shutdownMgr.Shutdown()
				return err
			}
			return nil
		})
		log.WithField("addr", cfg.ListenAddr()).Info("socket server starting")
	}

	if mode.console {
		console := server.NewConsole(executor, os.Stdin, os.Stdout, logger.WithField("component", "console"))
		group.Go(func() error {
			defer shutdownMgr.Shutdown()
			return console.Run(ctx)
		})
	}

	log.Info("server started")
	shutdownMgr.Wait()

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("server shutdown complete")
	return nil
}
