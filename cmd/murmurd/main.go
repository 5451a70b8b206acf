package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"murmur/internal/config"
	"murmur/internal/daemon"
	"murmur/internal/ipc"
	"murmur/internal/logging"
	"murmur/internal/notifications"
	"murmur/internal/recordings"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	socketFlag := flag.String("socket", "", "IPC socket path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := recordings.Open(cfg)
	if err != nil {
		logger.Error("open recordings store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	wf := buildWorkflow(cfg, store, notifier, logger)

	d := daemon.New(cfg, wf, store, notifier, logger)
	defer d.Stop()

	socketPath := strings.TrimSpace(*socketFlag)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	server, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer server.Close()
	server.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	<-ctx.Done()
	logger.Info("murmurd shutting down")
}
