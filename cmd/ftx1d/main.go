package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/ftx1d/pkg/config"
	"github.com/dougsko/ftx1d/pkg/engine"
	"github.com/dougsko/ftx1d/pkg/logging"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file path")
	mock       = flag.Bool("mock", false, "Use the simulated transceiver instead of serial ports")
	version    = flag.Bool("version", false, "Show version information")
)

const Build = "development"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("ftx1d version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *mock {
		cfg.Radio.Mock = true
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Infof("main", "ftx1d version %s starting...", engine.Version)
	if cfg.Radio.Mock {
		logging.Info("main", "Radio: simulated FTX-1")
	} else {
		logging.Infof("main", "Radio: CAT %s @ %d", cfg.Radio.CATDevice, cfg.Radio.CATBaudRate)
	}
	if cfg.Rigctl.Enabled {
		logging.Infof("main", "rigctl bridge: %s:%d", cfg.Rigctl.BindAddress, cfg.Rigctl.Port)
	}
	if cfg.Web.Enabled {
		logging.Infof("main", "Web API: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port)
	}

	daemon, err := NewFTX1Daemon(cfg)
	if err != nil {
		logging.Errorf("main", "Failed to create daemon: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Errorf("main", "Failed to start daemon: %v", err)
		os.Exit(1)
	}

	logging.Info("main", "ftx1d started successfully")

	<-sigChan
	logging.Info("main", "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Errorf("main", "Error during shutdown: %v", err)
	}

	logging.Info("main", "ftx1d stopped")
}
