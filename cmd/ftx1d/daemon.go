package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dougsko/ftx1d/pkg/config"
	"github.com/dougsko/ftx1d/pkg/engine"
	"github.com/dougsko/ftx1d/pkg/hardware"
	"github.com/dougsko/ftx1d/pkg/logging"
	"github.com/dougsko/ftx1d/pkg/metrics"
)

// FTX1Daemon wires the core engine to the HTTP API
type FTX1Daemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	coreEngine *engine.CoreEngine
	registry   *prometheus.Registry
	router     *gin.Engine
	webServer  *http.Server
}

// newOpener picks the simulated or the serial transceiver link
func newOpener(cfg *config.Config) hardware.Opener {
	if cfg.Radio.Mock {
		opener := hardware.NewMockOpener()
		opener.Radio.SetVerbose(cfg.Logging.TraceCAT)
		return opener
	}
	return hardware.NewSerialOpener(hardware.LinkConfig{
		CATDevice:   cfg.Radio.CATDevice,
		CATBaudRate: cfg.Radio.CATBaudRate,
		PTTDevice:   cfg.Radio.PTTDevice,
		PTTBaudRate: cfg.Radio.PTTBaudRate,
		PTTGPIOPin:  cfg.Radio.PTTGPIOPin,
	})
}

// NewFTX1Daemon creates a new daemon instance
func NewFTX1Daemon(cfg *config.Config) (*FTX1Daemon, error) {
	return newDaemon(cfg, newOpener(cfg))
}

func newDaemon(cfg *config.Config, opener hardware.Opener) (*FTX1Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &FTX1Daemon{
		config:   cfg,
		ctx:      ctx,
		cancel:   cancel,
		registry: metrics.NewRegistry(),
	}
	appMetrics := metrics.NewAppMetrics(d.registry)
	d.coreEngine = engine.NewCoreEngine(cfg, opener, engine.WithMetrics(appMetrics))

	if err := d.setupWebServer(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup web server: %w", err)
	}
	return d, nil
}

// Start starts the engine and then the web server
func (d *FTX1Daemon) Start() error {
	logging.Info("daemon", "Starting ftx1d daemon...")

	if err := d.coreEngine.Start(); err != nil {
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	if !d.config.Web.Enabled {
		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Infof("daemon", "Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("daemon", "Web server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *FTX1Daemon) Stop() error {
	logging.Info("daemon", "Stopping daemon...")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warnf("daemon", "Web server shutdown error: %v", err)
		}
	}

	var err error
	if d.coreEngine != nil {
		if err = d.coreEngine.Stop(); err != nil {
			logging.Warnf("daemon", "Core engine shutdown error: %v", err)
		}
	}

	d.wg.Wait()

	logging.Info("daemon", "Daemon stopped")
	return err
}

// setupWebServer initializes the router and the HTTP server
func (d *FTX1Daemon) setupWebServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)

		api.GET("/state", d.handleGetState)
		api.POST("/state/refresh", d.handleRefreshState)

		api.GET("/meters", d.handleGetMeters)
		api.PUT("/meters/rate", d.handleSetMeterRate)

		api.PUT("/frequency", d.handleSetFrequency)
		api.POST("/frequency/step", d.handleStepFrequency)
		api.PUT("/mode", d.handleSetMode)
		api.PUT("/agc", d.handleSetAGC)
		api.PUT("/power", d.handleSetPower)
		api.PUT("/preamp", d.handleSetPreamp)
		api.PUT("/notch", d.handleSetNotch)
		api.POST("/notch/tune", d.handleTuneNotch)
		api.PUT("/ptt", d.handleSetPTT)
		api.PUT("/mox", d.handleSetMOX)

		api.POST("/connect", d.handleConnect)
		api.POST("/disconnect", d.handleDisconnect)

		api.GET("/serial/ports", d.handleGetSerialPorts)
	}

	router.GET("/ws/telemetry", d.handleTelemetryWebSocket)

	if d.config.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(metrics.Handler(d.registry)))
	}

	d.router = router
	d.webServer = &http.Server{
		Addr:    net.JoinHostPort(d.config.Web.BindAddress, strconv.Itoa(d.config.Web.Port)),
		Handler: router,
	}
	return nil
}
