package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/ftx1d/pkg/cat"
	"github.com/dougsko/ftx1d/pkg/engine"
	"github.com/dougsko/ftx1d/pkg/hardware"
	"github.com/dougsko/ftx1d/pkg/logging"
	"github.com/dougsko/ftx1d/pkg/radio"
)

// telemetryInterval is the websocket push period (10 Hz)
const telemetryInterval = 100 * time.Millisecond

// writeError maps engine and radio errors onto HTTP status codes
func writeError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case radio.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNotConnected), errors.Is(err, engine.ErrNotRunning),
		errors.Is(err, cat.ErrClosed), errors.Is(err, cat.ErrNoLine):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// withRadio runs fn against the connected radio, or answers 503
func (d *FTX1Daemon) withRadio(c *gin.Context, fn func(*radio.Radio)) {
	r, err := d.coreEngine.Radio()
	if err != nil {
		writeError(c, err)
		return
	}
	fn(r)
}

// handleGetStatus returns daemon and link status
func (d *FTX1Daemon) handleGetStatus(c *gin.Context) {
	status := d.coreEngine.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"config": gin.H{
			"mock":           d.config.Radio.Mock,
			"cat_device":     d.config.Radio.CATDevice,
			"cat_baud_rate":  d.config.Radio.CATBaudRate,
			"ptt_device":     d.config.Radio.PTTDevice,
			"rigctl_enabled": d.config.Rigctl.Enabled,
			"rigctl_port":    d.config.Rigctl.Port,
		},
	})
}

// handleGetState returns the most recent full-state read
func (d *FTX1Daemon) handleGetState(c *gin.Context) {
	state, ok := d.coreEngine.LatestState()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no state has been read yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":     state,
		"connected": d.coreEngine.IsConnected(),
	})
}

// handleRefreshState schedules an immediate full-state read
func (d *FTX1Daemon) handleRefreshState(c *gin.Context) {
	if !d.coreEngine.IsConnected() {
		writeError(c, engine.ErrNotConnected)
		return
	}
	d.coreEngine.RequestResync()
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

// handleGetMeters returns the latest telemetry snapshot
func (d *FTX1Daemon) handleGetMeters(c *gin.Context) {
	snap, ok := d.coreEngine.LatestMeters()
	c.JSON(http.StatusOK, gin.H{
		"available": ok,
		"snapshot":  snap,
		"rate_hz":   d.coreEngine.PollRate(),
	})
}

// handleSetMeterRate changes the telemetry poll rate
func (d *FTX1Daemon) handleSetMeterRate(c *gin.Context) {
	var req struct {
		RateHz float64 `json:"rate_hz" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied := d.coreEngine.SetPollRate(req.RateHz)
	c.JSON(http.StatusOK, gin.H{"rate_hz": applied})
}

// handleSetFrequency tunes VFO-A; out-of-range values are clamped
func (d *FTX1Daemon) handleSetFrequency(c *gin.Context) {
	var req struct {
		FrequencyHz int `json:"frequency_hz" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		applied, err := r.SetFrequency(req.FrequencyHz)
		if err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"frequency_hz": applied})
	})
}

// handleStepFrequency moves VFO-A by a signed step
func (d *FTX1Daemon) handleStepFrequency(c *gin.Context) {
	var req struct {
		StepHz int `json:"step_hz" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		applied, err := r.StepFrequency(req.StepHz)
		if err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"frequency_hz": applied})
	})
}

// sideRequest is embedded by requests that address one receiver
type sideRequest struct {
	Side string `json:"side"`
}

func (s sideRequest) parse(c *gin.Context) (radio.Side, bool) {
	side, err := radio.ParseSide(s.Side)
	if err != nil {
		writeError(c, err)
		return radio.SideMain, false
	}
	return side, true
}

// handleSetMode sets the operating mode of one receiver
func (d *FTX1Daemon) handleSetMode(c *gin.Context) {
	var req struct {
		sideRequest
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, ok := req.parse(c)
	if !ok {
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		if err := r.SetMode(side, req.Mode); err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"side": side.String(), "mode": req.Mode})
	})
}

// handleSetAGC sets the AGC of one receiver
func (d *FTX1Daemon) handleSetAGC(c *gin.Context) {
	var req struct {
		sideRequest
		AGC string `json:"agc" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, ok := req.parse(c)
	if !ok {
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		if err := r.SetAGC(side, req.AGC); err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"side": side.String(), "agc": req.AGC})
	})
}

// handleSetPower sets the output power within the attached device's range
func (d *FTX1Daemon) handleSetPower(c *gin.Context) {
	var req struct {
		Watts int `json:"watts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		if err := r.SetPower(req.Watts); err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"watts": req.Watts})
	})
}

// handleSetPreamp sets the pre-amp level of a band group
func (d *FTX1Daemon) handleSetPreamp(c *gin.Context) {
	var req struct {
		Band  string `json:"band" binding:"required"`
		Level string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		if err := r.SetPreamp(req.Band, req.Level); err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"band": req.Band, "level": req.Level})
	})
}

// handleSetNotch writes the notch enable flag and/or frequency
func (d *FTX1Daemon) handleSetNotch(c *gin.Context) {
	var req struct {
		sideRequest
		Enabled     *bool `json:"enabled"`
		FrequencyHz *int  `json:"frequency_hz"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, ok := req.parse(c)
	if !ok {
		return
	}

	settings := radio.NotchSettings{Enabled: req.Enabled, FrequencyHz: req.FrequencyHz}
	d.withRadio(c, func(r *radio.Radio) {
		if err := r.SetNotch(side, settings); err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"side": side.String(), "notch": settings})
	})
}

// handleTuneNotch points the notch at an audio frequency
func (d *FTX1Daemon) handleTuneNotch(c *gin.Context) {
	var req struct {
		sideRequest
		FrequencyHz float64 `json:"frequency_hz" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, ok := req.parse(c)
	if !ok {
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		settings, err := r.TuneNotch(side, req.FrequencyHz)
		if err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"side": side.String(), "notch": settings})
	})
}

type switchRequest struct {
	On *bool `json:"on" binding:"required"`
}

// handleSetPTT keys or unkeys the transmitter via the RTS line
func (d *FTX1Daemon) handleSetPTT(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		if err := r.SetPTT(*req.On); err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"ptt": *req.On})
	})
}

// handleSetMOX keys or unkeys the transmitter via CAT
func (d *FTX1Daemon) handleSetMOX(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.withRadio(c, func(r *radio.Radio) {
		if err := r.SetMOX(*req.On); err != nil {
			writeError(c, err)
			return
		}
		d.coreEngine.NotifyWrite()
		c.JSON(http.StatusOK, gin.H{"mox": *req.On})
	})
}

// handleConnect opens the CAT link
func (d *FTX1Daemon) handleConnect(c *gin.Context) {
	if err := d.coreEngine.Connect(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": d.coreEngine.Status()})
}

// handleDisconnect closes the CAT link
func (d *FTX1Daemon) handleDisconnect(c *gin.Context) {
	if err := d.coreEngine.Disconnect(); err != nil {
		logging.Warnf("api", "error closing ports: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": d.coreEngine.Status()})
}

// handleGetSerialPorts lists the serial ports present on the host
func (d *FTX1Daemon) handleGetSerialPorts(c *gin.Context) {
	ports, err := hardware.ListPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ports == nil {
		ports = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"serial_ports": ports})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleTelemetryWebSocket pushes meters and the latest state at 10 Hz
func (d *FTX1Daemon) handleTelemetryWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("api", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	logging.Debugf("api", "telemetry client connected from %s", conn.RemoteAddr())

	// the read side only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(telemetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			msg := gin.H{
				"type":      "telemetry",
				"connected": d.coreEngine.IsConnected(),
				"rate_hz":   d.coreEngine.PollRate(),
			}
			if snap, ok := d.coreEngine.LatestMeters(); ok {
				msg["meters"] = snap
			}
			if state, ok := d.coreEngine.LatestState(); ok {
				msg["state"] = state
			}

			conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				logging.Debugf("api", "telemetry write failed: %v", err)
				return
			}

		case <-closed:
			logging.Debug("api", "telemetry client disconnected")
			return

		case <-d.ctx.Done():
			return
		}
	}
}
