// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chaiyopos/print-engine/internal/settings"
	"github.com/chaiyopos/print-engine/internal/transport"
	"github.com/chaiyopos/print-engine/internal/transport/ble"
	"github.com/chaiyopos/print-engine/internal/transport/netprint"
	"github.com/chaiyopos/print-engine/pkg/receipt"
)

// Transport mode names accepted by the connect endpoint.
const (
	ModeBluetooth = "bluetooth"
	ModeNetwork   = "network"
)

// Server is the API server
type Server struct {
	router   *gin.Engine
	blue     *ble.Client
	network  *netprint.Client
	store    *settings.Store
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(blue *ble.Client, network *netprint.Client, store *settings.Store, log *slog.Logger) *Server {
	// Set Gin to release mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()

	// CORS middleware
	router.Use(corsMiddleware())

	server := &Server{
		router:  router,
		blue:    blue,
		network: network,
		store:   store,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
	}

	// The wireless client carries a single disconnect-callback slot and
	// the API owns it: link loss fans out to every websocket client.
	blue.SetDisconnectHandler(func() {
		server.log.Warn("bluetooth link lost")
		server.BroadcastConnectionState(ModeBluetooth, false)
	})

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	// HTTP API
	s.router.GET("/status", s.handleStatus)
	s.router.POST("/connect", s.handleConnect)
	s.router.POST("/disconnect", s.handleDisconnect)
	s.router.POST("/print", s.handlePrint)
	s.router.POST("/print/test", s.handleTestPrint)
	s.router.GET("/settings", s.handleGetSettings)
	s.router.POST("/settings", s.handleUpdateSettings)

	// WebSocket
	s.router.GET("/ws", s.handleWebSocket)

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// activePrinter returns the transport print requests go through: the
// wireless link when it is up, the network agent otherwise.
func (s *Server) activePrinter() (transport.Printer, string) {
	if s.blue.IsConnected() {
		return s.blue, ModeBluetooth
	}
	return s.network, ModeNetwork
}

// handleStatus reports both transports and the paired device
func (s *Server) handleStatus(c *gin.Context) {
	cfg := s.store.Get()

	c.JSON(200, gin.H{
		"bluetooth": gin.H{
			"state":     s.blue.State().String(),
			"connected": s.blue.IsConnected(),
		},
		"network": gin.H{
			"connected": s.network.IsConnected(),
			"host":      cfg.PrinterHost,
			"port":      cfg.PrinterPort,
		},
		"device_id":   cfg.DeviceID,
		"device_name": cfg.DeviceName,
	})
}

// handleConnect starts a connection over the requested transport
func (s *Server) handleConnect(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
		Host string `json:"host"`
		Port int    `json:"port"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if req.Mode == "" {
		req.Mode = ModeBluetooth
	}

	switch req.Mode {
	case ModeBluetooth:
		// Scanning runs until a printer shows up or the caller goes
		// away; a dropped request cancels the scan.
		if err := s.blue.Connect(c.Request.Context()); err != nil {
			if transport.KindOf(err) == transport.KindUserCancelled {
				c.JSON(200, gin.H{"success": false, "cancelled": true})
				return
			}
			s.log.Error("bluetooth connect failed", "error", err)
			c.JSON(502, gin.H{"error": err.Error(), "message": transport.UserMessage(err)})
			return
		}
		cfg := s.store.Get()
		s.BroadcastConnectionState(ModeBluetooth, true)
		c.JSON(200, gin.H{
			"success":     true,
			"device_id":   cfg.DeviceID,
			"device_name": cfg.DeviceName,
		})

	case ModeNetwork:
		reachable := s.network.Connect(c.Request.Context(), req.Host, req.Port)
		cfg := s.store.Get()
		c.JSON(200, gin.H{
			"success":   reachable,
			"reachable": reachable,
			"host":      cfg.PrinterHost,
			"port":      cfg.PrinterPort,
		})

	default:
		c.JSON(400, gin.H{"error": fmt.Sprintf("unknown mode: %s", req.Mode)})
	}
}

// handleDisconnect tears down the wireless link
func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.blue.Disconnect(); err != nil {
		c.JSON(500, gin.H{"error": err.Error(), "message": transport.UserMessage(err)})
		return
	}
	s.network.Disconnect()
	s.BroadcastConnectionState(ModeBluetooth, false)

	c.JSON(200, gin.H{"success": true})
}

// handlePrint formats and prints a receipt over the active transport
func (s *Server) handlePrint(c *gin.Context) {
	var req struct {
		Receipt     *receipt.Receipt `json:"receipt"`
		ReceiptPath string           `json:"receipt_path"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	var r *receipt.Receipt
	var err error

	if req.ReceiptPath != "" {
		r, err = receipt.ParseFile(req.ReceiptPath)
		if err != nil {
			c.JSON(400, gin.H{"error": fmt.Sprintf("failed to load receipt: %v", err)})
			return
		}
	} else if req.Receipt != nil {
		r = req.Receipt
	} else {
		c.JSON(400, gin.H{"error": "receipt or receipt_path is required"})
		return
	}

	if err := receipt.Validate(r); err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid receipt: %v", err)})
		return
	}

	printer, mode := s.activePrinter()
	printID := uuid.New().String()

	s.log.Info("print request", "print_id", printID, "mode", mode, "receipt", r.Number)

	if err := printer.Print(c.Request.Context(), r); err != nil {
		s.log.Error("print failed", "print_id", printID, "error", err)
		c.JSON(502, gin.H{
			"error":    err.Error(),
			"message":  transport.UserMessage(err),
			"print_id": printID,
		})
		return
	}

	c.JSON(200, gin.H{
		"success":  true,
		"print_id": printID,
		"mode":     mode,
	})
}

// handleTestPrint sends the alignment test page
func (s *Server) handleTestPrint(c *gin.Context) {
	printer, mode := s.activePrinter()

	if err := printer.TestPrint(c.Request.Context()); err != nil {
		c.JSON(502, gin.H{"error": err.Error(), "message": transport.UserMessage(err)})
		return
	}

	c.JSON(200, gin.H{"success": true, "mode": mode})
}

// handleGetSettings returns the persisted settings record
func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(200, s.store.Get())
}

// handleUpdateSettings patches the persisted settings record
func (s *Server) handleUpdateSettings(c *gin.Context) {
	var patch settings.Patch

	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if patch.PaperWidth != nil &&
		*patch.PaperWidth != settings.PaperNarrow && *patch.PaperWidth != settings.PaperWide {
		c.JSON(400, gin.H{"error": fmt.Sprintf("paper_width must be %d or %d", settings.PaperNarrow, settings.PaperWide)})
		return
	}

	c.JSON(200, s.store.Update(patch))
}

// Run starts the API server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
