// Package proxy serves the node over JSON-RPC on HTTP and WebSocket.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/airchains-network/devchain/api"
	"github.com/airchains-network/devchain/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Config holds the listen addresses, e.g. ":8545"
type Config struct {
	RPCAddr string
	WSAddr  string
	// Metrics serves GET /metrics on the RPC address
	Metrics bool
}

func logFormatter(tag string) gin.LogFormatter {
	return func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s - %s %s %d\n",
			tag,
			param.TimeStamp.Format("2006-01-02 15:04:05"),
			param.Method,
			param.Path,
			param.StatusCode,
		)
	}
}

// newRPCServer builds the HTTP JSON-RPC router
func newRPCServer(d *dispatcher, m *metrics.Metrics, serveMetrics bool) *gin.Engine {
	rpcServer := gin.New()
	rpcServer.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: logFormatter("GIN"),
		SkipPaths: []string{"/metrics"},
	}))
	rpcServer.Use(gin.Recovery())
	rpcServer.POST("/", func(c *gin.Context) {
		handleRPC(c, d)
	})
	if serveMetrics && m != nil {
		rpcServer.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return rpcServer
}

// newWSServer builds the WebSocket JSON-RPC router
func newWSServer(manager *WebSocketManager) *gin.Engine {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	wsServer := gin.New()
	wsServer.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: logFormatter("WS"),
	}))
	wsServer.Use(gin.Recovery())
	wsServer.GET("/", func(c *gin.Context) {
		manager.handleWebSocket(upgrader, c.Writer, c.Request)
	})
	return wsServer
}

// handleRPC serves one HTTP JSON-RPC body, single or batch
func handleRPC(c *gin.Context, d *dispatcher) {
	body, err := c.GetRawData()
	if err != nil {
		d.log.Errorf("Failed to read JSON-RPC request: %v", err)
		c.JSON(http.StatusBadRequest, errorResponse(nil, api.CodeParseError, "failed to read request body"))
		return
	}
	c.JSON(http.StatusOK, d.serve(c.Request.Context(), body))
}

// Start runs the RPC and WebSocket servers until ctx is done
func Start(ctx context.Context, cfg Config, handler Handler, blocks BlockSource, m *metrics.Metrics, log *logrus.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	d := &dispatcher{handler: handler, metrics: m, log: log}
	wsManager := newWebSocketManager(d, blocks, log)

	servers := []*http.Server{
		{Addr: cfg.RPCAddr, Handler: newRPCServer(d, m, cfg.Metrics)},
	}
	if cfg.WSAddr != "" {
		servers = append(servers, &http.Server{Addr: cfg.WSAddr, Handler: newWSServer(wsManager)})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsManager.Run(ctx)
		return nil
	})
	for i, srv := range servers {
		srv := srv
		name := "RPC"
		if i > 0 {
			name = "WebSocket"
		}
		g.Go(func() error {
			log.Infof("Starting %s server on %s", name, srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to run %s server: %v", name, err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
