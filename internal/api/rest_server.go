// Package api поднимает операторский REST: состояние сервера, список
// игроков, принудительное сохранение, остановка и хвост лога.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/network"
)

// RestServer — HTTP-сервер операторского API
type RestServer struct {
	router *gin.Engine
	server *http.Server
	game   *network.GameServer

	// stop запрашивает остановку всего сервера (POST /api/stop)
	stop func()
}

// NewRestServer создаёт REST-сервер поверх игрового цикла
func NewRestServer(port int, game *network.GameServer, stop func()) *RestServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New() // Без стандартного логгера
	router.Use(gin.Recovery())

	rs := &RestServer{
		router: router,
		game:   game,
		stop:   stop,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		},
	}
	rs.setupRoutes()
	return rs
}

func (rs *RestServer) setupRoutes() {
	// CORS для операторской панели
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)
	rs.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := rs.router.Group("/api")
	{
		api.GET("/status", rs.handleStatus)
		api.GET("/players", rs.handlePlayers)
		api.GET("/log", rs.handleLog)
		api.POST("/save", rs.handleSave)
		api.POST("/stop", rs.handleStop)
	}
}

// Start запускает сервер в отдельной горутине
func (rs *RestServer) Start() {
	logging.Info("REST API слушает %s", rs.server.Addr)
	go func() {
		if err := rs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("REST API остановлен с ошибкой: %v", err)
		}
	}()
}

// Stop мягко останавливает сервер
func (rs *RestServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rs.server.Shutdown(ctx)
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (rs *RestServer) handleStatus(c *gin.Context) {
	status := rs.game.Status()
	c.JSON(http.StatusOK, gin.H{
		"players":    status.Players,
		"seed":       status.Seed,
		"started_at": status.StartedAt.UTC().Format(time.RFC3339),
		"last_save":  status.LastSave.UTC().Format(time.RFC3339),
		"uptime":     time.Since(status.StartedAt).Round(time.Second).String(),
	})
}

func (rs *RestServer) handlePlayers(c *gin.Context) {
	players := rs.game.Players()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(players),
		"players": players,
	})
}

func (rs *RestServer) handleLog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lines": logging.Recent()})
}

func (rs *RestServer) handleSave(c *gin.Context) {
	if err := rs.game.RequestSave(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (rs *RestServer) handleStop(c *gin.Context) {
	logging.Info("Получен запрос остановки через REST API")
	c.JSON(http.StatusOK, gin.H{"success": true})
	go rs.stop()
}
