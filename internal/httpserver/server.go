// Package httpserver exposes the listener-facing HTTP surface: the
// WebSocket endpoint, clip serving, playback signaling and status.
package httpserver

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/naman10parikh/vibetalk-sub000/internal/audio"
	"github.com/naman10parikh/vibetalk-sub000/internal/coordinator"
	"github.com/naman10parikh/vibetalk-sub000/internal/hub"
	"github.com/naman10parikh/vibetalk-sub000/internal/protocol"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Hub         *hub.Hub
	Coordinator *coordinator.Coordinator
	Queue       *audio.Queue
	Store       *audio.Store
}

// New creates the configured Echo server instance with all routes bound.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/status", func(c echo.Context) error {
		snap := d.Coordinator.Status()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":          snap.Status,
			"isRecording":     snap.IsRecording,
			"activeSessionId": snap.ActiveSessionID,
			"uptime":          snap.Uptime,
			"connectionCount": d.Hub.ConnectionCount(),
		})
	})

	e.GET("/ws", func(c echo.Context) error {
		return d.Hub.ServeWS(c.Response(), c.Request())
	})

	e.GET("/audio/:name", func(c echo.Context) error {
		path, err := d.Store.Path(c.Param("name"))
		if err != nil {
			return c.NoContent(http.StatusNotFound)
		}
		c.Response().Header().Set(echo.HeaderContentType, clipContentType(path))
		return c.File(path)
	})

	// Browsers report the end of each clip here so the next one can play.
	e.POST("/playback-complete", func(c echo.Context) error {
		var body struct {
			SessionID string `json:"sessionId"`
		}
		if err := c.Bind(&body); err != nil || body.SessionID == "" {
			return c.NoContent(http.StatusBadRequest)
		}
		if !d.Queue.PlaybackComplete(body.SessionID) {
			return c.JSON(http.StatusGone, map[string]string{"error": protocol.ErrStaleSession})
		}
		return c.NoContent(http.StatusNoContent)
	})

	return e
}

func clipContentType(path string) string {
	switch filepath.Ext(path) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
