package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

const qrSize = 320

// RoomLister reads room summaries for the HTTP API.
type RoomLister interface {
	Rooms(ctx context.Context) ([]domain.RoomSummary, error)
	Room(ctx context.Context, code string) (domain.RoomSummary, error)
}

type RouterOptions struct {
	PublicURL      string
	AllowedOrigins []string
}

// NewRouter mounts the JSON API, the quick-join QR endpoint and both socket
// transports. Either transport may be nil.
func NewRouter(rooms RoomLister, hub *Hub, sio *SocketIO, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog())
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	api := r.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		list, err := rooms.Rooms(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("list rooms")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": list})
	})
	api.GET("/rooms/:code", func(c *gin.Context) {
		summary, ok := lookupRoom(c, rooms)
		if ok {
			c.JSON(http.StatusOK, summary)
		}
	})

	r.GET("/rooms/:code/qr", func(c *gin.Context) {
		summary, ok := lookupRoom(c, rooms)
		if !ok {
			return
		}
		png, err := qrcode.Encode(JoinURL(opts.PublicURL, summary.Code), qrcode.Medium, qrSize)
		if err != nil {
			log.Error().Err(err).Str("room", summary.Code).Msg("encode qr")
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", png)
	})

	if hub != nil {
		r.GET("/ws", gin.WrapF(hub.ServeWS))
	}
	if sio != nil {
		r.GET("/socket.io/*any", gin.WrapH(sio.Server()))
		r.POST("/socket.io/*any", gin.WrapH(sio.Server()))
	}
	return r
}

func lookupRoom(c *gin.Context, rooms RoomLister) (domain.RoomSummary, bool) {
	summary, err := rooms.Room(c.Request.Context(), c.Param("code"))
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return summary, false
	case err != nil:
		log.Error().Err(err).Str("room", c.Param("code")).Msg("get room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unavailable"})
		return summary, false
	}
	return summary, true
}

// JoinURL is the link encoded in a room's QR code.
func JoinURL(publicURL, code string) string {
	base := strings.TrimRight(publicURL, "/")
	return base + "/?pin=" + url.QueryEscape(app.NormalizeCode(code))
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}

func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:    []string{"Content-Type", "Origin"},
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowCredentials: true,
		AllowHeaders:     []string{"Content-Type", "Origin"},
	}
}

// OriginChecker returns a WebSocket origin check for the allowed origins.
func OriginChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
