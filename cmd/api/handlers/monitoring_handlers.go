package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"media-studio/monitoring"
)

// @Summary List monitoring log entries
// @Tags monitoring
// @Produce json
// @Success 200 {object} object
// @Router /api/v1/monitoring/logs [get]
func ListMonitoringLogsHandler(store *monitoring.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs := store.Logs()
		c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
	}
}

// @Summary Clear monitoring log entries
// @Description Empties the log sequence; request metrics are untouched
// @Tags monitoring
// @Produce json
// @Success 200 {object} object
// @Router /api/v1/monitoring/logs [delete]
func ClearMonitoringLogsHandler(store *monitoring.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		store.ClearLogs()
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	}
}

// @Summary List request metrics
// @Description Per-request lifecycle records in insertion order
// @Tags monitoring
// @Produce json
// @Success 200 {object} object
// @Router /api/v1/monitoring/requests [get]
func ListMonitoringRequestsHandler(store *monitoring.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		requests := store.Requests()
		c.JSON(http.StatusOK, gin.H{"requests": requests, "count": len(requests)})
	}
}

// @Summary Stream monitoring state
// @Description Server-sent events; emits logs plus request metrics on connect and after every mutation
// @Tags monitoring
// @Produce text/event-stream
// @Success 200 {string} string "SSE stream"
// @Router /api/v1/monitoring/stream [get]
func StreamMonitoringHandler(store *monitoring.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		updates := make(chan struct{}, 1)
		unsubscribe := store.Subscribe(func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		snapshot := func() gin.H {
			return gin.H{"logs": store.Logs(), "requests": store.Requests()}
		}

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.SSEvent("snapshot", snapshot())
		c.Writer.Flush()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-updates:
				c.SSEvent("snapshot", snapshot())
				return true
			}
		})
	}
}
