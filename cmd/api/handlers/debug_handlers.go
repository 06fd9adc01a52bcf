package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"media-studio/cmd/api/dto"
	"media-studio/debugger"
)

// @Summary List debug records
// @Description Snapshot of every captured provider call, keyed by call ID
// @Tags debug
// @Produce json
// @Success 200 {object} object
// @Router /api/v1/debug/requests [get]
func ListDebugRequestsHandler(rec *debugger.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		records := rec.Snapshot()
		c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
	}
}

// @Summary Get one debug record
// @Tags debug
// @Produce json
// @Param id path string true "Call ID"
// @Success 200 {object} object
// @Failure 404 {object} dto.ErrorResponseDTO
// @Router /api/v1/debug/requests/{id} [get]
func GetDebugRequestHandler(rec *debugger.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		record, ok := rec.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, dto.ErrorResponseDTO{Error: "no debug record for call ID: " + id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "record": record})
	}
}

// @Summary Clear debug records
// @Tags debug
// @Produce json
// @Success 200 {object} object
// @Router /api/v1/debug/requests [delete]
func ClearDebugRequestsHandler(rec *debugger.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec.Clear()
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	}
}

// @Summary Stream debug records
// @Description Server-sent events; emits the full record snapshot on connect and after every captured call
// @Tags debug
// @Produce text/event-stream
// @Success 200 {string} string "SSE stream"
// @Router /api/v1/debug/stream [get]
func StreamDebugRequestsHandler(rec *debugger.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		// coalescing channel: a slow client sees fewer snapshots, never a
		// blocked recorder
		updates := make(chan struct{}, 1)
		unsubscribe := rec.Subscribe(func(string, debugger.Record) {
			select {
			case updates <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.SSEvent("snapshot", rec.Snapshot())
		c.Writer.Flush()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-updates:
				c.SSEvent("snapshot", rec.Snapshot())
				return true
			}
		})
	}
}
