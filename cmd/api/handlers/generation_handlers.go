package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"media-studio/cmd/api/dto"
	"media-studio/cmd/api/services"
	"media-studio/debugger"
	"media-studio/monitoring"
	"media-studio/predictions"
	"media-studio/repositories"
)

// @Summary Generate an image
// @Description Submit a prompt, wait for the prediction to finish and return the image as a base64 data URI
// @Tags generations
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequestDTO true "Generation request"
// @Success 200 {object} dto.GenerateResponseDTO
// @Failure 400 {object} dto.GenerateErrorDTO
// @Failure 502 {object} dto.GenerateErrorDTO
// @Failure 504 {object} dto.GenerateErrorDTO
// @Router /api/v1/generations/image [post]
func GenerateImageHandler(svc *services.GenerationService, rec *debugger.Recorder) gin.HandlerFunc {
	return generateHandler(svc, rec, monitoring.MediaImage)
}

// @Summary Generate a video
// @Description Submit a prompt to the synchronous inference endpoint and return the video as a base64 data URI
// @Tags generations
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequestDTO true "Generation request"
// @Success 200 {object} dto.GenerateResponseDTO
// @Failure 400 {object} dto.GenerateErrorDTO
// @Failure 502 {object} dto.GenerateErrorDTO
// @Router /api/v1/generations/video [post]
func GenerateVideoHandler(svc *services.GenerationService, rec *debugger.Recorder) gin.HandlerFunc {
	return generateHandler(svc, rec, monitoring.MediaVideo)
}

func generateHandler(svc *services.GenerationService, rec *debugger.Recorder, mediaType monitoring.MediaType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.GenerateRequestDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.GenerateErrorDTO{
				Error:   "prompt is required",
				Kind:    string(predictions.KindValidation),
				Details: err.Error(),
			})
			return
		}

		out := svc.Submit(c.Request.Context(), services.SubmitInput{
			Prompt:    req.Prompt,
			MediaType: mediaType,
		})
		debug := debugRecordsFor(rec, out.RequestID)

		if out.Err != nil {
			c.JSON(statusForError(out.Err), dto.GenerateErrorDTO{
				Error:     out.Err.Message,
				Kind:      string(out.Err.Kind),
				Details:   out.Err.Detail,
				RequestID: out.RequestID,
				Debug:     debug,
			})
			return
		}

		c.JSON(http.StatusOK, dto.GenerateResponseDTO{
			RequestID:    out.RequestID,
			PredictionID: out.PredictionID,
			MediaType:    string(out.MediaType),
			MediaURI:     out.MediaURI,
			ContentType:  out.ContentType,
			SizeBytes:    out.SizeBytes,
			Debug:        debug,
		})
	}
}

// @Summary List archived generations
// @Description Read the most recent generation outcomes from the archive, newest first
// @Tags generations
// @Produce json
// @Param limit query int false "Maximum entries to return" default(20)
// @Success 200 {object} object
// @Failure 500 {object} dto.ErrorResponseDTO
// @Failure 503 {object} dto.ErrorResponseDTO
// @Router /api/v1/generations/history [get]
func ListGenerationHistoryHandler(repo *repositories.GenerationLogRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if repo == nil {
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponseDTO{Error: "generation archive is not configured"})
			return
		}

		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
		items, err := repo.ListRecent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponseDTO{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
	}
}

// statusForError maps the tagged generation error onto an HTTP status.
// Provider statuses pass through when they are themselves errors; a 2xx
// provider status with a failed generation still becomes a 502.
func statusForError(e *predictions.Error) int {
	switch e.Kind {
	case predictions.KindValidation:
		return http.StatusBadRequest
	case predictions.KindProvider:
		if e.Status >= 400 {
			return e.Status
		}
		return http.StatusBadGateway
	case predictions.KindTransport:
		return http.StatusBadGateway
	case predictions.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// debugRecordsFor filters the recorder snapshot down to the calls made on
// behalf of one request: the bare request ID (direct inference) plus its
// "-create"/"-poll-N"/"-media" children.
func debugRecordsFor(rec *debugger.Recorder, requestID string) map[string]debugger.Record {
	out := map[string]debugger.Record{}
	if requestID == "" {
		return out
	}
	for id, record := range rec.Snapshot() {
		if id == requestID || strings.HasPrefix(id, requestID+"-") {
			out[id] = record
		}
	}
	return out
}
