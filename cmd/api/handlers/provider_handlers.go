package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"media-studio/cmd/api/dto"
	"media-studio/debugger"
	"media-studio/predictions"
)

// @Summary Test the provider connection
// @Description Probe the inference provider's account endpoint with the configured credential
// @Tags provider
// @Produce json
// @Success 200 {object} dto.ProviderStatusDTO
// @Failure 500 {object} dto.ProviderStatusDTO
// @Failure 502 {object} dto.ProviderStatusDTO
// @Router /api/v1/provider/status [get]
func ProviderStatusHandler(client *predictions.Client, rec *debugger.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !client.Configured() {
			c.JSON(http.StatusInternalServerError, dto.ProviderStatusDTO{
				Success: false,
				Error:   "missing inference API token",
			})
			return
		}

		callID := "status-" + uuid.NewString()
		res, callErr := client.VerifyAuth(c.Request.Context(), callID)
		debug := debugRecordsFor(rec, callID)

		if callErr != nil {
			c.JSON(http.StatusBadGateway, dto.ProviderStatusDTO{
				Success: false,
				Error:   callErr.Message,
				Debug:   debug,
			})
			return
		}
		if !res.OK() {
			c.JSON(http.StatusOK, dto.ProviderStatusDTO{
				Success: false,
				Status:  res.Status,
				Error:   res.Decoded(),
				Debug:   debug,
			})
			return
		}

		c.JSON(http.StatusOK, dto.ProviderStatusDTO{
			Success: true,
			Status:  res.Status,
			Debug:   debug,
		})
	}
}
