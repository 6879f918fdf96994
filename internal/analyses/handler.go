package analyses

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/strata-lab/project-strata/internal/core/analysis"
	httperr "github.com/strata-lab/project-strata/internal/core/errors"
	"github.com/strata-lab/project-strata/internal/core/join"
	"github.com/strata-lab/project-strata/internal/core/source"
	"github.com/strata-lab/project-strata/internal/pipeline"
)

// analysisSummary is the catalog entry served by the list endpoint.
type analysisSummary struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Fingerprint string `json:"fingerprint"`
}

// ListAnalysesHandler handles GET /v1/analyses.
func (s *Service) ListAnalysesHandler(c *gin.Context) {
	defs := s.defs.All()
	summaries := make([]analysisSummary, 0, len(defs))
	for _, def := range defs {
		summaries = append(summaries, analysisSummary{
			Name:        def.Name,
			Enabled:     def.Enabled,
			Fingerprint: def.Fingerprint,
		})
	}
	c.JSON(http.StatusOK, gin.H{"analyses": summaries})
}

// RunAnalysisHandler handles POST /v1/analyses/:name/run. The run is
// synchronous: the response body is the full result set.
func (s *Service) RunAnalysisHandler(c *gin.Context) {
	name := c.Param("name")

	if !analysis.Known(name) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpAnalysisNotFoundError,
			Message:   "Unknown analysis",
			Details:   name,
		})
		return
	}

	res, err := s.pipeline.RunAnalysis(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, pipeline.ErrAnalysisDisabled) {
			c.JSON(http.StatusConflict, httperr.ErrorResponse{
				ErrorType: httperr.HttpAnalysisDisabledError,
				Message:   "Analysis is disabled",
				Details:   name,
			})
			return
		}
		slog.Error("Analysis run request failed", "analysis", name, "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to run analysis",
			Details:   err.Error(),
		})
		return
	}

	if res.Status == pipeline.StatusFailed {
		switch {
		case errors.Is(res.Cause, source.ErrSourceUnavailable):
			c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
				ErrorType: httperr.HttpSourceUnavailableError,
				Message:   "A backing record source is unavailable",
				Details:   res.Error,
			})
			return
		case errors.Is(res.Cause, join.ErrInsufficientData):
			// The joined rows are still served; only the coefficient is
			// undefined. 200 with status=failed tells the client which.
			c.JSON(http.StatusOK, res)
			return
		default:
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpInternalError,
				Message:   "Analysis run failed",
				Details:   res.Error,
			})
			return
		}
	}

	c.JSON(http.StatusOK, res)
}
