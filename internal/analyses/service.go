// Package analyses serves the analysis catalog and on-demand runs over HTTP.
package analyses

import (
	"github.com/gin-gonic/gin"

	"github.com/strata-lab/project-strata/internal/core/analysis"
	"github.com/strata-lab/project-strata/internal/pipeline"
)

type Service struct {
	pipeline *pipeline.Pipeline
	defs     analysis.Repository
}

func NewService(p *pipeline.Pipeline, defs analysis.Repository) *Service {
	if p == nil {
		panic("analyses: pipeline must not be nil")
	}
	if defs == nil {
		panic("analyses: definition repository must not be nil")
	}
	return &Service{pipeline: p, defs: defs}
}

// RegisterRoutes registers the analyses service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/analyses", s.ListAnalysesHandler)
	r.POST("/v1/analyses/:name/run", s.RunAnalysisHandler)
}
