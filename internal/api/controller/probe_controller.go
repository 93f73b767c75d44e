package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uksgomel/uks_checker/internal/logger"
	"github.com/uksgomel/uks_checker/internal/monitor"
	"github.com/uksgomel/uks_checker/internal/probe"
)

type Prober interface {
	Probe(ctx context.Context, kind probe.Kind) monitor.Outcome
}

// ProbeResponse is the outcome of a manually triggered cycle.
type ProbeResponse struct {
	monitor.Outcome
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
}

// ProbeController runs a detection cycle on demand.
type ProbeController struct {
	prober Prober
}

func NewProbeController(p Prober) *ProbeController {
	return &ProbeController{prober: p}
}

// RunProbe handles POST /probes/:kind.
// A cycle already running for the kind yields 409. Any other failure is
// reported in the body with status "failed".
func (pc *ProbeController) RunProbe(c *gin.Context) {
	kind, err := probe.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log := logger.WithKind("probe-controller", string(kind))
	log.Debug("manual probe requested")

	out := pc.prober.Probe(c.Request.Context(), kind)
	if errors.Is(out.Err, monitor.ErrProbeInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": out.Err.Error()})
		return
	}
	if out.Err != nil && c.Request.Context().Err() != nil {
		log.Debugf("request ended before probe finished: %v", out.Err)
		return
	}

	c.JSON(http.StatusOK, ProbeResponse{Outcome: out, Changed: out.Changed(), Error: out.ErrorText()})
}
