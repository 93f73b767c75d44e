package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uksgomel/uks_checker/internal/config"
	"github.com/uksgomel/uks_checker/internal/probe"
)

// ConfigurationResponse is the non-secret part of the configuration.
type ConfigurationResponse struct {
	DocumentsURL         string `json:"documentsUrl"`
	DocumentPattern      string `json:"documentPattern"`
	CheckDocumentLinks   bool   `json:"checkDocumentLinks"`
	ArticlesURL          string `json:"articlesUrl"`
	ArticlePattern       string `json:"articlePattern"`
	PageURL              string `json:"pageUrl"`
	ScheduleEnabled      bool   `json:"scheduleEnabled"`
	DocumentsIntervalSec int    `json:"documentsIntervalSec"`
	ArticlesIntervalSec  int    `json:"articlesIntervalSec"`
	PageIntervalSec      int    `json:"pageIntervalSec"`
	MaxAttachmentBytes   int64  `json:"maxAttachmentBytes"`
	CommandsEnabled      bool   `json:"commandsEnabled"`
}

// PollResponse is the cadence of one monitored resource.
type PollResponse struct {
	IntervalSec int `json:"intervalSec"`
	DelaySec    int `json:"delaySec"`
}

// ScheduleResponse lists the poll cadence per resource kind.
type ScheduleResponse struct {
	Enabled bool                        `json:"enabled"`
	Polls   map[probe.Kind]PollResponse `json:"polls"`
}

// ConfigurationController handles configuration-related API endpoints.
type ConfigurationController struct {
	config *config.Config
}

// NewConfigurationController creates a new ConfigurationController.
func NewConfigurationController(cfg *config.Config) *ConfigurationController {
	return &ConfigurationController{
		config: cfg,
	}
}

// GetConfiguration returns the monitored sources and the poll schedule.
// The bot token and chat id are never exposed.
func (cc *ConfigurationController) GetConfiguration(c *gin.Context) {
	cfg := cc.config
	response := ConfigurationResponse{
		DocumentsURL:         cfg.Sources.DocumentsURL,
		DocumentPattern:      cfg.Sources.DocumentPattern,
		CheckDocumentLinks:   cfg.Sources.CheckDocumentLinks,
		ArticlesURL:          cfg.Sources.ArticlesURL,
		ArticlePattern:       cfg.Sources.ArticlePattern,
		PageURL:              cfg.Sources.PageURL,
		ScheduleEnabled:      cfg.Schedule.Enabled,
		DocumentsIntervalSec: int(cfg.Schedule.DocumentsInterval.Seconds()),
		ArticlesIntervalSec:  int(cfg.Schedule.ArticlesInterval.Seconds()),
		PageIntervalSec:      int(cfg.Schedule.PageInterval.Seconds()),
		MaxAttachmentBytes:   cfg.Notify.MaxAttachmentBytes,
		CommandsEnabled:      cfg.Telegram.Commands,
	}
	c.JSON(http.StatusOK, response)
}

// GetSchedule returns the poll cadence per resource. Polls is empty when the
// scheduler is disabled.
func (cc *ConfigurationController) GetSchedule(c *gin.Context) {
	sc := cc.config.Schedule
	response := ScheduleResponse{Enabled: sc.Enabled, Polls: map[probe.Kind]PollResponse{}}
	if sc.Enabled {
		response.Polls[probe.KindDocuments] = pollResponse(sc.DocumentsInterval, sc.DocumentsDelay)
		response.Polls[probe.KindArticles] = pollResponse(sc.ArticlesInterval, sc.ArticlesDelay)
		response.Polls[probe.KindPage] = pollResponse(sc.PageInterval, sc.PageDelay)
	}
	c.JSON(http.StatusOK, response)
}

func pollResponse(interval, delay time.Duration) PollResponse {
	return PollResponse{IntervalSec: int(interval.Seconds()), DelaySec: int(delay.Seconds())}
}
