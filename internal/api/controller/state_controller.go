package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uksgomel/uks_checker/internal/fetcher"
	"github.com/uksgomel/uks_checker/internal/logger"
	"github.com/uksgomel/uks_checker/internal/monitor"
	"github.com/uksgomel/uks_checker/internal/probe"
	"github.com/uksgomel/uks_checker/internal/repository"
)

// StateReader is the read-only part of the detector.
type StateReader interface {
	GetState() repository.State
	FetchLatestDocument(ctx context.Context) (*monitor.LatestDocument, error)
	FetchLatestArticle(ctx context.Context) (probe.Article, error)
}

// DocumentResponse describes the current edition without its bytes.
type DocumentResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Date string `json:"date"`
	Hash string `json:"hash"`
	Size int    `json:"size"`
}

type ArticleResponse struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// StateController serves the persisted state and the live latest items.
// None of its handlers modify state.
type StateController struct {
	reader StateReader
}

func NewStateController(reader StateReader) *StateController {
	return &StateController{reader: reader}
}

// GetState handles GET /state.
func (sc *StateController) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, sc.reader.GetState())
}

// LatestDocument handles GET /documents/latest.
func (sc *StateController) LatestDocument(c *gin.Context) {
	doc, err := sc.reader.FetchLatestDocument(c.Request.Context())
	if err != nil {
		writeFetchError(c, "documents", err)
		return
	}
	c.JSON(http.StatusOK, DocumentResponse{
		Name: doc.Name,
		URL:  doc.URL,
		Date: doc.Date.Format("2006-01-02"),
		Hash: doc.Hash,
		Size: len(doc.Data),
	})
}

// LatestArticle handles GET /articles/latest.
func (sc *StateController) LatestArticle(c *gin.Context) {
	a, err := sc.reader.FetchLatestArticle(c.Request.Context())
	if err != nil {
		writeFetchError(c, "articles", err)
		return
	}
	c.JSON(http.StatusOK, ArticleResponse{Title: a.Title, URL: a.URL})
}

// writeFetchError maps a live lookup failure to a status. When the request
// context is already done nothing is written so the timeout middleware answers.
func writeFetchError(c *gin.Context, kind string, err error) {
	log := logger.WithKind("state-controller", kind)
	switch {
	case errors.Is(err, monitor.ErrNoCandidate):
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing found on the listing page"})
	case c.Request.Context().Err() != nil:
		log.Debugf("request ended before lookup finished: %v", err)
	case fetcher.IsTransient(err):
		log.Warnf("lookup failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Errorf("lookup failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
