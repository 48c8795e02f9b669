package edge

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"azchat/internal/domain"
	"azchat/internal/search/azure"
	"azchat/internal/search/edgefn"
)

const defaultIndex = "default-index"

type providerError struct {
	Error      string `json:"error"`
	Details    string `json:"details"`
	StatusCode int    `json:"statusCode"`
	SearchURL  string `json:"searchUrl"`
	IndexName  string `json:"indexName"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req edgefn.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		internalError(c, err)
		return
	}

	endpoint, key, index := s.cfg.Search.Endpoint, s.cfg.Search.Key, s.cfg.Search.Index
	if o := req.AzureConfig; o != nil {
		endpoint = firstNonEmpty(o.Endpoint, endpoint)
		key = firstNonEmpty(o.Key, key)
		index = firstNonEmpty(o.Index, index)
	}
	if index == "" {
		index = defaultIndex
	}

	if endpoint == "" || key == "" {
		c.JSON(http.StatusInternalServerError, edgefn.ErrorResponse{
			Error:   "Azure Search credentials not configured",
			Message: "Please provide Azure credentials in the request or set environment variables",
		})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, edgefn.ErrorResponse{Error: "Query parameter is required"})
		return
	}
	top := req.Top
	if top <= 0 {
		top = azure.DefaultTop
	}

	client := azure.NewClient(azure.Config{
		Endpoint: endpoint,
		APIKey:   key,
		Index:    index,
		Timeout:  time.Duration(s.cfg.Search.TimeoutSecs) * time.Second,
	})
	start := time.Now()
	resp, err := client.Query(c.Request.Context(), req.Query, top)

	var statusErr *azure.StatusError
	switch {
	case errors.As(err, &statusErr):
		ProviderDuration.WithLabelValues("azure_search", "rejected").Observe(time.Since(start).Seconds())
		s.log.Error().Int("status", statusErr.StatusCode).Str("url", statusErr.URL).Str("body", statusErr.Body).Msg("azure search failed")
		c.JSON(statusErr.StatusCode, providerError{
			Error:      "Azure Search request failed",
			Details:    statusErr.Body,
			StatusCode: statusErr.StatusCode,
			SearchURL:  statusErr.URL,
			IndexName:  index,
		})
		return
	case err != nil:
		ProviderDuration.WithLabelValues("azure_search", "error").Observe(time.Since(start).Seconds())
		internalError(c, err)
		return
	}
	ProviderDuration.WithLabelValues("azure_search", "ok").Observe(time.Since(start).Seconds())

	docs := make([]domain.Document, len(resp.Records))
	for i, r := range resp.Records {
		docs[i] = domain.NewDocument("", r)
	}
	s.log.Info().Str("url", resp.URL).Int("count", len(docs)).Msg("azure search completed")
	c.JSON(http.StatusOK, edgefn.Response{
		Query:   req.Query,
		Count:   len(docs),
		Results: docs,
		DebugInfo: &domain.DebugInfo{
			Endpoint:     client.Endpoint(),
			Index:        index,
			TotalResults: resp.TotalCount,
		},
	})
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, edgefn.ErrorResponse{Error: "Internal server error", Message: err.Error()})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
