package edge

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"azchat/internal/blob"
	"azchat/internal/search/edgefn"
)

// StorageRequest is the body accepted by the storage function.
type StorageRequest struct {
	Operation string `json:"operation"`
	BlobName  string `json:"blobName,omitempty"`
}

// ListResponse carries the raw container listing.
type ListResponse struct {
	Container string `json:"container"`
	XML       string `json:"xml"`
}

// BlobResponse carries the plain URL of one blob.
type BlobResponse struct {
	BlobURL  string `json:"blobUrl"`
	BlobName string `json:"blobName"`
}

func (s *Server) handleStorage(c *gin.Context) {
	if !s.storage.Configured() {
		c.JSON(http.StatusInternalServerError, edgefn.ErrorResponse{
			Error:   "Azure Storage credentials not configured",
			Message: "Please set AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY environment variables",
		})
		return
	}

	var req StorageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		internalError(c, err)
		return
	}

	switch {
	case req.Operation == "list":
		start := time.Now()
		xml, err := s.storage.List(c.Request.Context())
		var statusErr *blob.StatusError
		switch {
		case errors.As(err, &statusErr):
			ProviderDuration.WithLabelValues("blob", "rejected").Observe(time.Since(start).Seconds())
			c.JSON(statusErr.StatusCode, edgefn.ErrorResponse{Error: "Failed to list blobs", Details: statusErr.Body})
			return
		case err != nil:
			ProviderDuration.WithLabelValues("blob", "error").Observe(time.Since(start).Seconds())
			internalError(c, err)
			return
		}
		ProviderDuration.WithLabelValues("blob", "ok").Observe(time.Since(start).Seconds())
		c.JSON(http.StatusOK, ListResponse{Container: s.storage.Container(), XML: xml})
	case req.Operation == "get" && req.BlobName != "":
		c.JSON(http.StatusOK, BlobResponse{BlobURL: s.storage.BlobURL(req.BlobName), BlobName: req.BlobName})
	default:
		c.JSON(http.StatusBadRequest, edgefn.ErrorResponse{Error: "Invalid operation or missing parameters"})
	}
}
