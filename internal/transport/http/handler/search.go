package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tripradar/tripradar/internal/domain"
	"github.com/tripradar/tripradar/internal/transport/http/middleware"
	"github.com/tripradar/tripradar/internal/usecase"
)

// SearchService is the slice of the usecase the handler needs.
type SearchService interface {
	StartSearch(ctx context.Context, params domain.SearchParams) (string, error)
	GetSearch(ctx context.Context, jobID string) (*usecase.SearchStatus, error)
	CancelSearch(ctx context.Context, jobID string) (bool, error)
	History(ctx context.Context, clientID string) ([]*domain.ArchivedSearch, error)
	SaveSearch(ctx context.Context, jobID, clientID, customName string) error
	UnsaveSearch(ctx context.Context, jobID, clientID string) error
	ListSaved(ctx context.Context, clientID string) ([]*domain.ArchivedSearch, error)
	HideSearch(ctx context.Context, jobID, clientID string) error
	UnhideSearch(ctx context.Context, jobID, clientID string) error
	RenameSearch(ctx context.Context, jobID, clientID, name string) error
}

type SearchHandler struct {
	svc    SearchService
	logger *slog.Logger
}

func NewSearchHandler(svc SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, logger: logger.With("component", "search_handler")}
}

type createSearchRequest struct {
	Origin     string   `json:"origin"`
	Start      string   `json:"start"      binding:"required"`
	End        string   `json:"end"        binding:"required"`
	TripLength int      `json:"trip_length"`
	Providers  []string `json:"providers"`
	TopN       int      `json:"top_n"`
}

type createSearchResponse struct {
	ID     string        `json:"id"`
	Status domain.Status `json:"status"`
}

func (h *SearchHandler) Create(c *gin.Context) {
	var req createSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.svc.StartSearch(c.Request.Context(), domain.SearchParams{
		Origin:     req.Origin,
		Start:      req.Start,
		End:        req.End,
		TripLength: req.TripLength,
		Providers:  req.Providers,
		TopN:       req.TopN,
		ClientID:   middleware.ClientFrom(c),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParams) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("start search", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusAccepted, createSearchResponse{ID: id, Status: domain.StatusQueued})
}

type getSearchResponse struct {
	ID            string               `json:"id"`
	Status        domain.Status        `json:"status"`
	CreatedAt     *time.Time           `json:"created_at,omitempty"`
	Params        domain.SearchParams  `json:"params"`
	QueuePosition int                  `json:"queue_position,omitempty"`
	Progress      *domain.Progress     `json:"progress,omitempty"`
	Result        *domain.SearchResult `json:"result,omitempty"`
	Error         string               `json:"error,omitempty"`
	CustomName    string               `json:"custom_name,omitempty"`
	Archived      bool                 `json:"archived,omitempty"`
}

func (h *SearchHandler) Get(c *gin.Context) {
	jobID := c.Param("id")

	status, err := h.svc.GetSearch(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errSearchNotFound})
			return
		}
		h.logger.Error("get search", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	if rec := status.Archived; rec != nil {
		c.JSON(http.StatusOK, getSearchResponse{
			ID:         rec.JobID,
			Status:     rec.Status,
			CreatedAt:  &rec.CreatedAt,
			Params:     rec.Params,
			Result:     rec.Result,
			Error:      rec.Error,
			CustomName: rec.CustomName,
			Archived:   true,
		})
		return
	}

	job := status.Job
	resp := getSearchResponse{
		ID:       job.ID,
		Status:   job.Status,
		Params:   job.Params,
		Progress: job.Progress,
		Result:   job.Result,
		Error:    job.Error,
	}
	if !job.CreatedAt.IsZero() {
		resp.CreatedAt = &job.CreatedAt
	}
	if job.Status == domain.StatusQueued {
		resp.QueuePosition = status.QueuePosition
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) Cancel(c *gin.Context) {
	jobID := c.Param("id")

	ok, err := h.svc.CancelSearch(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errSearchNotFound})
			return
		}
		h.logger.Error("cancel search", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": errAlreadyFinished})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": jobID, "status": domain.StatusCancelled})
}

func (h *SearchHandler) History(c *gin.Context) {
	recs, err := h.svc.History(c.Request.Context(), middleware.ClientFrom(c))
	if err != nil {
		h.archiveError(c, "list history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"searches": emptyIfNil(recs)})
}

type saveSearchRequest struct {
	Name string `json:"name"`
}

func (h *SearchHandler) Save(c *gin.Context) {
	var req saveSearchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	err := h.svc.SaveSearch(c.Request.Context(), c.Param("id"), middleware.ClientFrom(c), req.Name)
	if err != nil {
		h.archiveError(c, "save search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (h *SearchHandler) Unsave(c *gin.Context) {
	err := h.svc.UnsaveSearch(c.Request.Context(), c.Param("id"), middleware.ClientFrom(c))
	if err != nil {
		h.archiveError(c, "unsave search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": false})
}

func (h *SearchHandler) Saved(c *gin.Context) {
	recs, err := h.svc.ListSaved(c.Request.Context(), middleware.ClientFrom(c))
	if err != nil {
		h.archiveError(c, "list saved", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"searches": emptyIfNil(recs)})
}

func (h *SearchHandler) Hide(c *gin.Context) {
	err := h.svc.HideSearch(c.Request.Context(), c.Param("id"), middleware.ClientFrom(c))
	if err != nil {
		h.archiveError(c, "hide search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hidden": true})
}

func (h *SearchHandler) Unhide(c *gin.Context) {
	err := h.svc.UnhideSearch(c.Request.Context(), c.Param("id"), middleware.ClientFrom(c))
	if err != nil {
		h.archiveError(c, "unhide search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hidden": false})
}

type renameSearchRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *SearchHandler) Rename(c *gin.Context) {
	var req renameSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.RenameSearch(c.Request.Context(), c.Param("id"), middleware.ClientFrom(c), req.Name)
	if err != nil {
		h.archiveError(c, "rename search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": req.Name})
}

// archiveError maps the archive feature's error set to status codes.
func (h *SearchHandler) archiveError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrArchiveDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errArchiveDisabled})
	case errors.Is(err, domain.ErrSearchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errSearchNotFound})
	case errors.Is(err, domain.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": errNotOwner})
	case errors.Is(err, domain.ErrInvalidParams):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

func emptyIfNil(recs []*domain.ArchivedSearch) []*domain.ArchivedSearch {
	if recs == nil {
		return []*domain.ArchivedSearch{}
	}
	return recs
}
