package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tripradar/tripradar/internal/domain"
	"github.com/tripradar/tripradar/internal/health"
	httptransport "github.com/tripradar/tripradar/internal/transport/http"
	"github.com/tripradar/tripradar/internal/transport/http/handler"
	"github.com/tripradar/tripradar/internal/usecase"
)

type fakeService struct {
	startedWith  *domain.SearchParams
	startErr     error
	status       *usecase.SearchStatus
	statusErr    error
	cancelOK     bool
	cancelErr    error
	history      []*domain.ArchivedSearch
	historyErr   error
	archiveOpErr error
	renamedTo    string
}

func (f *fakeService) StartSearch(_ context.Context, params domain.SearchParams) (string, error) {
	f.startedWith = &params
	if f.startErr != nil {
		return "", f.startErr
	}
	return "job-42", nil
}

func (f *fakeService) GetSearch(context.Context, string) (*usecase.SearchStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeService) CancelSearch(context.Context, string) (bool, error) {
	return f.cancelOK, f.cancelErr
}

func (f *fakeService) History(context.Context, string) ([]*domain.ArchivedSearch, error) {
	return f.history, f.historyErr
}

func (f *fakeService) SaveSearch(context.Context, string, string, string) error {
	return f.archiveOpErr
}
func (f *fakeService) UnsaveSearch(context.Context, string, string) error { return f.archiveOpErr }
func (f *fakeService) ListSaved(context.Context, string) ([]*domain.ArchivedSearch, error) {
	return f.history, f.historyErr
}
func (f *fakeService) HideSearch(context.Context, string, string) error   { return f.archiveOpErr }
func (f *fakeService) UnhideSearch(context.Context, string, string) error { return f.archiveOpErr }

func (f *fakeService) RenameSearch(_ context.Context, _, _, name string) error {
	if f.archiveOpErr != nil {
		return f.archiveOpErr
	}
	f.renamedTo = name
	return nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.Default()
	checker := health.NewChecker(logger, prometheus.NewRegistry(),
		health.Dependency{Name: "redis", Pinger: okPinger{}})
	return httptransport.NewRouter(logger, handler.NewSearchHandler(svc, logger), checker)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, clientID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if clientID != "" {
		req.Header.Set("X-Client-ID", clientID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSearch_Accepted(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/searches",
		`{"start":"2026-05-01","end":"2026-05-20","origin":"WRO"}`, "client-7")

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "job-42" || resp.Status != "queued" {
		t.Errorf("response = %+v", resp)
	}
	if svc.startedWith.ClientID != "client-7" {
		t.Errorf("client id not propagated: %+v", svc.startedWith)
	}
}

func TestCreateSearch_InvalidParams(t *testing.T) {
	svc := &fakeService{startErr: domain.ErrInvalidParams}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/searches",
		`{"start":"2026-05-01","end":"2026-04-01"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateSearch_MissingDates(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := doJSON(t, r, http.MethodPost, "/searches", `{"origin":"WRO"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetSearch_QueuedWithPosition(t *testing.T) {
	svc := &fakeService{status: &usecase.SearchStatus{
		Job:           &domain.Job{ID: "job-42", Status: domain.StatusQueued},
		QueuePosition: 3,
	}}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/searches/job-42", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Status        string `json:"status"`
		QueuePosition int    `json:"queue_position"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "queued" || resp.QueuePosition != 3 {
		t.Errorf("response = %+v", resp)
	}
}

func TestGetSearch_NotFound(t *testing.T) {
	svc := &fakeService{statusErr: domain.ErrJobNotFound}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/searches/gone", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetSearch_ArchivedFallback(t *testing.T) {
	svc := &fakeService{status: &usecase.SearchStatus{
		Archived: &domain.ArchivedSearch{
			JobID:  "job-42",
			Status: domain.StatusDone,
			Result: &domain.SearchResult{},
		},
	}}
	r := newTestRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/searches/job-42", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Status   string `json:"status"`
		Archived bool   `json:"archived"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "done" || !resp.Archived {
		t.Errorf("response = %+v", resp)
	}
}

func TestCancelSearch(t *testing.T) {
	t.Run("running job cancelled", func(t *testing.T) {
		r := newTestRouter(&fakeService{cancelOK: true})
		if w := doJSON(t, r, http.MethodDelete, "/searches/job-42", "", ""); w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
	t.Run("terminal job refused", func(t *testing.T) {
		r := newTestRouter(&fakeService{cancelOK: false})
		if w := doJSON(t, r, http.MethodDelete, "/searches/job-42", "", ""); w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", w.Code)
		}
	})
	t.Run("unknown job", func(t *testing.T) {
		r := newTestRouter(&fakeService{cancelErr: domain.ErrJobNotFound})
		if w := doJSON(t, r, http.MethodDelete, "/searches/gone", "", ""); w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}

func TestHistory_RequiresClientHeader(t *testing.T) {
	r := newTestRouter(&fakeService{})
	if w := doJSON(t, r, http.MethodGet, "/searches", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without X-Client-ID", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/searches", "", "client-7"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with X-Client-ID", w.Code)
	}
}

func TestHistory_ArchiveDisabled(t *testing.T) {
	r := newTestRouter(&fakeService{historyErr: domain.ErrArchiveDisabled})
	if w := doJSON(t, r, http.MethodGet, "/searches", "", "client-7"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRename_OwnershipEnforced(t *testing.T) {
	r := newTestRouter(&fakeService{archiveOpErr: domain.ErrNotOwner})
	w := doJSON(t, r, http.MethodPatch, "/searches/job-42/name", `{"name":"spring trip"}`, "client-7")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestSave_UnknownSearch(t *testing.T) {
	r := newTestRouter(&fakeService{archiveOpErr: domain.ErrSearchNotFound})
	w := doJSON(t, r, http.MethodPost, "/searches/gone/save", `{"name":"keeper"}`, "client-7")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(&fakeService{})
	if w := doJSON(t, r, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
