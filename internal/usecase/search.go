package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tripradar/tripradar/internal/domain"
	"github.com/tripradar/tripradar/internal/repository"
)

const (
	defaultTripLength = 7
	defaultTopN       = 10
	maxTopN           = 50
	isoDate           = "2006-01-02"
)

type SearchUsecase struct {
	store          repository.JobStore
	archive        repository.Archive // nil when the deployment runs without a database
	knownProviders []string
	defaultOrigin  string
}

func NewSearchUsecase(store repository.JobStore, archive repository.Archive, knownProviders []string, defaultOrigin string) *SearchUsecase {
	return &SearchUsecase{
		store:          store,
		archive:        archive,
		knownProviders: knownProviders,
		defaultOrigin:  defaultOrigin,
	}
}

// SearchStatus is one job's current view. Exactly one of Job/Archived
// is set; QueuePosition is meaningful only while the job is queued.
type SearchStatus struct {
	Job           *domain.Job
	QueuePosition int
	Archived      *domain.ArchivedSearch
}

func (u *SearchUsecase) StartSearch(ctx context.Context, params domain.SearchParams) (string, error) {
	normalized, err := u.normalize(params)
	if err != nil {
		return "", err
	}
	id, err := u.store.Enqueue(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("enqueue search: %w", err)
	}
	return id, nil
}

func (u *SearchUsecase) normalize(p domain.SearchParams) (domain.SearchParams, error) {
	p.Origin = strings.ToUpper(strings.TrimSpace(p.Origin))
	if p.Origin == "" {
		p.Origin = u.defaultOrigin
	}
	if len(p.Origin) != 3 {
		return p, fmt.Errorf("%w: origin must be a 3-letter airport code", domain.ErrInvalidParams)
	}

	start, err := time.Parse(isoDate, p.Start)
	if err != nil {
		return p, fmt.Errorf("%w: start must be YYYY-MM-DD", domain.ErrInvalidParams)
	}
	end, err := time.Parse(isoDate, p.End)
	if err != nil {
		return p, fmt.Errorf("%w: end must be YYYY-MM-DD", domain.ErrInvalidParams)
	}
	if end.Before(start) {
		return p, fmt.Errorf("%w: end before start", domain.ErrInvalidParams)
	}

	if p.TripLength == 0 {
		p.TripLength = defaultTripLength
	}
	if p.TripLength < 1 {
		return p, fmt.Errorf("%w: trip length must be positive", domain.ErrInvalidParams)
	}
	if start.AddDate(0, 0, p.TripLength).After(end) {
		return p, fmt.Errorf("%w: window shorter than trip length", domain.ErrInvalidParams)
	}

	if len(p.Providers) == 0 {
		p.Providers = append([]string(nil), u.knownProviders...)
	} else {
		for i, name := range p.Providers {
			name = strings.ToLower(strings.TrimSpace(name))
			if !u.knownProvider(name) {
				return p, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidParams, name)
			}
			p.Providers[i] = name
		}
	}

	if p.TopN == 0 {
		p.TopN = defaultTopN
	}
	if p.TopN < 1 || p.TopN > maxTopN {
		return p, fmt.Errorf("%w: top_n must be between 1 and %d", domain.ErrInvalidParams, maxTopN)
	}
	return p, nil
}

func (u *SearchUsecase) knownProvider(name string) bool {
	for _, known := range u.knownProviders {
		if known == name {
			return true
		}
	}
	return false
}

// GetSearch reads the live job record, falling back to the archive once
// the Redis record has expired.
func (u *SearchUsecase) GetSearch(ctx context.Context, jobID string) (*SearchStatus, error) {
	job, err := u.store.GetJob(ctx, jobID)
	if err == nil {
		status := &SearchStatus{Job: job}
		if job.Status == domain.StatusQueued {
			if pos, perr := u.store.QueuePosition(ctx, jobID); perr == nil {
				status.QueuePosition = pos
			}
		}
		return status, nil
	}
	if !errors.Is(err, domain.ErrJobNotFound) {
		return nil, fmt.Errorf("get job: %w", err)
	}

	if u.archive == nil {
		return nil, domain.ErrJobNotFound
	}
	rec, aerr := u.archive.Get(ctx, jobID)
	if errors.Is(aerr, domain.ErrSearchNotFound) {
		return nil, domain.ErrJobNotFound
	}
	if aerr != nil {
		return nil, fmt.Errorf("get archived search: %w", aerr)
	}
	return &SearchStatus{Archived: rec}, nil
}

// CancelSearch returns false when the job was already terminal.
func (u *SearchUsecase) CancelSearch(ctx context.Context, jobID string) (bool, error) {
	return u.store.Cancel(ctx, jobID)
}

func (u *SearchUsecase) History(ctx context.Context, clientID string) ([]*domain.ArchivedSearch, error) {
	if u.archive == nil {
		return nil, domain.ErrArchiveDisabled
	}
	return u.archive.ListByClient(ctx, clientID)
}

func (u *SearchUsecase) SaveSearch(ctx context.Context, jobID, clientID, customName string) error {
	if u.archive == nil {
		return domain.ErrArchiveDisabled
	}
	return u.archive.SaveForClient(ctx, jobID, clientID, customName)
}

func (u *SearchUsecase) UnsaveSearch(ctx context.Context, jobID, clientID string) error {
	if u.archive == nil {
		return domain.ErrArchiveDisabled
	}
	return u.archive.Unsave(ctx, jobID, clientID)
}

func (u *SearchUsecase) ListSaved(ctx context.Context, clientID string) ([]*domain.ArchivedSearch, error) {
	if u.archive == nil {
		return nil, domain.ErrArchiveDisabled
	}
	return u.archive.ListSaved(ctx, clientID)
}

func (u *SearchUsecase) HideSearch(ctx context.Context, jobID, clientID string) error {
	if u.archive == nil {
		return domain.ErrArchiveDisabled
	}
	return u.archive.Hide(ctx, jobID, clientID)
}

func (u *SearchUsecase) UnhideSearch(ctx context.Context, jobID, clientID string) error {
	if u.archive == nil {
		return domain.ErrArchiveDisabled
	}
	return u.archive.Unhide(ctx, jobID, clientID)
}

func (u *SearchUsecase) RenameSearch(ctx context.Context, jobID, clientID, name string) error {
	if u.archive == nil {
		return domain.ErrArchiveDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", domain.ErrInvalidParams)
	}
	return u.archive.Rename(ctx, jobID, clientID, name)
}
