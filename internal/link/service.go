package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Devvor/tabchat/internal/common"
	"github.com/Devvor/tabchat/internal/scrape"
)

const (
	// MaxRetries is the number of scheduled retries after the initial
	// attempt; a link sees at most MaxRetries+1 attempts per chain.
	MaxRetries = 3

	// RetryBaseDelay doubles with each retry: 5s, 10s, 20s.
	RetryBaseDelay = 5 * time.Second
)

var ErrInvalidInput = errors.New("invalid input")

// Scheduler enqueues an extraction attempt after a delay. Scheduling is
// durable: a scheduled attempt survives process restarts.
type Scheduler interface {
	ScheduleExtract(ctx context.Context, job ExtractJob, delay time.Duration) error
}

type Service struct {
	repo    *Repo
	scraper scrape.Client
	sched   Scheduler
	sniffer scrape.Sniffer // optional metadata fallback
	log     logrus.FieldLogger
}

func NewService(repo *Repo, scraper scrape.Client, sched Scheduler, sniffer scrape.Sniffer, logger logrus.FieldLogger) *Service {
	return &Service{
		repo:    repo,
		scraper: scraper,
		sched:   sched,
		sniffer: sniffer,
		log:     logger.WithField("component", "link_service"),
	}
}

type SubmitInput struct {
	URL         string
	Title       string
	Description string
	Favicon     string
}

// Submit saves a link and schedules extraction for it. Intake is
// idempotent on (userID, URL): an existing row's id is returned
// unchanged with no side effects and no re-processing.
func (s *Service) Submit(ctx context.Context, userID uint64, in SubmitInput) (string, error) {
	url := strings.TrimSpace(in.URL)
	title := strings.TrimSpace(in.Title)
	if url == "" || title == "" {
		return "", fmt.Errorf("%w: url and title are required", ErrInvalidInput)
	}

	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", gorm.ErrRecordNotFound
	}

	if existing, err := s.repo.GetByUserAndURL(ctx, userID, url); err == nil {
		return existing.ID, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	l := &Link{
		ID:          id,
		UserID:      userID,
		URL:         url,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Favicon:     strings.TrimSpace(in.Favicon),
		Status:      StatusPending,
		IsRead:      false,
	}
	stored, created, err := s.repo.CreateOrGetExisting(ctx, l)
	if err != nil {
		return "", err
	}
	if !created {
		// lost a race with a concurrent submit for the same url
		return stored.ID, nil
	}

	job := ExtractJob{LinkID: id, UserID: userID, URL: url, Title: title}
	if err := s.sched.ScheduleExtract(ctx, job, 0); err != nil {
		// the sweep only re-enters failed rows, so a pending row the
		// queue never saw would be stranded; undo the insert instead
		if derr := s.repo.Delete(ctx, userID, id); derr != nil && !errors.Is(derr, gorm.ErrRecordNotFound) {
			s.log.WithError(derr).WithField("link_id", id).Error("rollback of unscheduled link failed")
		}
		return "", err
	}

	s.log.WithFields(logrus.Fields{"link_id": id, "user_id": userID}).Info("link saved, extraction scheduled")
	return id, nil
}

// Extract runs one extraction attempt. Failures are absorbed into the
// retry/backoff chain and never returned; a non-nil error means the
// attempt itself could not run (DB or queue trouble) and the delivery
// should be redelivered or dead-lettered.
func (s *Service) Extract(ctx context.Context, job ExtractJob) error {
	log := s.log.WithFields(logrus.Fields{"link_id": job.LinkID, "retry": job.RetryCount})

	l, err := s.repo.GetByID(ctx, job.LinkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// deleted before a scheduled attempt fired
			log.Warn("link gone before extraction, skipping")
			return nil
		}
		return err
	}

	if err := s.repo.UpdateStatus(ctx, job.LinkID, StatusProcessing); err != nil {
		return err
	}

	res, err := s.scraper.Scrape(ctx, job.URL)
	if err == nil && (res.Summary == "" || len(res.KeyPoints) == 0) {
		err = errors.New("extract response missing summary or key points")
	}
	if err != nil {
		return s.retryOrFail(ctx, job, err)
	}

	hook := strings.TrimSpace(res.Description)
	if hook == "" {
		hook = DeriveHook(res.Summary, res.KeyPoints)
	}

	fields := Extracted{
		Title:     strings.TrimSpace(res.Title),
		Content:   res.Markdown,
		Summary:   res.Summary,
		Hook:      hook,
		KeyPoints: res.KeyPoints,
	}

	if s.sniffer != nil && (l.Favicon == "" || (fields.Title == "" && l.Title == "")) {
		// best effort; the extraction result stands either way
		if meta, serr := s.sniffer.Sniff(ctx, job.URL); serr == nil {
			if l.Favicon == "" {
				fields.Favicon = meta.FaviconURL
			}
			if fields.Title == "" && l.Title == "" {
				fields.Title = meta.Title
			}
		} else {
			log.WithError(serr).Debug("metadata sniff failed")
		}
	}

	if err := s.repo.CompleteExtraction(ctx, job.LinkID, fields); err != nil {
		return err
	}
	log.Info("extraction completed")
	return nil
}

func (s *Service) retryOrFail(ctx context.Context, job ExtractJob, cause error) error {
	log := s.log.WithFields(logrus.Fields{"link_id": job.LinkID, "retry": job.RetryCount})

	if job.RetryCount < MaxRetries {
		delay := RetryBaseDelay << job.RetryCount
		next := job
		next.RetryCount++
		log.WithError(cause).WithField("delay", delay).Warn("extraction failed, retry scheduled")
		// row stays in processing through the retry window
		return s.sched.ScheduleExtract(ctx, next, delay)
	}

	log.WithError(cause).Error("extraction failed permanently")
	return s.repo.MarkFailed(ctx, job.LinkID, cause.Error())
}

// Reprocess re-enters extraction for an owned link from any status,
// with a fresh retry budget. It deliberately bypasses intake dedup.
func (s *Service) Reprocess(ctx context.Context, userID uint64, linkID string) error {
	l, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return err
	}
	if l.UserID != userID {
		// hide existence
		return gorm.ErrRecordNotFound
	}

	job := ExtractJob{LinkID: l.ID, UserID: l.UserID, URL: l.URL, Title: l.Title}
	if err := s.sched.ScheduleExtract(ctx, job, 0); err != nil {
		return err
	}
	s.log.WithField("link_id", linkID).Info("manual reprocess scheduled")
	return nil
}

// RetryAllFailed re-enters every failed link at retry count 0, giving
// each a fresh full attempt budget. Runs on the periodic sweep.
func (s *Service) RetryAllFailed(ctx context.Context) (int, error) {
	failed, err := s.repo.ListByStatus(ctx, StatusFailed)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range failed {
		job := ExtractJob{LinkID: l.ID, UserID: l.UserID, URL: l.URL, Title: l.Title}
		if err := s.sched.ScheduleExtract(ctx, job, 0); err != nil {
			s.log.WithError(err).WithField("link_id", l.ID).Error("sweep enqueue failed")
			continue
		}
		n++
	}
	if n > 0 {
		s.log.WithField("count", n).Info("sweep re-queued failed links")
	}
	return n, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uint64) ([]Link, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID uint64, linkID string) (*Link, error) {
	l, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return l, nil
}

func (s *Service) SetRead(ctx context.Context, userID uint64, linkID string, read bool) error {
	return s.repo.SetRead(ctx, userID, linkID, read)
}

// Delete removes a link. A retry already scheduled for it will find the
// row gone and no-op; scheduled work cannot be revoked.
func (s *Service) Delete(ctx context.Context, userID uint64, linkID string) error {
	return s.repo.Delete(ctx, userID, linkID)
}
