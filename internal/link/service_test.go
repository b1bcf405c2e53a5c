package link

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Devvor/tabchat/internal/models"
	"github.com/Devvor/tabchat/internal/scrape"
)

type fakeScraper struct {
	result *scrape.Result
	err    error
	calls  int
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*scrape.Result, error) {
	_ = ctx
	_ = url
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type scheduled struct {
	job   ExtractJob
	delay time.Duration
}

type fakeScheduler struct {
	entries []scheduled
	err     error
}

func (f *fakeScheduler) ScheduleExtract(ctx context.Context, job ExtractJob, delay time.Duration) error {
	_ = ctx
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, scheduled{job: job, delay: delay})
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.AutoMigrate(&models.User{}, &Link{}), "automigrate")
	return db
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(t *testing.T, scraper *fakeScraper, sched *fakeScheduler) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	svc := NewService(NewRepo(db), scraper, sched, nil, testLogger())
	return svc, db
}

func seedUser(t *testing.T, db *gorm.DB) uint64 {
	t.Helper()
	u := models.User{Email: "u@example.com", Username: "testuser123", PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

func TestSubmit_IdempotentIntake(t *testing.T) {
	sched := &fakeScheduler{}
	svc, db := newTestService(t, &fakeScraper{}, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id1, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/a", Title: "A"})
	require.NoError(t, err)
	require.NotEmpty(t, id1)
	require.Len(t, sched.entries, 1)
	assert.Equal(t, 0, sched.entries[0].job.RetryCount)
	assert.Equal(t, time.Duration(0), sched.entries[0].delay)

	// flip the row so a reset would be visible
	require.NoError(t, db.Model(&Link{}).Where("id = ?", id1).Update("status", StatusCompleted).Error)

	id2, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/a", Title: "A again"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, sched.entries, 1, "resubmission must not re-trigger extraction")

	var cnt int64
	require.NoError(t, db.Model(&Link{}).Where("user_id = ?", uid).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)

	var l Link
	require.NoError(t, db.First(&l, "id = ?", id1).Error)
	assert.Equal(t, StatusCompleted, l.Status, "resubmission must not reset status")
}

func TestSubmit_Validation(t *testing.T) {
	svc, db := newTestService(t, &fakeScraper{}, &fakeScheduler{})
	uid := seedUser(t, db)

	_, err := svc.Submit(context.Background(), uid, SubmitInput{URL: "", Title: "T"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Submit(context.Background(), uid, SubmitInput{URL: "https://x.com", Title: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubmit_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t, &fakeScraper{}, &fakeScheduler{})
	_, err := svc.Submit(context.Background(), 999, SubmitInput{URL: "https://x.com", Title: "T"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmit_ScheduleFailureLeavesNoRow(t *testing.T) {
	sched := &fakeScheduler{err: errors.New("broker down")}
	svc, db := newTestService(t, &fakeScraper{}, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	_, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/a", Title: "A"})
	require.Error(t, err)

	// a pending row the queue never saw would never be re-entered
	var cnt int64
	require.NoError(t, db.Model(&Link{}).Where("user_id = ?", uid).Count(&cnt).Error)
	assert.Zero(t, cnt)

	// the url is free for a later submit once the broker is back
	sched.err = nil
	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/a", Title: "A"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, sched.entries, 1)
}

func TestCreateOrGetExisting_ConcurrentDuplicate(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	uid := seedUser(t, db)
	ctx := context.Background()

	first := &Link{ID: "01WINNER00000000000000000X", UserID: uid, URL: "https://example.com/race", Title: "A", Status: StatusPending}
	require.NoError(t, repo.Create(ctx, first))

	// a second submit that missed the lookup and hit the unique index
	loser := &Link{ID: "01LOSER000000000000000000X", UserID: uid, URL: "https://example.com/race", Title: "A", Status: StatusPending}
	got, created, err := repo.CreateOrGetExisting(ctx, loser)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, got.ID)

	var cnt int64
	require.NoError(t, db.Model(&Link{}).Where("user_id = ?", uid).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)
}

func TestExtract_SuccessDerivesHook(t *testing.T) {
	scraper := &fakeScraper{result: &scrape.Result{
		Markdown:  "# Page\nbody",
		Summary:   "This article explains how neural networks learn through backpropagation and gradient descent over many iterations.",
		KeyPoints: []string{"Backprop works", "Gradients matter"},
	}}
	sched := &fakeScheduler{}
	svc, db := newTestService(t, scraper, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/nn", Title: "Saved title"})
	require.NoError(t, err)

	require.NoError(t, svc.Extract(ctx, sched.entries[0].job))

	var l Link
	require.NoError(t, db.First(&l, "id = ?", id).Error)
	assert.Equal(t, StatusCompleted, l.Status)
	assert.Equal(t, "This article explains how neural networks learn", l.TopicDescription)
	assert.Equal(t, scraper.result.Summary, l.ContentSummary)
	assert.Equal(t, "# Page\nbody", l.ProcessedContent)
	assert.Equal(t, []string{"Backprop works", "Gradients matter"}, l.KeyPoints)
	require.NotNil(t, l.ProcessedAt)
	assert.Equal(t, "Saved title", l.Title, "title stays when extractor omits it")
	assert.Empty(t, sched.entries[1:], "success is terminal, no retry scheduled")
}

func TestExtract_ExtractorTitleWins(t *testing.T) {
	scraper := &fakeScraper{result: &scrape.Result{
		Title:     "Extractor title",
		Summary:   "A summary.",
		KeyPoints: []string{"point"},
	}}
	sched := &fakeScheduler{}
	svc, db := newTestService(t, scraper, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/t", Title: "Saved title"})
	require.NoError(t, err)
	require.NoError(t, svc.Extract(ctx, sched.entries[0].job))

	var l Link
	require.NoError(t, db.First(&l, "id = ?", id).Error)
	assert.Equal(t, "Extractor title", l.Title)
}

func TestExtract_ExtractorDescriptionWins(t *testing.T) {
	scraper := &fakeScraper{result: &scrape.Result{
		Description: "Short extractor hook",
		Summary:     "A much longer summary that would otherwise be truncated into a hook.",
		KeyPoints:   []string{"point"},
	}}
	sched := &fakeScheduler{}
	svc, db := newTestService(t, scraper, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/d", Title: "T"})
	require.NoError(t, err)
	require.NoError(t, svc.Extract(ctx, sched.entries[0].job))

	var l Link
	require.NoError(t, db.First(&l, "id = ?", id).Error)
	assert.Equal(t, "Short extractor hook", l.TopicDescription)
}

func TestExtract_MissingFieldsIsFailure(t *testing.T) {
	// 2xx response with no key points still counts as a failed attempt
	scraper := &fakeScraper{result: &scrape.Result{Summary: "only a summary"}}
	sched := &fakeScheduler{}
	svc, db := newTestService(t, scraper, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/m", Title: "T"})
	require.NoError(t, err)

	require.NoError(t, svc.Extract(ctx, sched.entries[0].job))

	require.Len(t, sched.entries, 2, "retry scheduled")
	assert.Equal(t, 1, sched.entries[1].job.RetryCount)

	var l Link
	require.NoError(t, db.First(&l, "id = ?", id).Error)
	assert.Equal(t, StatusProcessing, l.Status, "row stays processing through the retry window")
}

func TestExtract_RetryCeilingAndBackoff(t *testing.T) {
	scraper := &fakeScraper{err: errors.New("HTTP 503")}
	sched := &fakeScheduler{}
	svc, db := newTestService(t, scraper, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/down", Title: "T"})
	require.NoError(t, err)

	// drive the chain to quiescence: initial attempt plus each retry
	// the scheduler recorded
	next := 0
	for next < len(sched.entries) {
		job := sched.entries[next].job
		next++
		require.NoError(t, svc.Extract(ctx, job))
	}

	assert.Equal(t, MaxRetries+1, scraper.calls, "initial attempt plus 3 retries")
	require.Len(t, sched.entries, 4, "intake schedule plus 3 retries")

	wantDelays := []time.Duration{0, 5 * time.Second, 10 * time.Second, 20 * time.Second}
	for i, e := range sched.entries {
		assert.Equal(t, wantDelays[i], e.delay, "attempt %d delay", i)
		assert.Equal(t, i, e.job.RetryCount)
	}

	var l Link
	require.NoError(t, db.First(&l, "id = ?", id).Error)
	assert.Equal(t, StatusFailed, l.Status)
	assert.Contains(t, l.LastError, "HTTP 503")
}

func TestExtract_DeletedLinkIsNoop(t *testing.T) {
	scraper := &fakeScraper{err: errors.New("should not be called")}
	svc, _ := newTestService(t, scraper, &fakeScheduler{})

	job := ExtractJob{LinkID: "01GONE0000000000000000000adr", UserID: 1, URL: "https://x.com"}
	require.NoError(t, svc.Extract(context.Background(), job))
	assert.Equal(t, 0, scraper.calls)
}

func TestReprocess_BypassesDedup(t *testing.T) {
	scraper := &fakeScraper{result: &scrape.Result{Summary: "s", KeyPoints: []string{"k"}}}
	sched := &fakeScheduler{}
	svc, db := newTestService(t, scraper, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/r", Title: "T"})
	require.NoError(t, err)
	require.NoError(t, svc.Extract(ctx, sched.entries[0].job))

	var l Link
	require.NoError(t, db.First(&l, "id = ?", id).Error)
	require.Equal(t, StatusCompleted, l.Status)

	// submit would be a no-op here; reprocess re-enters anyway
	require.NoError(t, svc.Reprocess(ctx, uid, id))
	require.Len(t, sched.entries, 2)
	assert.Equal(t, 0, sched.entries[1].job.RetryCount, "fresh retry budget")

	require.NoError(t, svc.Extract(ctx, sched.entries[1].job))
	require.NoError(t, db.First(&l, "id = ?", id).Error)
	assert.Equal(t, StatusCompleted, l.Status)
}

func TestReprocess_HidesOtherUsersLinks(t *testing.T) {
	sched := &fakeScheduler{}
	svc, db := newTestService(t, &fakeScraper{}, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/o", Title: "T"})
	require.NoError(t, err)

	err = svc.Reprocess(ctx, uid+1, id)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRetryAllFailed_ResetsBudget(t *testing.T) {
	sched := &fakeScheduler{}
	svc, db := newTestService(t, &fakeScraper{}, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	mk := func(url string, status Status) string {
		id, err := svc.Submit(ctx, uid, SubmitInput{URL: url, Title: "T"})
		require.NoError(t, err)
		require.NoError(t, db.Model(&Link{}).Where("id = ?", id).Update("status", status).Error)
		return id
	}
	failedA := mk("https://example.com/f1", StatusFailed)
	failedB := mk("https://example.com/f2", StatusFailed)
	mk("https://example.com/ok", StatusCompleted)

	sched.entries = nil
	n, err := svc.RetryAllFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sched.entries, 2)

	got := map[string]bool{}
	for _, e := range sched.entries {
		got[e.job.LinkID] = true
		assert.Equal(t, 0, e.job.RetryCount, "sweep re-enters at a full budget")
		assert.Equal(t, time.Duration(0), e.delay)
	}
	assert.True(t, got[failedA])
	assert.True(t, got[failedB])
}

func TestDelete_OwnerOnly(t *testing.T) {
	sched := &fakeScheduler{}
	svc, db := newTestService(t, &fakeScraper{}, sched)
	uid := seedUser(t, db)
	ctx := context.Background()

	id, err := svc.Submit(ctx, uid, SubmitInput{URL: "https://example.com/del", Title: "T"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, uid+1, id), gorm.ErrRecordNotFound)
	require.NoError(t, svc.Delete(ctx, uid, id))

	var cnt int64
	require.NoError(t, db.Model(&Link{}).Count(&cnt).Error)
	assert.EqualValues(t, 0, cnt)
}
