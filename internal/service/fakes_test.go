package service

import (
	"fmt"
	"sort"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
)

type memoryThreadRepo struct {
	threads map[string]*models.Thread
}

func newMemoryThreadRepo() *memoryThreadRepo {
	return &memoryThreadRepo{threads: make(map[string]*models.Thread)}
}

func (r *memoryThreadRepo) Upsert(thread *models.Thread) error {
	copied := *thread
	r.threads[thread.RootID] = &copied
	return nil
}

func (r *memoryThreadRepo) Get(rootID string) (*models.Thread, error) {
	thread, ok := r.threads[rootID]
	if !ok {
		return nil, nil
	}
	copied := *thread
	return &copied, nil
}

func (r *memoryThreadRepo) ListAll() ([]models.Thread, error) {
	keys := make([]string, 0, len(r.threads))
	for key := range r.threads {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]models.Thread, 0, len(keys))
	for _, key := range keys {
		out = append(out, *r.threads[key])
	}
	return out, nil
}

func (r *memoryThreadRepo) ListForHandle(handle string) ([]models.Thread, error) {
	all, _ := r.ListAll()
	out := make([]models.Thread, 0)
	for _, thread := range all {
		if thread.AuthorHandle == handle {
			out = append(out, thread)
		}
	}
	return out, nil
}

func (r *memoryThreadRepo) Delete(rootID string) error {
	delete(r.threads, rootID)
	return nil
}

type memoryTranslationRepo struct {
	records map[string]*models.TranslationRecord
	upserts int
}

func newMemoryTranslationRepo() *memoryTranslationRepo {
	return &memoryTranslationRepo{records: make(map[string]*models.TranslationRecord)}
}

func (r *memoryTranslationRepo) Upsert(record *models.TranslationRecord) error {
	copied := *record
	r.records[record.RootID] = &copied
	r.upserts++
	return nil
}

func (r *memoryTranslationRepo) Get(rootID string) (*models.TranslationRecord, error) {
	record, ok := r.records[rootID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *memoryTranslationRepo) ListAll() ([]models.TranslationRecord, error) {
	keys := make([]string, 0, len(r.records))
	for key := range r.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]models.TranslationRecord, 0, len(keys))
	for _, key := range keys {
		out = append(out, *r.records[key])
	}
	return out, nil
}

func (r *memoryTranslationRepo) ListForHandle(handle string) ([]models.TranslationRecord, error) {
	all, _ := r.ListAll()
	out := make([]models.TranslationRecord, 0)
	for _, record := range all {
		if record.AuthorHandle == handle {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *memoryTranslationRepo) Delete(rootID string) error {
	delete(r.records, rootID)
	return nil
}

type memoryJobRepo struct {
	jobs []*models.ScheduledJob
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{}
}

func (r *memoryJobRepo) Enqueue(job *models.ScheduledJob) error {
	copied := *job
	copied.ID = uint(len(r.jobs) + 1)
	job.ID = copied.ID
	r.jobs = append(r.jobs, &copied)
	return nil
}

func (r *memoryJobRepo) Get(jobID string) (*models.ScheduledJob, error) {
	for _, job := range r.jobs {
		if job.JobID == jobID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memoryJobRepo) ListPending() ([]models.ScheduledJob, error) {
	out := make([]models.ScheduledJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out, nil
}

func (r *memoryJobRepo) Update(job *models.ScheduledJob) error {
	for i, stored := range r.jobs {
		if stored.JobID == job.JobID {
			copied := *job
			r.jobs[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("job %s not stored", job.JobID)
}

type recordedEvent struct {
	Kind    string
	RefID   string
	Message string
}

type memoryActivityLog struct {
	events []recordedEvent
}

func (l *memoryActivityLog) Record(kind, refID, message string) {
	l.events = append(l.events, recordedEvent{Kind: kind, RefID: refID, Message: message})
}

type fakeScraperClient struct {
	threads map[string][]*models.Thread
	err     error
	calls   []int
}

func (c *fakeScraperClient) FetchThreads(handle string, limit int) ([]*models.Thread, error) {
	c.calls = append(c.calls, limit)
	if c.err != nil {
		return nil, c.err
	}
	return c.threads[handle], nil
}

type fakeProvider struct {
	translations []string
	titles       []string
	err          error
	calls        int
}

func (p *fakeProvider) TranslateSegments(thread *models.Thread) ([]string, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.translations, nil
}

func (p *fakeProvider) GenerateTitles(thread *models.Thread, translated []string, count int) ([]string, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.titles, nil
}

func (p *fakeProvider) BuildTranslationPrompt(thread *models.Thread) string {
	return fmt.Sprintf("translate %d segments", len(thread.Segments))
}

func (p *fakeProvider) BuildTitlePrompt(translated []string, count int) string {
	return fmt.Sprintf("title %d segments", len(translated))
}

type postedTweet struct {
	Text      string
	MediaURLs []string
	InReplyTo string
}

type fakePublisherClient struct {
	posted  []postedTweet
	failAt  int
	nextID  int
	lastErr error
}

func (c *fakePublisherClient) Post(text string, mediaURLs []string, inReplyTo string) (string, error) {
	if c.failAt > 0 && len(c.posted)+1 == c.failAt {
		c.lastErr = fmt.Errorf("network down")
		return "", c.lastErr
	}
	c.posted = append(c.posted, postedTweet{Text: text, MediaURLs: mediaURLs, InReplyTo: inReplyTo})
	c.nextID++
	return fmt.Sprintf("post-%d", c.nextID), nil
}

func testPublisherConfig() *config.PublisherConfig {
	return &config.PublisherConfig{
		DefaultProfile: "default",
		TitleCount:     5,
		Profiles: []config.PublisherProfile{
			{
				Name:              "default",
				ConsumerKey:       "ck",
				ConsumerSecret:    "cs",
				AccessToken:       "at",
				AccessTokenSecret: "ats",
				ClosingMessage:    "Thanks for reading!",
			},
			{
				Name:              "alt",
				ConsumerKey:       "ck2",
				ConsumerSecret:    "cs2",
				AccessToken:       "at2",
				AccessTokenSecret: "ats2",
			},
			{
				Name: "broken",
			},
		},
	}
}
