package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/models"
	"github.com/mosli/threadloom/internal/service"
)

func (s *Server) handleListThreads(c *gin.Context) {
	var (
		threads []models.Thread
		err     error
	)
	if handle := c.Query("handle"); handle != "" {
		threads, err = s.Runtime.Threads.ListForHandle(handle)
	} else {
		threads, err = s.Runtime.Threads.ListAll()
	}
	if err != nil {
		s.Logger.Error("Failed to list threads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list threads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (s *Server) handleGetThread(c *gin.Context) {
	thread, err := s.Runtime.Threads.Get(c.Param("id"))
	if err != nil {
		s.Logger.Error("Failed to get thread", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get thread"})
		return
	}
	if thread == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Thread not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thread": thread})
}

func (s *Server) handleScrape(c *gin.Context) {
	var req struct {
		Handle string `json:"handle" binding:"required"`
		Limit  int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.Runtime.Scraper.SyncHandle(req.Handle, req.Limit)
	if err != nil {
		s.Logger.Error("Failed to scrape handle", zap.String("handle", req.Handle), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scrape handle"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) handleScrapeAll(c *gin.Context) {
	results, err := s.Runtime.Scraper.SyncAll()
	if err != nil {
		s.Logger.Error("Failed to scrape handles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scrape handles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleListTranslations(c *gin.Context) {
	var (
		records []models.TranslationRecord
		err     error
	)
	if handle := c.Query("handle"); handle != "" {
		records, err = s.Runtime.Translations.ListForHandle(handle)
	} else {
		records, err = s.Runtime.Translations.ListAll()
	}
	if err != nil {
		s.Logger.Error("Failed to list translations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list translations"})
		return
	}

	if status := c.Query("status"); status != "" {
		filtered := make([]models.TranslationRecord, 0, len(records))
		for _, record := range records {
			if string(record.Status) == status {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}

	c.JSON(http.StatusOK, gin.H{"translations": records})
}

func (s *Server) handleGetTranslation(c *gin.Context) {
	record, err := s.Runtime.Translations.Get(c.Param("id"))
	if err != nil {
		s.Logger.Error("Failed to get translation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get translation"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Translation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"translation": record})
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req struct {
		TweetID       string `json:"tweet_id" binding:"required"`
		Force         bool   `json:"force"`
		IncludeTitles *bool  `json:"include_titles"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.Runtime.Translator.TranslateThread(req.TweetID, req.IncludeTitles, req.Force)
	if err != nil {
		s.renderServiceError(c, "Failed to translate thread", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) handleTranslatePending(c *gin.Context) {
	var req struct {
		IncludeTitles *bool `json:"include_titles"`
		Force         bool  `json:"force"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	created, err := s.Runtime.Translator.TranslatePending(req.IncludeTitles, req.Force)
	if err != nil {
		s.renderServiceError(c, "Failed to translate pending threads", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created})
}

func (s *Server) handleTranslationPrompt(c *gin.Context) {
	prompt, err := s.Runtime.Translator.ManualTranslationPrompt(c.Param("id"))
	if err != nil {
		s.renderServiceError(c, "Failed to build translation prompt", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

func (s *Server) handleTitlePrompt(c *gin.Context) {
	prompt, err := s.Runtime.Translator.ManualTitlePrompt(c.Param("id"))
	if err != nil {
		s.renderServiceError(c, "Failed to build title prompt", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

type publishRequest struct {
	TweetID        string `json:"tweet_id" binding:"required"`
	Profile        string `json:"profile"`
	TitleIndex     *int   `json:"title_index"`
	IncludeClosing *bool  `json:"include_closing"`
	DryRun         bool   `json:"dry_run"`
	Force          bool   `json:"force"`
}

func (r *publishRequest) options() service.PublishOptions {
	includeClosing := true
	if r.IncludeClosing != nil {
		includeClosing = *r.IncludeClosing
	}
	return service.PublishOptions{
		Profile:        r.Profile,
		TitleIndex:     r.TitleIndex,
		IncludeClosing: includeClosing,
		DryRun:         r.DryRun,
		Force:          r.Force,
	}
}

func (s *Server) handlePublishPlan(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := s.Runtime.Publisher.BuildPlan(req.TweetID, req.options())
	if err != nil {
		s.renderServiceError(c, "Failed to build publish plan", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (s *Server) handlePublish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.Runtime.Publisher.Publish(req.TweetID, req.options())
	if err != nil {
		s.renderServiceError(c, "Failed to publish thread", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.Runtime.Jobs.ListPending()
	if err != nil {
		s.Logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleEnqueueJob(c *gin.Context) {
	var req struct {
		Name    string         `json:"name" binding:"required"`
		Payload models.JSONMap `json:"payload"`
		RunAt   *time.Time     `json:"run_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.Runtime.Scheduler.Enqueue(req.Name, req.Payload, req.RunAt)
	if err != nil {
		s.renderServiceError(c, "Failed to enqueue job", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleRunJobs(c *gin.Context) {
	results, err := s.Runtime.Scheduler.RunPending(time.Now().UTC())
	if err != nil {
		s.Logger.Error("Failed to run pending jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run pending jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"executions": results})
}

func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := s.Runtime.Commands.Handle(req.Command)
	if err != nil {
		s.renderServiceError(c, "Command failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (s *Server) handleActivity(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := s.Runtime.Activity.List(limit)
	if err != nil {
		s.Logger.Error("Failed to list activity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list activity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": records})
}

// renderServiceError maps pipeline errors to HTTP statuses, keeping the
// original message so operators see which ids were involved.
func (s *Server) renderServiceError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrThreadNotFound),
		errors.Is(err, service.ErrTranslationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyPublished):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnknownHandler),
		errors.Is(err, service.ErrUnknownProfile),
		errors.Is(err, service.ErrProfileMisconfigured),
		errors.Is(err, service.ErrDuplicateSegment),
		errors.Is(err, service.ErrMissingTranslation),
		errors.Is(err, service.ErrUnknownSegmentReference),
		errors.Is(err, service.ErrNoTitles),
		errors.Is(err, service.ErrTitleIndexOutOfRange),
		errors.Is(err, service.ErrTextTooLong):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.Logger.Error(message, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
