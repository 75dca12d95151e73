package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mosli/threadloom/internal/models"
	"github.com/mosli/threadloom/internal/store"
)

// CommandContext bundles the services a CommandProcessor dispatches into.
// Scheduler and the repositories are optional; commands that need a missing
// piece degrade to an explanatory reply.
type CommandContext struct {
	Scraper      *ScraperService
	Translator   *TranslationService
	Publisher    *PublisherService
	Scheduler    *Scheduler
	Threads      store.ThreadRepository
	Translations store.TranslationRepository
	Jobs         store.JobRepository
}

// CommandProcessor parses operator commands and invokes the corresponding
// services. Malformed input yields a usage reply with a nil error; only
// service failures surface as errors, for the hosting layer to render.
type CommandProcessor struct {
	ctx CommandContext
}

func NewCommandProcessor(ctx CommandContext) *CommandProcessor {
	return &CommandProcessor{ctx: ctx}
}

func (p *CommandProcessor) Handle(line string) (string, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return p.help(), nil
	}

	head, args := tokens[0], tokens[1:]
	switch head {
	case "/start", "/help":
		return p.help(), nil
	case "/scrape":
		return p.scrape(args)
	case "/translate":
		return p.translate(args)
	case "/publish":
		return p.publish(args)
	case "/queue":
		if len(args) > 0 {
			return p.queue(args)
		}
	case "/status":
		return p.status()
	}
	return fmt.Sprintf("Unknown command '%s'. Try /help", head), nil
}

func (p *CommandProcessor) help() string {
	return strings.Join([]string{
		"Available commands:",
		"/scrape <handle> [limit] - Fetch latest threads.",
		"/translate <tweet_id> [--force] [--no-titles] - Translate thread.",
		"/publish <tweet_id> [--profile default] [--dry-run] [--force] - Publish translation.",
		"/queue <scrape|translate|publish> ... - Enqueue jobs for later execution.",
		"/status - Summaries of stored tweets/translations/jobs.",
	}, "\n")
}

func (p *CommandProcessor) scrape(args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: /scrape <handle> [limit]", nil
	}
	handle := args[0]
	limit := 0
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return "Usage: /scrape <handle> [limit]", nil
		}
		limit = parsed
	}
	result, err := p.ctx.Scraper.SyncHandle(handle, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Scraped %d threads for %s; stored %d.", result.Fetched, handle, result.Stored), nil
}

func (p *CommandProcessor) translate(args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: /translate <tweet_id> [--force] [--no-titles]", nil
	}
	tweetID := args[0]
	force := hasFlag(args, "--force")
	var includeTitles *bool
	if hasFlag(args, "--no-titles") {
		no := false
		includeTitles = &no
	}
	result, err := p.ctx.Translator.TranslateThread(tweetID, includeTitles, force)
	if err != nil {
		return "", err
	}
	state := "existing"
	if result.Created {
		state = "created"
	}
	return fmt.Sprintf("Translation %s for %s.", state, tweetID), nil
}

func (p *CommandProcessor) publish(args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: /publish <tweet_id> [--profile default] [--dry-run] [--force]", nil
	}
	tweetID := args[0]
	profile := extractOption(args, "--profile")
	dryRun := hasFlag(args, "--dry-run")
	force := hasFlag(args, "--force")

	var titleIndex *int
	if raw := extractOption(args, "--title"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return "Usage: /publish <tweet_id> [--profile default] [--dry-run] [--force]", nil
		}
		titleIndex = &parsed
	}

	report, err := p.ctx.Publisher.Publish(tweetID, PublishOptions{
		Profile:        profile,
		TitleIndex:     titleIndex,
		IncludeClosing: true,
		DryRun:         dryRun,
		Force:          force,
	})
	if err != nil {
		return "", err
	}
	if dryRun {
		return fmt.Sprintf("Dry run: %d tweets would be posted.", len(report.Plan.Items)), nil
	}
	return fmt.Sprintf("Published %d tweets for %s.", len(report.PostedIDs), tweetID), nil
}

func (p *CommandProcessor) queue(args []string) (string, error) {
	if p.ctx.Scheduler == nil {
		return "Scheduler is not configured.", nil
	}

	action, rest := args[0], args[1:]
	var (
		handlerName string
		payload     models.JSONMap
	)
	switch action {
	case "scrape":
		if len(rest) == 0 {
			return "Usage: /queue scrape <handle> [limit]", nil
		}
		handlerName = HandlerScrape
		payload = models.JSONMap{"handle": rest[0]}
		if len(rest) > 1 {
			limit, err := strconv.Atoi(rest[1])
			if err != nil {
				return "Usage: /queue scrape <handle> [limit]", nil
			}
			payload["limit"] = limit
		}
	case "translate":
		if len(rest) == 0 {
			return "Usage: /queue translate <tweet_id>", nil
		}
		handlerName = HandlerTranslate
		payload = models.JSONMap{"tweet_id": rest[0]}
	case "publish":
		if len(rest) == 0 {
			return "Usage: /queue publish <tweet_id>", nil
		}
		handlerName = HandlerPublish
		payload = models.JSONMap{"tweet_id": rest[0]}
	default:
		return "Unknown queue action; use scrape, translate, or publish.", nil
	}

	job, err := p.ctx.Scheduler.Enqueue(handlerName, payload, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Queued job %s (%s).", job.JobID, action), nil
}

func (p *CommandProcessor) status() (string, error) {
	tweets := 0
	if p.ctx.Threads != nil {
		all, err := p.ctx.Threads.ListAll()
		if err != nil {
			return "", err
		}
		tweets = len(all)
	}
	translations := 0
	if p.ctx.Translations != nil {
		all, err := p.ctx.Translations.ListAll()
		if err != nil {
			return "", err
		}
		translations = len(all)
	}
	jobs := 0
	if p.ctx.Jobs != nil {
		all, err := p.ctx.Jobs.ListPending()
		if err != nil {
			return "", err
		}
		for _, job := range all {
			if job.Status == models.JobStatusPending {
				jobs++
			}
		}
	}
	return fmt.Sprintf("Stored tweets: %d\nStored translations: %d\nQueued jobs: %d", tweets, translations, jobs), nil
}

func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

// extractOption returns the token following flag, or empty when the flag is
// absent or sits at the end of the input.
func extractOption(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
