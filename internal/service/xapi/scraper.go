package xapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/models"
)

const apiBaseURL = "https://api.twitter.com/2"

// ScraperClient reads an author's recent self-threads through the v2 API
// with an app-only bearer token. Replies by the author to their own posts in
// the same conversation are stitched into one thread.
type ScraperClient struct {
	bearerToken string
	client      *http.Client
	logger      *zap.Logger
	userIDs     map[string]string
}

func NewScraperClient(bearerToken string, logger *zap.Logger) *ScraperClient {
	return &ScraperClient{
		bearerToken: bearerToken,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
		userIDs:     make(map[string]string),
	}
}

type apiTweet struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
	CreatedAt      string `json:"created_at"`
	Attachments    struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type apiMedia struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

type timelineResponse struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Media []apiMedia `json:"media"`
	} `json:"includes"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

// FetchThreads returns up to limit threads for handle, newest root first.
func (c *ScraperClient) FetchThreads(handle string, limit int) ([]*models.Thread, error) {
	userID, err := c.resolveUserID(handle)
	if err != nil {
		return nil, err
	}

	timeline, err := c.fetchTimeline(userID)
	if err != nil {
		return nil, err
	}

	media := make(map[string]apiMedia, len(timeline.Includes.Media))
	for _, item := range timeline.Includes.Media {
		media[item.MediaKey] = item
	}

	conversations := make(map[string][]apiTweet)
	order := make([]string, 0)
	for _, tweet := range timeline.Data {
		conversationID := tweet.ConversationID
		if conversationID == "" {
			conversationID = tweet.ID
		}
		if _, seen := conversations[conversationID]; !seen {
			order = append(order, conversationID)
		}
		conversations[conversationID] = append(conversations[conversationID], tweet)
	}

	collectedAt := time.Now().UTC()
	threads := make([]*models.Thread, 0, limit)
	for _, conversationID := range order {
		thread, err := c.buildThread(handle, conversations[conversationID], media, collectedAt)
		if err != nil {
			c.logger.Warn("Skipping malformed conversation",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
			continue
		}
		threads = append(threads, thread)
		if len(threads) >= limit {
			break
		}
	}

	c.logger.Info("Timeline fetched",
		zap.String("handle", handle),
		zap.Int("tweets", len(timeline.Data)),
		zap.Int("threads", len(threads)))
	return threads, nil
}

func (c *ScraperClient) buildThread(handle string, tweets []apiTweet, media map[string]apiMedia, collectedAt time.Time) (*models.Thread, error) {
	sort.SliceStable(tweets, func(i, j int) bool {
		return tweets[i].CreatedAt < tweets[j].CreatedAt
	})

	segments := make([]models.Segment, 0, len(tweets))
	for _, tweet := range tweets {
		timestamp, _ := time.Parse(time.RFC3339, tweet.CreatedAt)
		segment := models.Segment{
			SegmentID: tweet.ID,
			Text:      tweet.Text,
			Timestamp: timestamp,
		}
		for _, key := range tweet.Attachments.MediaKeys {
			item, ok := media[key]
			if !ok {
				continue
			}
			asset := models.MediaAsset{MediaID: item.MediaKey}
			switch item.Type {
			case "photo":
				asset.Kind = models.MediaKindPhoto
				asset.URL = item.URL
			default:
				asset.Kind = models.MediaKindVideo
				asset.URL = item.URL
				asset.PreviewURL = item.PreviewImageURL
			}
			segment.Media = append(segment.Media, asset)
		}
		segments = append(segments, segment)
	}
	return models.NewThread(handle, segments, collectedAt)
}

func (c *ScraperClient) resolveUserID(handle string) (string, error) {
	if id, ok := c.userIDs[handle]; ok {
		return id, nil
	}

	endpoint := fmt.Sprintf("%s/users/by/username/%s", apiBaseURL, url.PathEscape(handle))
	var response struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.get(endpoint, &response); err != nil {
		return "", fmt.Errorf("resolve user %s: %w", handle, err)
	}
	if response.Data.ID == "" {
		return "", fmt.Errorf("user %s not found", handle)
	}
	c.userIDs[handle] = response.Data.ID
	return response.Data.ID, nil
}

func (c *ScraperClient) fetchTimeline(userID string) (*timelineResponse, error) {
	query := url.Values{}
	query.Set("max_results", "100")
	query.Set("tweet.fields", "conversation_id,created_at,attachments")
	query.Set("expansions", "attachments.media_keys")
	query.Set("media.fields", "media_key,type,url,preview_image_url")
	query.Set("exclude", "retweets")
	endpoint := fmt.Sprintf("%s/users/%s/tweets?%s", apiBaseURL, userID, query.Encode())

	var response timelineResponse
	if err := c.get(endpoint, &response); err != nil {
		return nil, fmt.Errorf("fetch timeline for user %s: %w", userID, err)
	}
	return &response, nil
}

func (c *ScraperClient) get(endpoint string, out any) error {
	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("x API returned status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
