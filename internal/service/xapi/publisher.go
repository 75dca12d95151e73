package xapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
)

const (
	tweetsURL      = "https://api.twitter.com/2/tweets"
	mediaUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

// PublisherClient posts tweets through the v2 tweets endpoint, uploading any
// media through the v1.1 upload endpoint first. Both calls are signed with
// the profile's OAuth1 user credentials.
type PublisherClient struct {
	signer *oauth1Signer
	client *http.Client
	logger *zap.Logger
}

func NewPublisherClient(profile config.PublisherProfile, logger *zap.Logger) *PublisherClient {
	return &PublisherClient{
		signer: &oauth1Signer{
			consumerKey:       profile.ConsumerKey,
			consumerSecret:    profile.ConsumerSecret,
			accessToken:       profile.AccessToken,
			accessTokenSecret: profile.AccessTokenSecret,
		},
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

type tweetPayload struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Post publishes one tweet and returns its id. Media URLs are downloaded and
// re-uploaded; an empty inReplyTo starts a new thread.
func (c *PublisherClient) Post(text string, mediaURLs []string, inReplyTo string) (string, error) {
	mediaIDs, err := c.uploadMedia(mediaURLs)
	if err != nil {
		return "", err
	}

	payload := tweetPayload{Text: text}
	if inReplyTo != "" {
		payload.Reply = &struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		}{InReplyToTweetID: inReplyTo}
	}
	if len(mediaIDs) > 0 {
		payload.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tweet payload: %w", err)
	}

	req, err := http.NewRequest("POST", tweetsURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.signer.Sign(req, nil); err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("tweets API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var response tweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Data.ID == "" {
		return "", fmt.Errorf("tweets API returned no tweet id")
	}

	c.logger.Debug("Tweet posted",
		zap.String("tweet_id", response.Data.ID),
		zap.Int("media", len(mediaIDs)))
	return response.Data.ID, nil
}

func (c *PublisherClient) uploadMedia(mediaURLs []string) ([]string, error) {
	mediaIDs := make([]string, 0, len(mediaURLs))
	for _, mediaURL := range mediaURLs {
		id, err := c.uploadOne(mediaURL)
		if err != nil {
			return nil, fmt.Errorf("upload media %s: %w", mediaURL, err)
		}
		mediaIDs = append(mediaIDs, id)
	}
	return mediaIDs, nil
}

func (c *PublisherClient) uploadOne(mediaURL string) (string, error) {
	data, err := c.download(mediaURL)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	filename := path.Base(mediaURL)
	if filename == "" || filename == "." || filename == "/" {
		filename = "media.bin"
	}
	part, err := writer.CreateFormFile("media", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close form writer: %w", err)
	}

	req, err := http.NewRequest("POST", mediaUploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := c.signer.Sign(req, url.Values{}); err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("media upload API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var response struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.MediaIDString == "" {
		return "", fmt.Errorf("media upload API returned no media id")
	}
	return response.MediaIDString, nil
}

func (c *PublisherClient) download(mediaURL string) ([]byte, error) {
	resp, err := c.client.Get(mediaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
