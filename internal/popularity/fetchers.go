package popularity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/models"
	"golang.org/x/oauth2/clientcredentials"
)

// RetryingFetcher wraps a Fetcher with exponential backoff. The worker pool
// never retries; all retry behavior lives here, uniformly for every source.
type RetryingFetcher struct {
	inner       Fetcher
	maxAttempts int
	baseDelay   time.Duration
	logger      *log.Logger
}

// WithRetries wraps fetcher so each FetchCount retries up to maxAttempts times
// with exponential backoff starting at baseDelay.
func WithRetries(fetcher Fetcher, maxAttempts int, baseDelay time.Duration, logger *log.Logger) *RetryingFetcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &RetryingFetcher{inner: fetcher, maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

func (f *RetryingFetcher) Source() models.Source {
	return f.inner.Source()
}

func (f *RetryingFetcher) FetchCount(ctx context.Context, track *models.Track) (int64, error) {
	var lastErr error
	delay := f.baseDelay

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		count, err := f.inner.FetchCount(ctx, track)
		if err == nil {
			return count, nil
		}
		lastErr = err

		if attempt == f.maxAttempts {
			break
		}
		if f.logger != nil {
			f.logger.Debug("retrying fetch",
				"source", f.inner.Source(), "isrc", track.ISRC, "attempt", attempt, "error", err)
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return 0, lastErr
}

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1"
	youtubeAPIURL   = "https://www.googleapis.com/youtube/v3/videos"
)

// SpotifyFetcher reads a track's popularity score from the Spotify Web API
// using the client-credentials flow.
type SpotifyFetcher struct {
	client *http.Client
}

// NewSpotifyFetcher builds a SpotifyFetcher authenticating with the given
// application credentials.
func NewSpotifyFetcher(ctx context.Context, clientID, clientSecret string) *SpotifyFetcher {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}
	return &SpotifyFetcher{client: conf.Client(ctx)}
}

func (f *SpotifyFetcher) Source() models.Source {
	return models.SourceSpotify
}

func (f *SpotifyFetcher) FetchCount(ctx context.Context, track *models.Track) (int64, error) {
	trackID, err := spotifyTrackID(track.URL(models.ServiceSpotify))
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyAPIURL+"/tracks/"+trackID, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("network error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("spotify API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Popularity *int64 `json:"popularity"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to decode track response: %w", err)
	}
	if payload.Popularity == nil {
		return 0, fmt.Errorf("no popularity returned for track %s", trackID)
	}

	return *payload.Popularity, nil
}

// spotifyTrackID extracts the track ID from an open.spotify.com track URL.
func spotifyTrackID(trackURL string) (string, error) {
	if trackURL == "" {
		return "", fmt.Errorf("track has no spotify URL")
	}
	parsed, err := url.Parse(trackURL)
	if err != nil {
		return "", fmt.Errorf("error converting spotify URL %q: %v", trackURL, err)
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "track" || parts[1] == "" {
		return "", fmt.Errorf("error converting spotify URL %q: no track id", trackURL)
	}
	return parts[1], nil
}

// YouTubeFetcher reads a video's view count from the YouTube Data API.
type YouTubeFetcher struct {
	apiKey string
	client *http.Client
}

// NewYouTubeFetcher builds a YouTubeFetcher using the given API key.
func NewYouTubeFetcher(apiKey string, client *http.Client) *YouTubeFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &YouTubeFetcher{apiKey: apiKey, client: client}
}

func (f *YouTubeFetcher) Source() models.Source {
	return models.SourceYouTube
}

func (f *YouTubeFetcher) FetchCount(ctx context.Context, track *models.Track) (int64, error) {
	videoID, err := youtubeVideoID(track.URL(models.ServiceYouTube))
	if err != nil {
		return 0, err
	}

	query := url.Values{}
	query.Set("part", "statistics")
	query.Set("id", videoID)
	query.Set("key", f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, youtubeAPIURL+"?"+query.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("network error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("youtube API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Items []struct {
			Statistics struct {
				ViewCount string `json:"viewCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to decode statistics response: %w", err)
	}
	if len(payload.Items) == 0 {
		return 0, fmt.Errorf("video %s not found", videoID)
	}

	count, err := strconv.ParseInt(payload.Items[0].Statistics.ViewCount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error converting view count %q: %v", payload.Items[0].Statistics.ViewCount, err)
	}

	return count, nil
}

// youtubeVideoID extracts the video ID from a watch URL or youtu.be short link.
func youtubeVideoID(videoURL string) (string, error) {
	if videoURL == "" {
		return "", fmt.Errorf("track has no youtube URL")
	}
	parsed, err := url.Parse(videoURL)
	if err != nil {
		return "", fmt.Errorf("error converting youtube URL %q: %v", videoURL, err)
	}

	if strings.Contains(parsed.Host, "youtu.be") {
		id := strings.Trim(parsed.Path, "/")
		if id == "" {
			return "", fmt.Errorf("error converting youtube URL %q: no video id", videoURL)
		}
		return id, nil
	}

	if id := parsed.Query().Get("v"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("error converting youtube URL %q: no video id", videoURL)
}
