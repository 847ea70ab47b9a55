package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/providers/guard"
)

// Post is the platform-neutral shape both clients normalize into.
type Post struct {
	Text       string
	CreatedAt  time.Time
	Engagement float64 // likes + reposts + replies
}

// Platform is one social data source. Implementations normalize their wire
// format into Posts; the adapter owns all derived analysis.
type Platform interface {
	Name() string
	FetchPosts(ctx context.Context, keyword string) ([]Post, error)
}

// TwitterClient fetches recent posts from a Twitter-v2-style search API.
type TwitterClient struct {
	baseURL string
	bearer  string
	guard   *guard.Guard
}

// NewTwitterClient creates the client from provider config.
func NewTwitterClient(cfg config.ProviderConfig, g *guard.Guard) *TwitterClient {
	return &TwitterClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		bearer:  cfg.APIKey(),
		guard:   g,
	}
}

// Name identifies the platform in analysis output.
func (c *TwitterClient) Name() string { return "twitter" }

type tweetSearchResponse struct {
	Data []struct {
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// FetchPosts runs a recent-search query for keyword.
func (c *TwitterClient) FetchPosts(ctx context.Context, keyword string) ([]Post, error) {
	if c.bearer == "" {
		return nil, fmt.Errorf("twitter client has no bearer token")
	}

	endpoint := fmt.Sprintf("%s/tweets/search/recent?query=%s&max_results=50&tweet.fields=created_at,public_metrics",
		c.baseURL, url.QueryEscape(keyword+" -is:retweet"))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.guard.Do(ctx, "tweets:"+strings.ToLower(keyword), req)
	if err != nil {
		return nil, err
	}

	var parsed tweetSearchResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode tweet search: %w", err)
	}

	posts := make([]Post, 0, len(parsed.Data))
	for _, tweet := range parsed.Data {
		posts = append(posts, Post{
			Text:      tweet.Text,
			CreatedAt: tweet.CreatedAt,
			Engagement: float64(tweet.PublicMetrics.LikeCount +
				tweet.PublicMetrics.RetweetCount +
				tweet.PublicMetrics.ReplyCount),
		})
	}
	return posts, nil
}

// FarcasterClient fetches casts from a Neynar-style search API.
type FarcasterClient struct {
	baseURL string
	apiKey  string
	guard   *guard.Guard
}

// NewFarcasterClient creates the client from provider config.
func NewFarcasterClient(cfg config.ProviderConfig, g *guard.Guard) *FarcasterClient {
	return &FarcasterClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey(),
		guard:   g,
	}
}

// Name identifies the platform in analysis output.
func (c *FarcasterClient) Name() string { return "farcaster" }

type castSearchResponse struct {
	Result struct {
		Casts []struct {
			Text      string    `json:"text"`
			Timestamp time.Time `json:"timestamp"`
			Reactions struct {
				LikesCount   int `json:"likes_count"`
				RecastsCount int `json:"recasts_count"`
			} `json:"reactions"`
			Replies struct {
				Count int `json:"count"`
			} `json:"replies"`
		} `json:"casts"`
	} `json:"result"`
}

// FetchPosts runs a cast search for keyword.
func (c *FarcasterClient) FetchPosts(ctx context.Context, keyword string) ([]Post, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("farcaster client has no API key")
	}

	endpoint := fmt.Sprintf("%s/farcaster/cast/search?q=%s&limit=50", c.baseURL, url.QueryEscape(keyword))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api_key", c.apiKey)

	resp, err := c.guard.Do(ctx, "casts:"+strings.ToLower(keyword), req)
	if err != nil {
		return nil, err
	}

	var parsed castSearchResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode cast search: %w", err)
	}

	posts := make([]Post, 0, len(parsed.Result.Casts))
	for _, cast := range parsed.Result.Casts {
		posts = append(posts, Post{
			Text:      cast.Text,
			CreatedAt: cast.Timestamp,
			Engagement: float64(cast.Reactions.LikesCount +
				cast.Reactions.RecastsCount +
				cast.Replies.Count),
		})
	}
	return posts, nil
}
