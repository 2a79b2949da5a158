package vibetube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glabrego/vibetube-cli/internal/apierr"
)

const userAgent = "vibetube-cli/0.1"

// PageParams are the paging parameters shared by the feed endpoints.
type PageParams struct {
	Limit   int
	Offset  int
	Exclude []string
}

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// Register creates an account. A taken username comes back as InvalidOperation.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.do(ctx, "register", http.MethodPost, "/register", "", reg, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) (AccessToken, error) {
	body := map[string]string{"username": username, "password": password}
	var out AccessToken
	if err := c.do(ctx, "login", http.MethodPost, "/login", "", body, &out); err != nil {
		return AccessToken{}, err
	}
	if out.AccessToken == "" {
		return AccessToken{}, apierr.Transport("login", fmt.Errorf("response has no access_token"))
	}
	return out, nil
}

func (c *Client) VerifyToken(ctx context.Context, token string) (User, error) {
	var out struct {
		Details *User `json:"details"`
	}
	if err := c.do(ctx, "verify token", http.MethodGet, "/verify-token", token, nil, &out); err != nil {
		return User{}, err
	}
	if out.Details == nil {
		return User{}, apierr.Transport("verify token", fmt.Errorf("response has no details"))
	}
	return *out.Details, nil
}

func (c *Client) LikeStatus(ctx context.Context, token string, videoID int64) (LikeStatus, error) {
	var payload likeStatusPayload
	path := "/likes/" + strconv.FormatInt(videoID, 10)
	if err := c.do(ctx, "like status", http.MethodGet, path, token, nil, &payload); err != nil {
		return LikeStatus{}, err
	}
	st, err := payload.status()
	if err != nil {
		return LikeStatus{}, apierr.Transport("like status", err)
	}
	return st, nil
}

// SetLike sends the desired like state. The returned status is nil unless the
// server echoed the new state.
func (c *Client) SetLike(ctx context.Context, token string, videoID int64, liked bool) (*LikeStatus, error) {
	body := map[string]any{"video_id": videoID, "type": "like", "liked": liked}
	var payload likeStatusPayload
	if err := c.do(ctx, "set like", http.MethodPost, "/like", token, body, &payload); err != nil {
		return nil, err
	}
	st, err := payload.status()
	if err != nil {
		return nil, nil
	}
	return &st, nil
}

func (c *Client) SubscriptionStatus(ctx context.Context, token string, channelID int64) (SubscriptionStatus, error) {
	var payload subscriptionPayload
	path := "/subscribers/" + strconv.FormatInt(channelID, 10)
	if err := c.do(ctx, "subscription status", http.MethodGet, path, token, nil, &payload); err != nil {
		return SubscriptionStatus{}, err
	}
	st, err := payload.status()
	if err != nil {
		return SubscriptionStatus{}, apierr.Transport("subscription status", err)
	}
	return st, nil
}

func (c *Client) SetSubscription(ctx context.Context, token string, channelID int64, subscribed bool) (*SubscriptionStatus, error) {
	body := map[string]any{"user_id": channelID, "subscribed": subscribed}
	var payload subscriptionPayload
	if err := c.do(ctx, "set subscription", http.MethodPost, "/subscribe", token, body, &payload); err != nil {
		return nil, err
	}
	st, err := payload.status()
	if err != nil {
		return nil, nil
	}
	return &st, nil
}

func (c *Client) ListVideos(ctx context.Context, category string, p PageParams) ([]Video, error) {
	if !IsCategory(category) {
		return nil, apierr.New(apierr.InvalidOperation, "list videos", "Invalid category")
	}
	return c.listVideos(ctx, "list videos", "/getvideos/"+url.PathEscape(category), p, nil)
}

func (c *Client) SearchVideos(ctx context.Context, query string, p PageParams) ([]Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierr.New(apierr.InvalidOperation, "search videos", "Search query is empty")
	}
	extra := make(url.Values)
	extra.Set("query", query)
	return c.listVideos(ctx, "search videos", "/search", p, extra)
}

func (c *Client) ChannelVideos(ctx context.Context, channelID int64, p PageParams) ([]Video, error) {
	extra := make(url.Values)
	extra.Set("channel_id", strconv.FormatInt(channelID, 10))
	return c.listVideos(ctx, "channel videos", "/getvideos/ChannelVideos", p, extra)
}

func (c *Client) listVideos(ctx context.Context, op, path string, p PageParams, extra url.Values) ([]Video, error) {
	q := make(url.Values)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	q.Set("offset", strconv.Itoa(p.Offset))
	if len(p.Exclude) > 0 {
		q.Set("exclude_ids", strings.Join(p.Exclude, ","))
	}

	var videos []Video
	if err := c.do(ctx, op, http.MethodGet, path+"?"+q.Encode(), "", nil, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

func (c *Client) GetVideo(ctx context.Context, videoID int64) (Video, error) {
	var v Video
	path := "/getvideo/" + strconv.FormatInt(videoID, 10)
	if err := c.do(ctx, "get video", http.MethodGet, path, "", nil, &v); err != nil {
		return Video{}, err
	}
	return v, nil
}

func (c *Client) ListComments(ctx context.Context, videoID int64) ([]Comment, error) {
	var comments []Comment
	path := "/comments/" + strconv.FormatInt(videoID, 10)
	if err := c.do(ctx, "list comments", http.MethodGet, path, "", nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) PostComment(ctx context.Context, token string, videoID int64, text string) (Comment, error) {
	body := map[string]any{"video_id": videoID, "text": text}
	var out Comment
	if err := c.do(ctx, "post comment", http.MethodPost, "/comment", token, body, &out); err != nil {
		return Comment{}, err
	}
	return out, nil
}

func (c *Client) RecordView(ctx context.Context, token string, videoID int64) error {
	body := map[string]any{"video_id": videoID}
	return c.do(ctx, "record view", http.MethodPost, "/view", token, body, nil)
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return apierr.Transport(op, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Transport(op, fmt.Errorf("%s request failed: %w", op, err))
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apierr.FromStatus(op, resp.StatusCode, data)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Transport(op, fmt.Errorf("decode %s response: %w", op, err))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}
