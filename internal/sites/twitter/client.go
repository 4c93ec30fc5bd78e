package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
)

const DefaultBaseURL = "https://api.twitter.com/2"

const tweetFields = "created_at,public_metrics,referenced_tweets,conversation_id,author_id"

// Client is the X/Twitter API v2 adapter. It implements ports.Platform
// and maps HTTP 429 responses to ports.RateLimitError; everything else
// is a plain failure.
type Client struct {
	BaseURL     string
	BearerToken string
	// Username resolves the authenticated account via the by-username
	// lookup when set; otherwise /users/me is used.
	Username   string
	HTTPClient *http.Client
}

func NewClient(bearerToken, username string) *Client {
	return &Client{
		BaseURL:     DefaultBaseURL,
		BearerToken: bearerToken,
		Username:    username,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

var _ ports.Platform = (*Client)(nil)

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		defer resp.Body.Close()
		rle := &ports.RateLimitError{}
		if reset := resp.Header.Get("x-rate-limit-reset"); reset != "" {
			if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
				rle.Reset = time.Unix(epoch, 0)
			}
		}
		return nil, rle
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var errRes struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		json.NewDecoder(resp.Body).Decode(&errRes)
		if errRes.Detail != "" {
			return nil, fmt.Errorf("%s %s failed (%d): %s", method, path, resp.StatusCode, errRes.Detail)
		}
		return nil, fmt.Errorf("%s %s failed with status %d", method, path, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) Me(ctx context.Context) (domain.Account, error) {
	path := "/users/me"
	if c.Username != "" {
		path = "/users/by/username/" + c.Username
	}
	query := url.Values{"user.fields": {"public_metrics"}}

	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return domain.Account{}, err
	}
	defer resp.Body.Close()

	var data struct {
		Data apiUser `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.Account{}, err
	}
	return domain.Account{
		ID:         data.Data.ID,
		Username:   data.Data.Username,
		TweetCount: data.Data.PublicMetrics.TweetCount,
	}, nil
}

func (c *Client) UserPosts(ctx context.Context, userID string, pageSize int, cursor string) (domain.Page, error) {
	query := url.Values{
		"max_results":  {strconv.Itoa(pageSize)},
		"tweet.fields": {tweetFields},
		"expansions":   {"referenced_tweets.id"},
	}
	if cursor != "" {
		query.Set("pagination_token", cursor)
	}

	resp, err := c.do(ctx, http.MethodGet, "/users/"+userID+"/tweets", query, nil)
	if err != nil {
		return domain.Page{}, err
	}
	defer resp.Body.Close()

	var data struct {
		Data []apiTweet `json:"data"`
		Meta apiMeta    `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.Page{}, err
	}

	page := domain.Page{NextToken: data.Meta.NextToken}
	for _, t := range data.Data {
		page.Items = append(page.Items, t.toRawItem())
	}
	return page, nil
}

func (c *Client) HomeTimeline(ctx context.Context, count int) (domain.TimelineBatch, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return domain.TimelineBatch{}, err
	}

	query := url.Values{
		"max_results":  {strconv.Itoa(count)},
		"tweet.fields": {tweetFields},
		"expansions":   {"author_id,referenced_tweets.id"},
		"user.fields":  {"username,name"},
	}

	resp, err := c.do(ctx, http.MethodGet, "/users/"+me.ID+"/timelines/reverse_chronological", query, nil)
	if err != nil {
		return domain.TimelineBatch{}, err
	}
	defer resp.Body.Close()

	var data struct {
		Data     []apiTweet  `json:"data"`
		Includes apiIncludes `json:"includes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.TimelineBatch{}, err
	}

	batch := domain.TimelineBatch{
		Users:      make(map[string]domain.Author),
		Referenced: make(map[string]string),
	}
	for _, u := range data.Includes.Users {
		batch.Users[u.ID] = domain.Author{Username: u.Username, Name: u.Name}
	}
	for _, t := range data.Includes.Tweets {
		batch.Referenced[t.ID] = t.Text
	}
	for _, t := range data.Data {
		batch.Items = append(batch.Items, t.toRawItem())
	}
	return batch, nil
}

func (c *Client) PostByID(ctx context.Context, id string) (domain.RawItem, error) {
	query := url.Values{"tweet.fields": {tweetFields}}

	resp, err := c.do(ctx, http.MethodGet, "/tweets/"+id, query, nil)
	if err != nil {
		return domain.RawItem{}, err
	}
	defer resp.Body.Close()

	var data struct {
		Data apiTweet `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.RawItem{}, err
	}
	if data.Data.ID == "" {
		return domain.RawItem{}, fmt.Errorf("tweet %s not found", id)
	}
	return data.Data.toRawItem(), nil
}

func (c *Client) Publish(ctx context.Context, text, replyToID string) (string, error) {
	body := map[string]any{"text": text}
	if replyToID != "" {
		body["reply"] = map[string]string{"in_reply_to_tweet_id": replyToID}
	}

	resp, err := c.do(ctx, http.MethodPost, "/tweets", nil, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var data struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	// A decode failure here is not a publish failure: the post went
	// through, only the confirmation id is unknown.
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", nil
	}
	return data.Data.ID, nil
}
