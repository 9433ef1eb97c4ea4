package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/user/draftsync/internal/types"
	"github.com/user/draftsync/pkg/backend"
)

// Client implements the backend.Service interface over HTTP/JSON.
// All response decoding happens here; callers only ever see domain types,
// tagged send results, and the error taxonomy.
type Client struct {
	config     *backend.Config
	httpClient *http.Client
}

var _ backend.Service = (*Client)(nil)

// New creates an HTTP client for the given backend configuration.
func New(config *backend.Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// sendRequest is the wire format for POST /assistant/messages.
type sendRequest struct {
	Content        string    `json:"content"`
	Mode           string    `json:"mode"`
	ConversationID string    `json:"conversationId,omitempty"`
	ClientTime     time.Time `json:"clientTime"`
}

// sendResponse is the wire format of a successful send.
type sendResponse struct {
	Content        string         `json:"content"`
	ConversationID string         `json:"conversationId"`
	MessageID      string         `json:"messageId"`
	TokensUsed     int            `json:"tokensUsed"`
	UserTier       string         `json:"userTier"`
	RateLimitInfo  *rateLimitInfo `json:"rateLimitInfo,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// rateLimitInfo is the quota block embedded in send and rate-limit responses.
type rateLimitInfo struct {
	RemainingMessages int       `json:"remainingMessages"`
	Limit             int       `json:"limit"`
	ResetTime         time.Time `json:"resetTime"`
}

// quotaExceededPayload is the body of a 429 response.
type quotaExceededPayload struct {
	RemainingMessages int       `json:"remainingMessages"`
	Limit             int       `json:"limit"`
	ResetTime         time.Time `json:"resetTime"`
	UpgradeLink       string    `json:"upgradeLink"`
}

// wireConversation is the server's conversation shape.
type wireConversation struct {
	ID           string    `json:"id"`
	Mode         string    `json:"mode"`
	Title        string    `json:"title"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	IsStarred    bool      `json:"isStarred"`
	IsPinned     bool      `json:"isPinned"`
	IsArchived   bool      `json:"isArchived"`
	IsDeleted    bool      `json:"isDeleted"`
}

func (w *wireConversation) toDomain() *types.Conversation {
	return &types.Conversation{
		ID:           types.ConversationID(w.ID),
		Mode:         w.Mode,
		Title:        w.Title,
		MessageCount: w.MessageCount,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
		Starred:      w.IsStarred,
		Pinned:       w.IsPinned,
		Archived:     w.IsArchived,
		Deleted:      w.IsDeleted,
	}
}

// wireMessage is the server's message shape.
type wireMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Tokens    int       `json:"tokens,omitempty"`
}

func (w *wireMessage) toDomain() *types.Message {
	return &types.Message{
		ID:        types.MessageID(w.ID),
		Role:      types.Role(w.Role),
		Content:   w.Content,
		Timestamp: w.Timestamp,
		Metadata:  types.MessageMeta{Tokens: w.Tokens},
	}
}

// do issues a request and classifies transport and status errors into the
// shared taxonomy. On 2xx it returns the response body.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, types.ErrAuthExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		return respBody, errRateLimited
	default:
		return nil, &types.ServerError{Status: resp.StatusCode, Message: string(respBody)}
	}
}

// errRateLimited is an internal marker; Send translates it into a
// *SendRateLimited result, other endpoints into a ServerError.
var errRateLimited = fmt.Errorf("rate limited")

// Send posts a chat message and returns the decoded tagged result.
func (c *Client) Send(ctx context.Context, req backend.SendRequest) (backend.SendResult, error) {
	body := sendRequest{
		Content:        req.Content,
		Mode:           req.Mode,
		ConversationID: string(req.ConversationID),
		ClientTime:     req.ClientTime,
	}

	respBody, err := c.do(ctx, http.MethodPost, "/assistant/messages", body)
	if err == errRateLimited {
		var payload quotaExceededPayload
		if uerr := json.Unmarshal(respBody, &payload); uerr != nil {
			return nil, &types.ServerError{Status: http.StatusTooManyRequests, Message: string(respBody)}
		}
		return &backend.SendRateLimited{
			Remaining:   payload.RemainingMessages,
			Limit:       payload.Limit,
			ResetAt:     payload.ResetTime,
			UpgradeLink: payload.UpgradeLink,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("parsing send response: %w", err)
	}

	success := &backend.SendSuccess{
		Content:        sr.Content,
		ConversationID: types.ConversationID(sr.ConversationID),
		MessageID:      types.MessageID(sr.MessageID),
		TokensUsed:     sr.TokensUsed,
		UserTier:       sr.UserTier,
		Timestamp:      sr.Timestamp,
	}
	if sr.RateLimitInfo != nil {
		success.RateLimit = &types.RateLimitState{
			Remaining: sr.RateLimitInfo.RemainingMessages,
			Limit:     sr.RateLimitInfo.Limit,
			ResetAt:   sr.RateLimitInfo.ResetTime,
		}
	}
	return success, nil
}

// CreateConversation creates an empty conversation server-side. Only called
// when creation is explicitly forced; normal flow lets the first send create.
func (c *Client) CreateConversation(ctx context.Context, mode string) (*types.Conversation, error) {
	respBody, err := c.do(ctx, http.MethodPost, "/conversations", map[string]string{"mode": mode})
	if err != nil {
		return nil, normalize(err)
	}
	var wc wireConversation
	if err := json.Unmarshal(respBody, &wc); err != nil {
		return nil, fmt.Errorf("parsing conversation: %w", err)
	}
	return wc.toDomain(), nil
}

// ListConversations returns a page of conversations matching the filter.
func (c *Client) ListConversations(ctx context.Context, filter backend.ListFilter, limit, offset int) ([]*types.Conversation, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", string(filter))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/conversations"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	respBody, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, normalize(err)
	}

	var wire struct {
		Conversations []*wireConversation `json:"conversations"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("parsing conversation list: %w", err)
	}
	out := make([]*types.Conversation, 0, len(wire.Conversations))
	for _, wc := range wire.Conversations {
		out = append(out, wc.toDomain())
	}
	return out, nil
}

// Messages fetches the full transcript of a conversation.
func (c *Client) Messages(ctx context.Context, id types.ConversationID) ([]*types.Message, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(string(id))+"/messages", nil)
	if err != nil {
		return nil, normalize(err)
	}
	var wire struct {
		Messages []*wireMessage `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("parsing messages: %w", err)
	}
	out := make([]*types.Message, 0, len(wire.Messages))
	for _, wm := range wire.Messages {
		out = append(out, wm.toDomain())
	}
	return out, nil
}

// ClearMessages removes all messages from a conversation, keeping the
// conversation itself.
func (c *Client) ClearMessages(ctx context.Context, id types.ConversationID) error {
	_, err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(string(id))+"/clear", nil)
	return normalize(err)
}

// Delete soft-deletes a conversation.
func (c *Client) Delete(ctx context.Context, id types.ConversationID) error {
	_, err := c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(string(id)), nil)
	return normalize(err)
}

// Restore reverses a soft delete.
func (c *Client) Restore(ctx context.Context, id types.ConversationID) error {
	_, err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(string(id))+"/restore", nil)
	return normalize(err)
}

// Purge permanently deletes a conversation.
func (c *Client) Purge(ctx context.Context, id types.ConversationID) error {
	_, err := c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(string(id))+"/permanent", nil)
	return normalize(err)
}

// SetFlag toggles starred, pinned, or archived on a conversation.
func (c *Client) SetFlag(ctx context.Context, id types.ConversationID, flag backend.Flag, value bool) error {
	path := "/conversations/" + url.PathEscape(string(id)) + "/" + string(flag)
	_, err := c.do(ctx, http.MethodPut, path, map[string]bool{"value": value})
	return normalize(err)
}

// UpdateTitle renames a conversation.
func (c *Client) UpdateTitle(ctx context.Context, id types.ConversationID, title string) error {
	path := "/conversations/" + url.PathEscape(string(id)) + "/title"
	_, err := c.do(ctx, http.MethodPut, path, map[string]string{"title": title})
	return normalize(err)
}

// SaveDraft persists a document draft body. Saves are idempotent; the
// debounced persistence layer retries them.
func (c *Client) SaveDraft(ctx context.Context, documentID string, body []byte) error {
	path := "/documents/" + url.PathEscape(documentID) + "/draft"
	_, err := c.do(ctx, http.MethodPut, path, map[string]string{"content": string(body)})
	return normalize(err)
}

// RateLimit fetches the server's current quota view.
func (c *Client) RateLimit(ctx context.Context) (*types.RateLimitState, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/assistant/rate-limit", nil)
	if err != nil {
		return nil, normalize(err)
	}
	var info rateLimitInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, fmt.Errorf("parsing rate limit: %w", err)
	}
	return &types.RateLimitState{
		Remaining: info.RemainingMessages,
		Limit:     info.Limit,
		ResetAt:   info.ResetTime,
	}, nil
}

// normalize maps the internal rate-limited marker to a ServerError for
// endpoints that have no quota-specific result type.
func normalize(err error) error {
	if err == errRateLimited {
		return &types.ServerError{Status: http.StatusTooManyRequests, Message: "rate limited"}
	}
	return err
}
