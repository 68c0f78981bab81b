package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Gmail implements Transport against the Gmail REST API, bound to one
// user's OAuth access token.
type Gmail struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Transport = (*Gmail)(nil)

// NewGmail creates a Gmail transport for the given access token.
func NewGmail(baseURL, accessToken string) *Gmail {
	if baseURL == "" {
		baseURL = "https://gmail.googleapis.com/gmail/v1"
	}
	return &Gmail{
		baseURL: baseURL,
		token:   accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

// NewGmailFactory returns a Factory producing per-user Gmail transports.
func NewGmailFactory(baseURL string) Factory {
	return func(accessToken string) Transport {
		return NewGmail(baseURL, accessToken)
	}
}

type gmailMessageRef struct {
	ID string `json:"id"`
}

type gmailListResponse struct {
	Messages []gmailMessageRef `json:"messages"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailPayload struct {
	MimeType string         `json:"mimeType"`
	Headers  []gmailHeader  `json:"headers"`
	Body     gmailBody      `json:"body"`
	Parts    []gmailPayload `json:"parts"`
}

type gmailBody struct {
	Data string `json:"data"`
}

type gmailMessage struct {
	ID      string       `json:"id"`
	Snippet string       `json:"snippet"`
	Payload gmailPayload `json:"payload"`
}

// List fetches recent messages, optionally filtered by sender.
func (g *Gmail) List(ctx context.Context, q ListQuery) ([]Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("maxResults", strconv.Itoa(limit))
	if q.Sender != "" {
		params.Set("q", "from:"+q.Sender)
	}

	var list gmailListResponse
	if err := g.do(ctx, http.MethodGet, "/users/me/messages?"+params.Encode(), nil, &list); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	format := "metadata"
	if q.IncludeBody {
		format = "full"
	}

	messages := make([]Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		var gm gmailMessage
		path := fmt.Sprintf("/users/me/messages/%s?format=%s", url.PathEscape(ref.ID), format)
		if err := g.do(ctx, http.MethodGet, path, nil, &gm); err != nil {
			return nil, fmt.Errorf("get message %s: %w", ref.ID, err)
		}
		messages = append(messages, toMessage(gm, q.IncludeBody))
	}

	return messages, nil
}

// CreateDraft creates a draft and returns its id.
func (g *Gmail) CreateDraft(ctx context.Context, d Draft) (string, error) {
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		d.Recipient, d.Subject, d.Body)

	payload := map[string]any{
		"message": map[string]string{
			"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
		},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := g.do(ctx, http.MethodPost, "/users/me/drafts", payload, &resp); err != nil {
		return "", fmt.Errorf("create draft: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create draft: empty draft id in response")
	}
	return resp.ID, nil
}

// Send dispatches a previously created draft.
func (g *Gmail) Send(ctx context.Context, draftID string) (Message, error) {
	payload := map[string]string{"id": draftID}

	var gm gmailMessage
	if err := g.do(ctx, http.MethodPost, "/users/me/drafts/send", payload, &gm); err != nil {
		return Message{}, fmt.Errorf("send draft %s: %w", draftID, err)
	}
	return Message{ID: gm.ID, Snippet: gm.Snippet}, nil
}

func (g *Gmail) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmail request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	io.Copy(io.Discard, resp.Body)
	if err != nil {
		return fmt.Errorf("read gmail response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gmail returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal gmail response: %w", err)
		}
	}
	return nil
}

func toMessage(gm gmailMessage, includeBody bool) Message {
	m := Message{
		ID:      gm.ID,
		Snippet: gm.Snippet,
	}
	for _, h := range gm.Payload.Headers {
		switch h.Name {
		case "From":
			m.Sender = h.Value
		case "Subject":
			m.Subject = h.Value
		case "Date":
			m.Date = h.Value
		}
	}
	if includeBody {
		m.Body = extractPlainText(gm.Payload)
	}
	return m
}

// extractPlainText walks the MIME tree for the first text/plain part,
// falling back to the top-level body when no plain part exists.
func extractPlainText(p gmailPayload) string {
	if text := findPlainPart(p); text != "" {
		return text
	}
	if p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	return ""
}

func findPlainPart(p gmailPayload) string {
	if p.MimeType == "text/plain" && p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	for _, part := range p.Parts {
		if text := findPlainPart(part); text != "" {
			return text
		}
	}
	return ""
}

// decodeBody handles both padded and unpadded base64url payloads.
func decodeBody(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}
