package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// InviteLink is the URL a co-parent opens to accept an invite.
func (c *Client) InviteLink(token string) string {
	return fmt.Sprintf("%s/invite/accept?token=%s", c.baseURL, url.QueryEscape(token))
}

// SendInvite emails a co-parent invite for childName.
func (c *Client) SendInvite(ctx context.Context, toEmail, inviterName, childName, token string, expiresAt time.Time) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	link := c.InviteLink(token)
	subject := fmt.Sprintf("%s invited you to co-parent %s on SplitWeek", inviterName, childName)
	expiry := expiresAt.UTC().Format("January 2, 2006")
	textBody := fmt.Sprintf(
		"%s has invited you to share %s's custody calendar.\n\nAccept the invite:\n\n%s\n\nThis link expires on %s.",
		inviterName, childName, link, expiry,
	)
	htmlBody := fmt.Sprintf(
		`<p>%s has invited you to share %s's custody calendar.</p><p><a href="%s">Accept the invite</a></p><p>This link expires on %s.</p>`,
		html.EscapeString(inviterName), html.EscapeString(childName), html.EscapeString(link), expiry,
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      "invite",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
