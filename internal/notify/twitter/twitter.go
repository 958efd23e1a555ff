package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	apperrors "github.com/target/txalert/internal/errors"
	"github.com/target/txalert/internal/notify"
)

// DefaultBaseURL is the public Twitter API origin.
const DefaultBaseURL = "https://api.twitter.com"

const (
	statusUpdatePath  = "/1.1/statuses/update.json"
	directMessagePath = "/1.1/direct_messages/events/new.json"

	maxResponseBytes = 1 << 20
)

// Credentials is the OAuth 1.0a signing material for one account.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// String keeps credentials out of logs and %v output.
func (Credentials) String() string { return "twitter.Credentials{REDACTED}" }

// GoString keeps credentials out of %#v output.
func (c Credentials) GoString() string { return c.String() }

// Config captures the subset of Twitter API behaviour we need.
type Config struct {
	Credentials Credentials
	BaseURL     string
	// Timeout bounds each call; zero leaves the client without a timeout.
	Timeout time.Duration
	// Client supplies the base transport; the OAuth1 signer wraps it.
	Client *http.Client
	Logger *slog.Logger
}

// Client delivers alerts through the Twitter v1.1 API with OAuth 1.0a signing.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ notify.Publisher = (*Client)(nil)

// NewClient builds a signed Twitter API client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse twitter base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid twitter base url scheme: %q", u.Scheme)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()
	if cfg.Client != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, cfg.Client)
	}
	creds := cfg.Credentials
	signed := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret).
		Client(ctx, oauth1.NewToken(creds.Token, creds.TokenSecret))
	signed.Timeout = cfg.Timeout

	return &Client{
		baseURL: baseURL,
		client:  signed,
		logger:  logger.With("component", "twitter_client"),
	}, nil
}

// Publish routes text to a public post or a direct message depending on target.
func (c *Client) Publish(ctx context.Context, target notify.Target, text string) (notify.Receipt, error) {
	switch target.Kind {
	case notify.TargetDirect:
		return c.SendDirectMessage(ctx, target.RecipientID, text)
	case notify.TargetPublic, "":
		return c.PostStatus(ctx, text)
	default:
		return notify.Receipt{}, apperrors.Internal(fmt.Sprintf("unknown delivery target %q", target.Kind))
	}
}

// PostStatus publishes text as a public status update.
func (c *Client) PostStatus(ctx context.Context, text string) (notify.Receipt, error) {
	query := url.Values{"status": {text}}.Encode()
	// Twitter signs spaces as %20; url.Values encodes them as '+' and a literal '+' as %2B.
	query = strings.ReplaceAll(query, "+", "%20")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+statusUpdatePath+"?"+query, nil)
	if err != nil {
		return notify.Receipt{}, fmt.Errorf("create twitter status request: %w", err)
	}
	return c.do(req, "statuses/update")
}

type directMessageRequest struct {
	Event directMessageEvent `json:"event"`
}

type directMessageEvent struct {
	Type          string        `json:"type"`
	MessageCreate messageCreate `json:"message_create"`
}

type messageCreate struct {
	Target      messageTarget `json:"target"`
	MessageData messageData   `json:"message_data"`
}

type messageTarget struct {
	RecipientID int64 `json:"recipient_id"`
}

type messageData struct {
	Text string `json:"text"`
}

// SendDirectMessage sends text as a direct message to recipientID.
func (c *Client) SendDirectMessage(ctx context.Context, recipientID int64, text string) (notify.Receipt, error) {
	body, err := json.Marshal(directMessageRequest{
		Event: directMessageEvent{
			Type: "message_create",
			MessageCreate: messageCreate{
				Target:      messageTarget{RecipientID: recipientID},
				MessageData: messageData{Text: text},
			},
		},
	})
	if err != nil {
		return notify.Receipt{}, fmt.Errorf("encode twitter direct message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+directMessagePath, bytes.NewReader(body))
	if err != nil {
		return notify.Receipt{}, fmt.Errorf("create twitter direct message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "direct_messages/events/new")
}

func (c *Client) do(req *http.Request, endpoint string) (notify.Receipt, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return notify.Receipt{}, apperrors.WrapTransport(err, "twitter request failed")
	}

	body, err := readBody(resp)
	if err != nil {
		return notify.Receipt{}, apperrors.WrapTransport(err, "read twitter response")
	}

	c.logger.InfoContext(req.Context(), "twitter response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"response", string(body),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return notify.Receipt{}, apperrors.Delivery(resp.StatusCode,
			fmt.Sprintf("twitter %s %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body))))
	}
	return notify.Receipt{Status: resp.StatusCode, Body: body}, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	closeErr := resp.Body.Close()
	switch {
	case readErr != nil && closeErr != nil:
		return nil, errors.Join(
			fmt.Errorf("read response body: %w", readErr),
			fmt.Errorf("close response body: %w", closeErr),
		)
	case readErr != nil:
		return nil, fmt.Errorf("read response body: %w", readErr)
	case closeErr != nil:
		return nil, fmt.Errorf("close response body: %w", closeErr)
	}
	return body, nil
}
