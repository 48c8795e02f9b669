package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIVersion is the x-ms-version sent with signed requests.
const APIVersion = "2020-10-02"

var ErrNotConfigured = errors.New("azure storage credentials not configured")

// Config contains the storage account credentials.
type Config struct {
	Account   string
	Key       string
	Container string
	// BaseURL overrides https://<account>.blob.core.windows.net.
	BaseURL string
	Timeout time.Duration
}

// StatusError is returned when the blob service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("blob service returned %d", e.StatusCode)
}

// Client lists a container using shared-key authorization.
type Client struct {
	cfg  Config
	http *resty.Client
	now  func() time.Time
}

// NewClient creates a client for one container.
func NewClient(cfg Config) *Client {
	if cfg.Container == "" {
		cfg.Container = "documents"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.Account)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: resty.New().SetTimeout(timeout), now: time.Now}
}

// Configured reports whether account and key are both set.
func (c *Client) Configured() bool {
	return c.cfg.Account != "" && c.cfg.Key != ""
}

// Container returns the container name.
func (c *Client) Container() string { return c.cfg.Container }

// StringToSign is the canonicalized string for a container list request.
func StringToSign(account, container, date string) string {
	return "GET\n\n\n\n\n\n\n\n\n\n\n\n" +
		"x-ms-date:" + date + "\n" +
		"x-ms-version:" + APIVersion + "\n" +
		"/" + account + "/" + container + "\n" +
		"comp:list\n" +
		"restype:container"
}

// Sign computes the base64 HMAC-SHA256 of s keyed by the base64 account key.
func Sign(key, s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decode storage key: %w", err)
	}
	mac := hmac.New(sha256.New, raw)
	mac.Write([]byte(s))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// List returns the raw XML listing of the container.
func (c *Client) List(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	date := c.now().UTC().Format(http.TimeFormat)
	sig, err := Sign(c.cfg.Key, StringToSign(c.cfg.Account, c.cfg.Container, date))
	if err != nil {
		return "", err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-ms-date", date).
		SetHeader("x-ms-version", APIVersion).
		SetHeader("Authorization", fmt.Sprintf("SharedKey %s:%s", c.cfg.Account, sig)).
		SetQueryParams(map[string]string{"restype": "container", "comp": "list"}).
		Get(c.cfg.BaseURL + "/" + c.cfg.Container)
	if err != nil {
		return "", fmt.Errorf("list blobs: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return string(resp.Body()), nil
}

// BlobURL is the plain URL of a blob. No access token is attached.
func (c *Client) BlobURL(name string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", c.cfg.Account, c.cfg.Container, name)
}

// Item is one entry of a container listing.
type Item struct {
	Name          string `xml:"Name"`
	ContentLength int64  `xml:"Properties>Content-Length"`
	ContentType   string `xml:"Properties>Content-Type"`
	LastModified  string `xml:"Properties>Last-Modified"`
}

// ParseList decodes the EnumerationResults document returned by List.
func ParseList(raw string) ([]Item, error) {
	var doc struct {
		XMLName xml.Name `xml:"EnumerationResults"`
		Blobs   []Item   `xml:"Blobs>Blob"`
	}
	if err := xml.Unmarshal([]byte(strings.TrimPrefix(raw, "\ufeff")), &doc); err != nil {
		return nil, fmt.Errorf("parse blob listing: %w", err)
	}
	return doc.Blobs, nil
}

// Items lists the container and decodes its entries.
func (c *Client) Items(ctx context.Context) ([]Item, error) {
	raw, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return ParseList(raw)
}
