// Package mymemory translates text with the MyMemory translation API.
package mymemory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"dualchat/internal/domain"
)

const DefaultBaseURL = "https://api.mymemory.translated.net"

// ErrTranslationRejected is returned when the envelope reports a non-200 status.
var ErrTranslationRejected = errors.New("translation rejected")

// Client implements ports.Translator.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	// Email raises the anonymous daily quota when set.
	Email string
}

func NewClient(baseURL, email string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Email:      strings.TrimSpace(email),
	}
}

func (c *Client) Translate(ctx context.Context, text string, source, target domain.Language) (string, error) {
	if !source.Valid() || !target.Valid() {
		return "", fmt.Errorf("unsupported language pair %q|%q", source, target)
	}

	query := url.Values{}
	query.Set("q", text)
	query.Set("langpair", string(source)+"|"+string(target))
	if c.Email != "" {
		query.Set("de", c.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/get?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read translation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translation error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return parseEnvelope(body)
}

// parseEnvelope extracts the translated text. responseStatus arrives as a
// number on success and sometimes as a string on failure.
func parseEnvelope(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("translation response is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	status := root.Get("responseStatus")
	if status.Exists() && status.Int() != http.StatusOK {
		details := strings.TrimSpace(root.Get("responseDetails").String())
		return "", fmt.Errorf("%w: status=%s %s", ErrTranslationRejected, status.String(), details)
	}

	translated := root.Get("responseData.translatedText")
	if !translated.Exists() {
		return "", errors.New("translation response has no translated text")
	}
	return translated.String(), nil
}
