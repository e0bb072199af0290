// Package voicerss synthesizes speech with the VoiceRSS text-to-speech API.
package voicerss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dualchat/internal/domain"
)

const DefaultBaseURL = "https://api.voicerss.org"

var (
	ErrNotConfigured = errors.New("VOICERSS_API_KEY is not configured")
	ErrUnsupported   = errors.New("language has no remote voice")
)

// codec is fixed to MP3 so responses carry the "data:audio/mpeg" marker the
// speech selector decodes.
const codec = "MP3"

// Config controls the VoiceRSS request.
type Config struct {
	APIKey  string
	BaseURL string
	Format  string
	// Languages maps conversation languages to VoiceRSS hl codes.
	Languages map[domain.Language]string
	Timeout   time.Duration
}

// Client implements ports.RemoteSpeech. A successful response is a
// "data:audio/mpeg;base64," payload; failures come back as "ERROR: ..." text.
type Client struct {
	HTTPClient *http.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Format == "" {
		cfg.Format = "44khz_16bit_stereo"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = map[domain.Language]string{
			domain.LanguageBengali: "bn-in",
			domain.LanguageEnglish: "en-us",
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{HTTPClient: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

func (c *Client) Synthesize(ctx context.Context, text string, lang domain.Language) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	hl, ok := c.cfg.Languages[lang]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, lang)
	}

	query := url.Values{}
	query.Set("key", c.cfg.APIKey)
	query.Set("hl", hl)
	query.Set("src", text)
	query.Set("c", codec)
	query.Set("f", c.cfg.Format)
	query.Set("b64", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote speech request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read remote speech response: %w", err)
	}
	payload := strings.TrimSpace(string(body))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("remote speech error: status=%d body=%s", resp.StatusCode, truncate(payload, 200))
	}
	if strings.HasPrefix(payload, "ERROR") {
		return "", fmt.Errorf("remote speech error: %s", truncate(payload, 200))
	}
	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
