// Package translate renders chat messages into the "other" language of a
// bilingual (English / Traditional Chinese) conversation through DeepL.
package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultEndpoint = "https://api-free.deepl.com/v2/translate"

	LangEN     = "EN"
	LangZHHant = "ZH-HANT"
)

type Config struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (c *Config) norm() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

type DeepL struct {
	cfg Config
	cli *resty.Client
}

func NewDeepL(cfg Config) *DeepL {
	cfg.norm()
	return &DeepL{
		cfg: cfg,
		cli: resty.New().SetTimeout(cfg.Timeout),
	}
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate returns text in the target language picked by DetectTarget.
// Blank input returns "" without a request.
func (d *DeepL) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	var out deeplResponse
	resp, err := d.cli.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"auth_key":    d.cfg.APIKey,
			"text":        text,
			"target_lang": DetectTarget(text),
		}).
		SetResult(&out).
		Post(d.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("deepl request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("deepl status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	if len(out.Translations) == 0 {
		return "", fmt.Errorf("deepl: empty translations")
	}
	return out.Translations[0].Text, nil
}

// DetectTarget picks the translation target from the share of CJK and Latin
// letters in text: mostly Chinese goes to English, mostly Latin goes to
// Traditional Chinese, otherwise the larger share decides.
func DetectTarget(text string) string {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		total = 1
	}
	var cjk, latin int
	for _, r := range text {
		switch {
		case r >= 0x4e00 && r <= 0x9fff:
			cjk++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}
	cjkRatio := float64(cjk) / float64(total)
	latinRatio := float64(latin) / float64(total)

	switch {
	case cjkRatio > 0.3:
		return LangEN
	case latinRatio > 0.6:
		return LangZHHant
	case cjkRatio > latinRatio:
		return LangEN
	default:
		return LangZHHant
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
