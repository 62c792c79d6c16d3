package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coinbase_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Ollama спрашивает локальную LLM через /api/generate.
type Ollama struct {
	http  *http.Client
	url   string
	model string
}

func NewOllama(cfg Config) *Ollama {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "mistral"
	}
	return &Ollama{
		http:  &http.Client{Timeout: timeout},
		url:   strings.TrimRight(cfg.URL, "/") + "/api/generate",
		model: model,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Ask первая строка ответа решение, остальное объяснение.
// Непонятное решение трактуется как HOLD без ошибки.
func (o *Ollama) Ask(ctx context.Context, prompt string) (models.Side, string, error) {
	bs, err := sonic.Marshal(generateRequest{Model: o.model, Prompt: prompt})
	if err != nil {
		return models.SideNone, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(bs))
	if err != nil {
		return models.SideNone, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return models.SideNone, "", errors.Wrapf(models.ErrTransientNetwork, "ollama: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return models.SideNone, "", errors.Wrapf(models.ErrDataUnavailable, "ollama: http %d: %s", resp.StatusCode, string(body))
	}

	var r generateResponse
	if err := sonic.Unmarshal(body, &r); err != nil {
		return models.SideNone, "", errors.Wrapf(models.ErrDataUnavailable, "ollama: decode: %v", err)
	}
	side, explanation := parse(r.Response)
	return side, explanation, nil
}

func parse(text string) (models.Side, string) {
	first, rest, _ := strings.Cut(strings.TrimSpace(text), "\n")
	decision := strings.ToUpper(strings.Trim(strings.TrimSpace(first), ".:*!"))
	explanation := strings.TrimSpace(rest)
	if explanation == "" {
		explanation = "no explanation provided"
	}
	side := models.ParseSide(decision)
	if side == models.SideNone && decision != "HOLD" {
		explanation = fmt.Sprintf("unrecognized decision %q, holding", first)
	}
	return side, explanation
}
