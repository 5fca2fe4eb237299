package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-candor/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message is one entry of an OpenAI-compatible chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Reply struct {
	Content      string
	Tokens       int
	TokensPerSec float64
	SessionID    string
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm returned status %d: %s", e.Code, e.Body)
}

// Client talks to OpenAI-compatible chat completion endpoints.
type Client struct {
	http    *http.Client
	breaker *Breaker
	log     *zap.Logger
}

func NewClient(timeout time.Duration, breaker *Breaker, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		log:     log.Named("llm"),
	}
}

type completionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Timings struct {
		PredictedN         int     `json:"predicted_n"`
		PredictedMs        float64 `json:"predicted_ms"`
		PredictedPerSecond float64 `json:"predicted_per_second"`
	} `json:"timings"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends the history and waits for the whole reply.
func (c *Client) Complete(ctx context.Context, model config.LLMConfig, msgs []Message) (Reply, error) {
	res, err := c.do(ctx, model, msgs, false)
	if err != nil {
		return Reply{}, err
	}
	defer res.Body.Close()

	var body completionResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Reply{}, fmt.Errorf("decode completion: %w", err)
	}
	reply := Reply{
		Tokens:       body.Usage.CompletionTokens,
		TokensPerSec: body.Timings.PredictedPerSecond,
		SessionID:    body.ID,
	}
	if len(body.Choices) > 0 {
		reply.Content = body.Choices[0].Message.Content
	}
	if reply.TokensPerSec == 0 && body.Timings.PredictedMs > 0 && body.Timings.PredictedN > 0 {
		reply.TokensPerSec = float64(body.Timings.PredictedN) / (body.Timings.PredictedMs / 1000)
	}
	return reply, nil
}

// Stream sends the history with stream=true and calls onToken for every
// content delta. Returning an error from onToken stops the stream.
func (c *Client) Stream(ctx context.Context, model config.LLMConfig, msgs []Message, onToken func(string) error) (Reply, error) {
	res, err := c.do(ctx, model, msgs, true)
	if err != nil {
		return Reply{}, err
	}
	defer res.Body.Close()

	var (
		sb     strings.Builder
		tokens int
		first  time.Time
	)
	reader := bufio.NewReader(res.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Reply{}, fmt.Errorf("read stream: %w", err)
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}
			var chunk streamChunk
			if jerr := json.Unmarshal([]byte(data), &chunk); jerr != nil {
				c.log.Debug("skipping undecodable chunk", zap.Error(jerr))
			} else if len(chunk.Choices) > 0 {
				if tok := chunk.Choices[0].Delta.Content; tok != "" {
					if first.IsZero() {
						first = time.Now()
					}
					sb.WriteString(tok)
					tokens++
					if cbErr := onToken(tok); cbErr != nil {
						return Reply{Content: sb.String(), Tokens: tokens}, cbErr
					}
				}
				if chunk.Choices[0].FinishReason == "stop" {
					break
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	reply := Reply{Content: sb.String(), Tokens: tokens}
	if !first.IsZero() {
		if secs := time.Since(first).Seconds(); secs > 0 {
			reply.TokensPerSec = float64(tokens) / secs
		}
	}
	return reply, nil
}

func (c *Client) do(ctx context.Context, model config.LLMConfig, msgs []Message, stream bool) (*http.Response, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}
	}

	payload := map[string]interface{}{
		"model":    model.Name,
		"messages": msgs,
	}
	if stream {
		payload["stream"] = true
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, model.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.record(err)
		c.log.Warn("request failed", zap.String("model", model.Name), zap.String("request_id", reqID), zap.Error(err))
		return nil, fmt.Errorf("llm request: %w", err)
	}
	if res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		res.Body.Close()
		serr := &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(b))}
		if res.StatusCode >= 500 {
			c.record(serr)
		} else {
			c.record(nil)
		}
		return nil, serr
	}
	c.record(nil)
	c.log.Debug("request accepted",
		zap.String("model", model.Name),
		zap.String("request_id", reqID),
		zap.Bool("stream", stream),
		zap.Duration("latency", time.Since(start)))
	return res, nil
}

func (c *Client) record(err error) {
	if c.breaker != nil {
		c.breaker.Record(err)
	}
}
