package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/cx-tal-miterani/flightpulse/pkg/metrics"
)

// DefaultLLMTimeout allows for the latency of LLM-backed generation.
const DefaultLLMTimeout = 30 * time.Second

// LLMGenerator calls the message-generation service over HTTP. Any failure
// — transport, status, or a response that does not parse — resolves to the
// template fallback; the caller never sees an error.
type LLMGenerator struct {
	endpoint string
	model    string
	client   *http.Client
	fallback *TemplateGenerator
	log      logger.Logger
	metrics  *metrics.Metrics
}

type llmRequest struct {
	Model string `json:"model,omitempty"`
	Input
}

// NewLLMGenerator creates an LLM-backed generator.
func NewLLMGenerator(endpoint, model string, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *LLMGenerator {
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLMGenerator{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		fallback: NewTemplateGenerator(),
		log:      log,
		metrics:  m,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, in Input) Message {
	msg, err := g.generate(ctx, in)
	if err != nil {
		g.log.Warn("message generation failed, using template fallback",
			"passengerId", in.Passenger.PassengerID,
			"messageType", in.MessageType,
			"error", err,
		)
		g.metrics.GeneratorFallbacks.Inc()
		return g.fallback.Generate(ctx, in)
	}
	return msg
}

func (g *LLMGenerator) generate(ctx context.Context, in Input) (Message, error) {
	body, err := json.Marshal(llmRequest{Model: g.model, Input: in})
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return Message{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Message{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if msg.EmailSubject == "" && msg.EmailBody == "" && msg.SMSBody == "" {
		return Message{}, fmt.Errorf("empty message in response")
	}
	return msg, nil
}
