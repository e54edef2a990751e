package reviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/prompts"
	"service-marketplace/pkg/circuit"
	"service-marketplace/pkg/config"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
	"service-marketplace/pkg/utils"
)

// UsageTracker tracks OpenAI API usage across review calls.
type UsageTracker struct {
	mu            sync.RWMutex
	totalTokens   int
	totalRequests int
	startTime     time.Time
}

func (u *UsageTracker) AddUsage(promptTokens, completionTokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.totalTokens += promptTokens + completionTokens
	u.totalRequests++
}

func (u *UsageTracker) GetStats() (totalTokens, totalRequests int, duration time.Duration) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.totalTokens, u.totalRequests, time.Since(u.startTime)
}

// Reviewer runs automated content review and event verification through the
// OpenAI chat API. Calls go through a circuit breaker so a degraded upstream
// fails fast instead of stalling the worker pool.
type Reviewer struct {
	client      *openai.Client
	prompts     *prompts.Manager
	model       string
	temperature float32
	maxTokens   int
	breaker     *circuit.Breaker
	usage       *UsageTracker
}

func New(cfg *config.Config, pm *prompts.Manager, log *logging.Logger) *Reviewer {
	return &Reviewer{
		client:      openai.NewClient(cfg.OpenAIAPIKey),
		prompts:     pm,
		model:       cfg.OpenAIModel,
		temperature: float32(cfg.OpenAITemperature),
		maxTokens:   cfg.OpenAIMaxTokens,
		breaker: circuit.New(circuit.Config{
			Name:              "openai_review",
			OperationTimeout:  cfg.OpenAITimeout,
			OpenFor:           30 * time.Second,
			MaxConsecFailures: 5,
			WindowSize:        20,
			FailureRate:       0.5,
			SlowCallThreshold: cfg.OpenAITimeout / 2,
			SlowCallRate:      0.8,
		}, log),
		usage: &UsageTracker{startTime: time.Now()},
	}
}

// GetUsageStats returns current API usage statistics.
func (r *Reviewer) GetUsageStats() (totalTokens, totalRequests int, duration time.Duration) {
	return r.usage.GetStats()
}

const contentSystemPrompt = `You are a content moderator for a services marketplace.
Judge whether user posts are suitable for public listing.
Always respond in the exact JSON format requested. Be concise.`

const eventSystemPrompt = `You are a fraud analyst for a services marketplace.
Judge whether event listings describe legitimate real-world events.
Always respond in the exact JSON format requested. Be concise.`

// ReviewContent decides whether a blog post is suitable for publication.
// Title and body must not both be empty.
func (r *Reviewer) ReviewContent(ctx context.Context, title, body string, tags []string) (*domain.ReviewVerdict, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(body) == "" {
		return nil, errs.NewValidation("reviewer.ReviewContent", "content has no reviewable text", nil)
	}

	prompt, err := r.prompts.Render("content_review", map[string]any{
		"Title": title,
		"Body":  body,
		"Tags":  tags,
	})
	if err != nil {
		return nil, err
	}

	raw, err := r.complete(ctx, contentSystemPrompt, prompt)
	if err != nil {
		return nil, errs.NewUpstream("reviewer.ReviewContent", "openai", "content review call failed", err)
	}

	verdict, err := parseContentVerdict(raw)
	if err != nil {
		return nil, errs.NewUpstream("reviewer.ReviewContent", "openai", "unparseable review response", err)
	}
	return verdict, nil
}

// VerifyEvent decides whether an event listing is legitimate.
// Title and description must not both be empty.
func (r *Reviewer) VerifyEvent(ctx context.Context, title, description, address string, start time.Time) (*domain.ReviewVerdict, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		return nil, errs.NewValidation("reviewer.VerifyEvent", "event has no reviewable text", nil)
	}

	data := map[string]any{
		"Title":   title,
		"Body":    description,
		"Address": address,
	}
	if !start.IsZero() {
		data["StartDate"] = start.Format(time.RFC3339)
	}
	prompt, err := r.prompts.Render("event_verify", data)
	if err != nil {
		return nil, err
	}

	raw, err := r.complete(ctx, eventSystemPrompt, prompt)
	if err != nil {
		return nil, errs.NewUpstream("reviewer.VerifyEvent", "openai", "event verification call failed", err)
	}

	verdict, err := parseEventVerdict(raw)
	if err != nil {
		return nil, errs.NewUpstream("reviewer.VerifyEvent", "openai", "unparseable verification response", err)
	}
	return verdict, nil
}

// complete runs a single chat completion through the circuit breaker.
func (r *Reviewer) complete(ctx context.Context, system, user string) (string, error) {
	var content string
	err := r.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: r.temperature,
			MaxTokens:   r.maxTokens,
		})
		if err != nil {
			return err
		}
		r.usage.AddUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, nil)
	return content, err
}

var (
	suitableRegex   = regexp.MustCompile(`"?suitable"?\s*:\s*(true|false)`)
	legitimateRegex = regexp.MustCompile(`"?legitimate"?\s*:\s*(true|false)`)
	reasonRegex     = regexp.MustCompile(`"?reason"?\s*:\s*"([^"]*)"`)
)

// parseContentVerdict parses the structured response, falling back to regex
// extraction when the model wraps the JSON in prose or code fences.
func parseContentVerdict(raw string) (*domain.ReviewVerdict, error) {
	var parsed struct {
		Suitable bool   `json:"suitable"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err == nil {
		return &domain.ReviewVerdict{
			Kind:     domain.VerdictContent,
			Accepted: parsed.Suitable,
			Reason:   parsed.Reason,
			At:       time.Now().UTC(),
		}, nil
	}

	m := suitableRegex.FindStringSubmatch(raw)
	if len(m) < 2 {
		return nil, fmt.Errorf("no suitable field in response: %q", truncate(raw, 200))
	}
	reason := "no reason given"
	if rm := reasonRegex.FindStringSubmatch(raw); len(rm) > 1 {
		reason = rm[1]
	}
	return &domain.ReviewVerdict{
		Kind:     domain.VerdictContent,
		Accepted: m[1] == "true",
		Reason:   reason,
		At:       time.Now().UTC(),
	}, nil
}

func parseEventVerdict(raw string) (*domain.ReviewVerdict, error) {
	var parsed struct {
		Legitimate bool     `json:"legitimate"`
		Reason     string   `json:"reason"`
		Sources    []string `json:"sources"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err == nil {
		return &domain.ReviewVerdict{
			Kind:     domain.VerdictEvent,
			Accepted: parsed.Legitimate,
			Reason:   parsed.Reason,
			Sources:  dedupeSources(parsed.Sources),
			At:       time.Now().UTC(),
		}, nil
	}

	m := legitimateRegex.FindStringSubmatch(raw)
	if len(m) < 2 {
		return nil, fmt.Errorf("no legitimate field in response: %q", truncate(raw, 200))
	}
	reason := "no reason given"
	if rm := reasonRegex.FindStringSubmatch(raw); len(rm) > 1 {
		reason = rm[1]
	}
	return &domain.ReviewVerdict{
		Kind:     domain.VerdictEvent,
		Accepted: m[1] == "true",
		Reason:   reason,
		At:       time.Now().UTC(),
	}, nil
}

// dedupeSources drops duplicate and empty source URLs, comparing normalized
// forms so http/https and trailing-slash variants collapse.
func dedupeSources(sources []string) []string {
	if len(sources) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := utils.NormalizeURL(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// stripFences removes markdown code fences the model sometimes adds around
// JSON responses.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
