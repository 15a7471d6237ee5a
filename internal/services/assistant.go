package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/monitoring"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	defaultReplyLanguage = "English"

	translatePrompt = "You are a translator. Translate the text below to %[1]s. Return ONLY the translated sentence. " +
		"No explanations, no bullet points, no romanization, no options. Only the %[1]s sentence.\n\nText: %[2]s\n\nTranslation:"
	chatPrompt = "You are a helpful farming assistant for Indian farmers. Answer in %s. Keep your answer very short, " +
		"simple, and practical, maximum 3 sentences. No bullet points, no long explanations. " +
		"Just a direct helpful answer a farmer can understand.\n\nQuestion: %s\n\nAnswer:"
)

// Messages returned to callers when the upstream model fails
const (
	MsgTranslationFailed = "Translation Failed"
	MsgAssistantOffline  = "AI Assistant Offline"
)

// AssistantOptions configures the text-generation upstream
type AssistantOptions struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	Timeout    time.Duration
}

// AssistantService proxies translation and chat prompts to a Gemini
// generateContent model
type AssistantService struct {
	opts   AssistantOptions
	client *genai.Client
}

// NewAssistantService creates a new assistant service. Without an API key
// the service still starts and every call fails as an upstream failure.
func NewAssistantService(ctx context.Context, opts AssistantOptions) (*AssistantService, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	s := &AssistantService{opts: opts}
	if opts.APIKey == "" {
		log.Warn().Msg("Assistant API key not configured, AI endpoints will report offline")
		return s, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    opts.BaseURL,
			APIVersion: opts.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant client: %w", err)
	}
	s.client = client
	return s, nil
}

// Translate returns text rendered in targetLang
func (s *AssistantService) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(targetLang) == "" {
		return "", fmt.Errorf("text and targetLang are required: %w", models.ErrInvalidOperation)
	}

	raw, err := s.generate(ctx, "translate", fmt.Sprintf(translatePrompt, targetLang, text))
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", MsgTranslationFailed, err, models.ErrUpstream)
	}

	translated := CleanTranslation(raw)
	if translated == "" {
		monitoring.AssistantRequests.WithLabelValues("translate", "empty").Inc()
		return "", fmt.Errorf("%s: empty response: %w", MsgTranslationFailed, models.ErrUpstream)
	}
	monitoring.AssistantRequests.WithLabelValues("translate", "ok").Inc()
	return translated, nil
}

// Chat answers a farming question in language (English when empty)
func (s *AssistantService) Chat(ctx context.Context, question, language string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is required: %w", models.ErrInvalidOperation)
	}
	if strings.TrimSpace(language) == "" {
		language = defaultReplyLanguage
	}

	raw, err := s.generate(ctx, "chat", fmt.Sprintf(chatPrompt, language, question))
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", MsgAssistantOffline, err, models.ErrUpstream)
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		monitoring.AssistantRequests.WithLabelValues("chat", "empty").Inc()
		return "", fmt.Errorf("%s: empty response: %w", MsgAssistantOffline, models.ErrUpstream)
	}
	monitoring.AssistantRequests.WithLabelValues("chat", "ok").Inc()
	return answer, nil
}

// CleanTranslation keeps the first line of raw model output that looks like
// a sentence rather than a bullet, a note or an alternative.
func CleanTranslation(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		t := strings.TrimSpace(line)
		if t == "" ||
			strings.HasPrefix(t, "*") ||
			strings.HasPrefix(t, "-") ||
			strings.HasPrefix(t, "(") ||
			strings.HasPrefix(strings.ToLower(t), "option") {
			continue
		}
		return t
	}
	return ""
}

func (s *AssistantService) generate(ctx context.Context, kind, prompt string) (string, error) {
	if s.client == nil {
		monitoring.AssistantRequests.WithLabelValues(kind, "error").Inc()
		return "", errors.New("api key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.opts.Model, genai.Text(prompt), nil)
	if err != nil {
		monitoring.AssistantRequests.WithLabelValues(kind, "error").Inc()
		log.Error().Err(err).Str("kind", kind).Dur("elapsed", time.Since(start)).Msg("Assistant request failed")
		return "", errors.New("request failed")
	}
	return resp.Text(), nil
}
