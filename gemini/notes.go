package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultNotesPrompt is used when no custom prompt is configured.
const DefaultNotesPrompt = `You are taking meeting notes. Given one spoken utterance from a live transcript, produce a single concise bullet point capturing what was said. Start with "- " and keep it to one line. If the utterance carries no content worth noting, restate it briefly anyway.`

// Summarizer turns one finished transcript turn into a note via a single
// independent text-generation request. It has no session affinity; turns
// from the same recording may be summarized concurrently.
type Summarizer struct {
	client *genai.Client
	model  string
	prompt string
}

func NewSummarizer(ctx context.Context, apiKey, model, prompt string) (*Summarizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating summarizer client: %w", err)
	}
	if prompt == "" {
		prompt = DefaultNotesPrompt
	}
	return &Summarizer{client: client, model: model, prompt: prompt}, nil
}

func (s *Summarizer) Summarize(ctx context.Context, chunk string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(chunk),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: s.prompt}}},
		})
	if err != nil {
		return "", fmt.Errorf("summarizing turn: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("summarizing turn: empty response")
	}
	return text, nil
}
