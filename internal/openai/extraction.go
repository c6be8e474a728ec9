package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

const (
	// DefaultChatModel is the OpenAI model used for graph extraction and summaries
	DefaultChatModel = "gpt-4o-mini"

	// parseAttempts bounds the retries on malformed model JSON
	parseAttempts = 3
)

const extractionSystemPrompt = `You extract a knowledge graph from text.
Return a JSON object with two arrays:
"entities": [{"name": string, "category": string, "description": string}]
"relationships": [{"subject": string, "object": string, "predicate": string, "description": string, "weight": number between 0 and 1}]
Subject and object must exactly match an entity name from the same response.
Use short noun phrases for names and UPPER_SNAKE_CASE for categories. Respond with JSON only.`

const communitySystemPrompt = `You summarize a community of related entities from a knowledge graph.
Given entity names, categories and descriptions, produce a single concise paragraph
describing what connects them. Respond with plain text only.`

// graphPayload mirrors the JSON shape the extraction prompt demands.
type graphPayload struct {
	Entities []struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		Description string `json:"description"`
	} `json:"entities"`
	Relationships []struct {
		Subject     string  `json:"subject"`
		Object      string  `json:"object"`
		Predicate   string  `json:"predicate"`
		Description string  `json:"description"`
		Weight      float64 `json:"weight"`
	} `json:"relationships"`
}

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	CreateJSONCompletion(ctx context.Context, system, user string) (string, error)
	CreateTextCompletion(ctx context.Context, system, user string) (string, error)
}

type ChatAdapter struct {
	client *openai.Client
	model  string
}

func NewChatAdapter(apiKey, model string) *ChatAdapter {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (a *ChatAdapter) CreateJSONCompletion(ctx context.Context, system, user string) (string, error) {
	return a.complete(ctx, system, user, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (a *ChatAdapter) CreateTextCompletion(ctx context.Context, system, user string) (string, error) {
	return a.complete(ctx, system, user, nil)
}

func (a *ChatAdapter) complete(ctx context.Context, system, user string, format *openai.ChatCompletionResponseFormat) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: format,
	})
	if err != nil {
		return "", mapAPIError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from model")
	}
	return resp.Choices[0].Message.Content, nil
}

// Extractor produces entity/relationship candidates and community summaries
// through the chat API.
type Extractor struct {
	api ChatAPI
}

func NewExtractor(apiKey, model string) *Extractor {
	return &Extractor{api: NewChatAdapter(apiKey, model)}
}

func NewExtractorWithAPI(api ChatAPI) *Extractor {
	return &Extractor{api: api}
}

// ExtractGraph asks the model for a knowledge graph over the text. Malformed
// JSON responses are retried up to parseAttempts times before giving up.
func (e *Extractor) ExtractGraph(ctx context.Context, text string) ([]domain.EntityCandidate, []domain.RelationshipCandidate, error) {
	var lastErr error

	for attempt := 0; attempt < parseAttempts; attempt++ {
		raw, err := e.api.CreateJSONCompletion(ctx, extractionSystemPrompt, text)
		if err != nil {
			return nil, nil, err
		}

		var payload graphPayload
		if err := json.Unmarshal([]byte(stripCodeFences(raw)), &payload); err != nil {
			lastErr = err
			log.Printf("extraction: malformed model response (attempt %d): %v", attempt+1, err)
			continue
		}

		entities := make([]domain.EntityCandidate, 0, len(payload.Entities))
		for _, e := range payload.Entities {
			entities = append(entities, domain.EntityCandidate{
				Name:        e.Name,
				Category:    e.Category,
				Description: e.Description,
			})
		}
		relationships := make([]domain.RelationshipCandidate, 0, len(payload.Relationships))
		for _, r := range payload.Relationships {
			relationships = append(relationships, domain.RelationshipCandidate{
				Subject:     r.Subject,
				Object:      r.Object,
				Predicate:   r.Predicate,
				Description: r.Description,
				Weight:      r.Weight,
			})
		}
		return entities, relationships, nil
	}

	return nil, nil, fmt.Errorf("failed to parse extraction response after %d attempts: %w", parseAttempts, lastErr)
}

// SummarizeCommunity produces a one-paragraph summary of the given entity
// descriptions.
func (e *Extractor) SummarizeCommunity(ctx context.Context, descriptions []string) (string, error) {
	if len(descriptions) == 0 {
		return "", fmt.Errorf("no entity descriptions to summarize")
	}

	summary, err := e.api.CreateTextCompletion(ctx, communitySystemPrompt, strings.Join(descriptions, "\n"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

// stripCodeFences removes markdown fences some models wrap around JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
