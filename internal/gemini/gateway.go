// Package gemini adapts the chat thread to the Gemini API. The gateway is
// stateless: every call forwards the full turn list.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/cjremmett/webtools/internal/chat"
)

const DefaultModel = "gemini-2.0-flash"

type Gateway struct {
	client *genai.Client
	model  string
}

func NewGateway(ctx context.Context, apiKey, model string) (*Gateway, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gateway{client: client, model: model}, nil
}

// Respond forwards the ordered turn list and returns the assistant's reply
// plus the list with the new assistant turn appended. Order and roles are
// preserved verbatim; system turns travel as the system instruction.
func (g *Gateway) Respond(ctx context.Context, turns []chat.Turn) (string, []chat.Turn, error) {
	contents, system, err := toContents(turns)
	if err != nil {
		return "", nil, err
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", nil, fmt.Errorf("gemini returned no text")
	}

	updated := append(append([]chat.Turn{}, turns...), chat.Turn{Role: chat.RoleAssistant, Content: text})
	return text, updated, nil
}

// toContents maps thread roles onto the Gemini wire roles: system turns are
// concatenated into the system instruction, user stays "user", assistant
// becomes "model".
func toContents(turns []chat.Turn) ([]*genai.Content, string, error) {
	var system []string
	var contents []*genai.Content
	for _, t := range turns {
		switch t.Role {
		case chat.RoleSystem:
			system = append(system, t.Content)
		case chat.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{{Text: t.Content}},
			})
		case chat.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  string(genai.RoleModel),
				Parts: []*genai.Part{{Text: t.Content}},
			})
		default:
			return nil, "", fmt.Errorf("invalid role %q in thread", t.Role)
		}
	}
	return contents, strings.Join(system, "\n\n"), nil
}
