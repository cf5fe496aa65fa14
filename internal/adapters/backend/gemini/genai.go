package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type genaiGenerator struct {
	client      *genai.Client
	temperature float32
}

func newGenaiGenerator(ctx context.Context, apiKey string, temperature float32) (*genaiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &genaiGenerator{client: client, temperature: temperature}, nil
}

func (g *genaiGenerator) Generate(ctx context.Context, name, system, prompt string) (string, Usage, error) {
	model := g.client.GenerativeModel(name)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(g.temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", Usage{}, err
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:   resp.UsageMetadata.PromptTokenCount,
			ResponseTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:    resp.UsageMetadata.TotalTokenCount,
		}
	}
	return responseText(resp), usage, nil
}

func (g *genaiGenerator) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text.WriteString(string(txt))
			}
		}
	}
	return text.String()
}
