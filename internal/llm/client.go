package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jonathan/speaking-coach/internal/types"
	"google.golang.org/api/option"
)

// Generator produces the next model turn for an ordered conversation.
// No output structure is guaranteed.
type Generator interface {
	Generate(ctx context.Context, turns []types.Turn) (string, error)
}

// Transcriber converts recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, hintName string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, turns []types.Turn) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, turns []types.Turn) (string, error) {
	return f(ctx, turns)
}

// GeminiClient implements Generator and Transcriber for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
	tier   ModelTier
}

// NewGeminiClient creates a new Gemini client. Generate uses TierStandard
// until WithTier selects another tier. A nil config uses DefaultConfig.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
		tier:   TierStandard,
	}, nil
}

// WithTier returns a view of the client that generates with tier.
// The view shares the underlying connection; Close only the original.
func (c *GeminiClient) WithTier(tier ModelTier) *GeminiClient {
	return &GeminiClient{client: c.client, config: c.config, tier: tier}
}

// Generate maps the leading system turn to the system instruction, prior
// turns to chat history, and sends the final user turn.
func (c *GeminiClient) Generate(ctx context.Context, turns []types.Turn) (string, error) {
	modelName := c.config.GetModel(c.tier)
	if modelName == "" {
		return "", &types.GenerationError{Op: "generate", Err: fmt.Errorf("no model configured for tier %s", c.tier)}
	}

	system, history, last, err := splitTurns(turns)
	if err != nil {
		return "", &types.GenerationError{Op: "generate", Err: err}
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.GetTemperature(c.tier))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", &types.GenerationError{Op: "generate", Err: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &types.GenerationError{Op: "generate", Err: err}
	}
	return text, nil
}

// Transcribe sends the audio inline and asks for a verbatim transcript.
func (c *GeminiClient) Transcribe(ctx context.Context, audio []byte, hintName string) (string, error) {
	if len(audio) == 0 {
		return "", &types.InvalidInputError{Field: "audio", Message: "empty audio"}
	}

	model := c.client.GenerativeModel(c.config.GetModel(TierLite))
	model.SetTemperature(c.config.GetTemperature(TierLite))

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: AudioMIMEType(hintName), Data: audio},
		genai.Text("Transcribe this recording verbatim. Return only the spoken words, without commentary."),
	)
	if err != nil {
		return "", &types.GenerationError{Op: "transcribe", Err: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &types.GenerationError{Op: "transcribe", Err: err}
	}
	return strings.TrimSpace(text), nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// splitTurns separates the system instruction, the chat history and the
// message to send. The conversation must end with a user turn.
func splitTurns(turns []types.Turn) (string, []*genai.Content, string, error) {
	if len(turns) == 0 {
		return "", nil, "", fmt.Errorf("empty conversation")
	}

	var system string
	rest := turns
	if turns[0].Role == types.RoleSystem {
		system = turns[0].Text
		rest = turns[1:]
	}
	if len(rest) == 0 || rest[len(rest)-1].Role != types.RoleUser {
		return "", nil, "", fmt.Errorf("conversation must end with a user turn")
	}

	history := make([]*genai.Content, 0, len(rest)-1)
	for _, turn := range rest[:len(rest)-1] {
		history = append(history, &genai.Content{
			Role:  geminiRole(turn.Role),
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	return system, history, rest[len(rest)-1].Text, nil
}

// geminiRole maps conversation roles onto Gemini's user/model roles.
func geminiRole(role types.Role) string {
	if role == types.RoleAssistant {
		return "model"
	}
	return "user"
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
