package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider using the Google Gemini API.
//
// Gemini keys tool results by function name instead of a call id, so the
// engine must set ToolResultBlock.Name; synthetic ids are generated for
// ToolUseBlock because the API does not issue them.
type GeminiProvider struct {
	client *genai.Client
	config Config
}

// NewGeminiProvider creates a new Gemini provider with an explicit API key.
func NewGeminiProvider(ctx context.Context, apiKey string, cfg Config) (*GeminiProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: cfg,
	}, nil
}

// Chat implements Provider.Chat for Gemini.
func (p *GeminiProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		contents = append(contents, p.convertMessage(msg))
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.config.Temperature)),
		MaxOutputTokens: int32(p.config.MaxTokens),
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 tool.Name,
				Description:          tool.Description,
				ParametersJsonSchema: tool.InputSchema,
			})
		}
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	return p.convertResponse(resp)
}

// Name implements Provider.Name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model implements Provider.Model.
func (p *GeminiProvider) Model() string {
	return p.config.Model
}

// convertMessage converts our Message to Gemini's Content.
func (p *GeminiProvider) convertMessage(msg Message) *genai.Content {
	role := genai.RoleUser
	if msg.Role == RoleAssistant {
		role = genai.RoleModel
	}

	parts := make([]*genai.Part, 0, len(msg.ToolResult)+len(msg.ToolUse)+1)

	for _, toolResult := range msg.ToolResult {
		response := map[string]interface{}{"output": toolResult.Content}
		if toolResult.IsError {
			response = map[string]interface{}{"error": toolResult.Content}
		}
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				Name:     toolResult.Name,
				Response: response,
			},
		})
	}

	if msg.Content != "" && len(msg.ToolResult) == 0 {
		parts = append(parts, &genai.Part{Text: msg.Content})
	}

	for _, toolUse := range msg.ToolUse {
		var args map[string]interface{}
		if len(toolUse.Input) > 0 {
			// Tool use blocks in history carry the input the model
			// produced earlier; a decode failure here means we stored
			// something that was never valid JSON.
			_ = json.Unmarshal(toolUse.Input, &args)
		}
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				Name: toolUse.Name,
				Args: args,
			},
		})
	}

	return &genai.Content{Role: role, Parts: parts}
}

// convertResponse converts Gemini's response to our Response.
func (p *GeminiProvider) convertResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]

	response := &Response{}
	if resp.UsageMetadata != nil {
		response.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	var textParts []string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
		if part.FunctionCall != nil {
			input, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to encode function call args: %w", err)
			}
			response.ToolCalls = append(response.ToolCalls, ToolUseBlock{
				ID:    uuid.NewString(),
				Name:  part.FunctionCall.Name,
				Input: input,
			})
		}
	}
	response.Content = strings.Join(textParts, "")

	switch {
	case len(response.ToolCalls) > 0:
		response.StopReason = StopReasonToolUse
	case candidate.FinishReason == genai.FinishReasonMaxTokens:
		response.StopReason = StopReasonMaxTokens
	default:
		response.StopReason = StopReasonEndTurn
	}

	return response, nil
}
