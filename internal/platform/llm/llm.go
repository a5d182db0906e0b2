package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"
)

// Config selects and configures the LLM provider.
type Config struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// Service wraps a chat model behind a single text-generation entry point.
// All classification, ranking, and parsing prompts go through here.
type Service struct {
	config    Config
	chatModel model.BaseChatModel
}

// NewService creates the service and initializes the provider's chat model.
func NewService(config Config) (*Service, error) {
	s := &Service{config: config}
	switch strings.ToLower(config.Provider) {
	case "gemini":
		if err := s.initGemini(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s. Supported: gemini", config.Provider)
	}
	return s, nil
}

// NewServiceWithModel creates the service around a pre-built chat model.
// Tests use this to inject a stub model.
func NewServiceWithModel(config Config, chatModel model.BaseChatModel) *Service {
	return &Service{config: config, chatModel: chatModel}
}

func (s *Service) initGemini() error {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: s.config.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating Gemini client: %w", err)
	}
	chatModel, err := gemini.NewChatModel(context.Background(), &gemini.Config{
		Client: client,
		Model:  s.config.Model,
	})
	if err != nil {
		return fmt.Errorf("creating Gemini chat model: %w", err)
	}
	s.chatModel = chatModel
	return nil
}

// Generate runs the messages through the chat model and returns the text.
func (s *Service) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	if s.chatModel == nil {
		return "", fmt.Errorf("chat model not initialized")
	}
	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("LLM generation failed: %w", err)
	}
	return resp.Content, nil
}

// GenerateFromTemplate formats a chat template and generates a response.
func (s *Service) GenerateFromTemplate(ctx context.Context, tpl prompt.ChatTemplate, vars map[string]any) (string, error) {
	messages, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("formatting chat template: %w", err)
	}
	return s.Generate(ctx, messages)
}

// AttachImage rewrites the last user message to carry an inline PNG so
// multimodal prompts can analyze captured screenshots.
func AttachImage(messages []*schema.Message, base64PNG string) []*schema.Message {
	if base64PNG == "" || len(messages) == 0 {
		return messages
	}
	last := messages[len(messages)-1]
	last.MultiContent = []schema.ChatMessagePart{
		{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL: "data:image/png;base64," + base64PNG,
			},
		},
		{Type: schema.ChatMessagePartTypeText, Text: last.Content},
	}
	last.Content = ""
	return messages
}

// CleanJSONResponse strips markdown code fences models wrap JSON in.
func CleanJSONResponse(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}
