package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/boardpilot/itemagent/internal/agent/model"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	Generation *model.GenerationModelConfig
	Classifier *model.ClassifierModelConfig
}

// ChatModels holds the generation and classifier chat models. Fields are
// interface-typed so callers can substitute any Eino tool-calling model.
type ChatModels struct {
	Generator           einoModel.ToolCallingChatModel
	Classifier          einoModel.ToolCallingChatModel
	GeneratorModelName  string
	ClassifierModelName string
}

// NewChatModels creates the generation and classifier chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// Create Generation Chat Model
	generator, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Generation.Model,
		Temperature: &config.Generation.Temperature,
		MaxTokens:   &config.Generation.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating generation model")
		return nil, fmt.Errorf("error creating generation model: %w", err)
	}

	// Create Classifier Chat Model
	classifier, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Classifier.Model,
		Temperature: &config.Classifier.Temperature,
		MaxTokens:   &config.Classifier.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	return &ChatModels{
		Generator:           generator,
		Classifier:          classifier,
		GeneratorModelName:  config.Generation.Model,
		ClassifierModelName: config.Classifier.Model,
	}, nil
}

// BindFieldTools binds the field tools to the generation model so it can
// request field metadata and candidate values during a run.
func (cm *ChatModels) BindFieldTools(tools []*schema.ToolInfo) error {
	bound, err := cm.Generator.WithTools(tools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind field tools")
		return fmt.Errorf("failed to bind field tools: %w", err)
	}
	cm.Generator = bound

	logx.Debug().Msg("Successfully bound field tools to generation model")
	return nil
}
