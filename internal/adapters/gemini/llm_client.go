// Package gemini implements the remote classifier and responder on Google
// Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
)

// GeminiClient implements core.ExternalClassifier and core.ExternalResponder
type GeminiClient struct {
	client        *genai.Client
	classifier    *genai.GenerativeModel
	responder     *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	newModel := func(system string) *genai.GenerativeModel {
		model := client.GenerativeModel(modelName)
		model.SetTemperature(temperature)
		model.SetTopP(topP)
		model.SetMaxOutputTokens(int32(maxTokens))
		model.ResponseMIMEType = "application/json"
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
		return model
	}

	return &GeminiClient{
		client:        client,
		classifier:    newModel(utils.ClassifierSystemPrompt),
		responder:     newModel(utils.ResponderSystemPrompt),
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyMessage implements core.ExternalClassifier
func (c *GeminiClient) ClassifyMessage(ctx context.Context, msg *core.NormalizedMessage, extra map[string]string) (*core.ClassificationResult, error) {
	start := time.Now()
	text, err := c.generate(ctx, c.classifier, c.textProcessor.ClassificationPrompt(msg, extra, c.maxBodySize))
	if err != nil {
		return nil, err
	}

	result, err := utils.ParseClassification(text, c.modelName)
	if err != nil {
		c.logger.Debug("Unparsable classification response", zap.String("response", text))
		return nil, err
	}
	result.ProcessingTime = time.Since(start)
	return result, nil
}

// SuggestReply implements core.ExternalResponder
func (c *GeminiClient) SuggestReply(ctx context.Context, raw *core.RawMessage, msg *core.NormalizedMessage, cls *core.ClassificationResult) (*core.SuggestedReply, error) {
	text, err := c.generate(ctx, c.responder, c.textProcessor.ReplyPrompt(raw, msg, cls, c.maxBodySize))
	if err != nil {
		return nil, err
	}
	return utils.ParseReply(text, msg.Language)
}

func (c *GeminiClient) generate(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("no text in Gemini response")
	}
	return sb.String(), nil
}
