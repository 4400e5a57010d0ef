// Package openai implements the remote classifier and responder on the
// OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
)

// OpenAIClient implements core.ExternalClassifier and core.ExternalResponder
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ClassifyMessage implements core.ExternalClassifier
func (c *OpenAIClient) ClassifyMessage(ctx context.Context, msg *core.NormalizedMessage, extra map[string]string) (*core.ClassificationResult, error) {
	start := time.Now()
	prompt := c.textProcessor.ClassificationPrompt(msg, extra, c.maxBodySize)

	text, err := c.complete(ctx, utils.ClassifierSystemPrompt, prompt)
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
func (c *OpenAIClient) SuggestReply(ctx context.Context, raw *core.RawMessage, msg *core.NormalizedMessage, cls *core.ClassificationResult) (*core.SuggestedReply, error) {
	prompt := c.textProcessor.ReplyPrompt(raw, msg, cls, c.maxBodySize)

	text, err := c.complete(ctx, utils.ResponderSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return utils.ParseReply(text, msg.Language)
}

func (c *OpenAIClient) complete(ctx context.Context, system, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from OpenAI")
	}

	c.logger.Debug("OpenAI completion",
		zap.String("id", resp.ID),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return resp.Choices[0].Message.Content, nil
}
