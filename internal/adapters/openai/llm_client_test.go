package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"

	return NewOpenAIClient(openai.NewClientWithConfig(cfg), "gpt-4o-mini", 300, 0.1, 0.9, 4096,
		zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}
}

func TestOpenAIClient_ClassifyMessage(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Content != utils.ClassifierSystemPrompt {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("response format = %+v", req.ResponseFormat)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"label":"PRODUCTIVE","confidence":0.93,"reasoning":"asks for a status update"}`))
	})

	got, err := client.ClassifyMessage(context.Background(), &core.NormalizedMessage{CleanText: "qual o status do chamado", Language: "pt"}, nil)
	if err != nil {
		t.Fatalf("ClassifyMessage() error = %v", err)
	}
	if got.Label != core.LabelProductive || got.Confidence != 0.93 || got.ModelUsed != "gpt-4o-mini" {
		t.Errorf("ClassifyMessage() = %+v", got)
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusInternalServerError)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ID: "chatcmpl-2"})
			},
		},
		{
			name: "unknown label",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(completion(`{"label":"SPAM","confidence":0.9}`))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, tt.handler)
			if _, err := client.ClassifyMessage(context.Background(), &core.NormalizedMessage{}, nil); err == nil {
				t.Error("ClassifyMessage() error = nil")
			}
		})
	}
}

func TestOpenAIClient_SuggestReply(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"subject":"Re: Acesso","body":"Olá, já liberamos o acesso.","tone":"friendly","language":"pt","eta":"2 horas"}`))
	})

	raw := &core.RawMessage{Subject: "Acesso", Body: "Preciso de acesso ao sistema"}
	msg := &core.NormalizedMessage{CleanText: "acesso preciso de acesso ao sistema", Language: "pt"}
	cls := &core.ClassificationResult{Label: core.LabelProductive, Confidence: 0.6}

	got, err := client.SuggestReply(context.Background(), raw, msg, cls)
	if err != nil {
		t.Fatalf("SuggestReply() error = %v", err)
	}
	if got.Subject == nil || *got.Subject != "Re: Acesso" || got.Tone != "friendly" || got.ETA != "2 horas" {
		t.Errorf("SuggestReply() = %+v", got)
	}
}
