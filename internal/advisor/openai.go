package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/archon-io/archon/internal/graph"
)

const defaultModel = "gpt-4o-mini"

const classifySystemPrompt = `You classify one user message about a cloud architecture.
Reply with JSON: {"intent": "<label>"} where <label> is exactly one of
new-feature, modify-graph, generate-code, explain.`

const synthesizeSystemPrompt = `You design serverless architectures as graphs.
Given the current graph and a user request, reply with JSON:
{"nodes": [{"id": "...", "kind": "...", "label": "...", "config": {}}], "edges": [{"source": "...", "target": "..."}]}
containing only the nodes and edges to ADD. Valid kinds:
frontend-delivery, identity, api-gateway, function-compute, nosql-table,
object-storage, queue, event-bus, pub-sub-topic, orchestration-workflow,
content-delivery, data-stream.`

const scoreSystemPrompt = `You review the security posture of a cloud architecture graph.
Reply with JSON: {"score": <integer 0-100>, "findings": ["<one sentence per issue>"]}.`

// OpenAI implements Advisor on the OpenAI chat completion API.
type OpenAI struct {
	client *openai.Client
	model  string
	retry  retryPolicy
}

// NewOpenAI builds an advisor from the environment. It fails when no API
// key is configured; callers treat that as "run without an advisor".
func NewOpenAI() (*OpenAI, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
		slog.Debug("OPENAI_MODEL not set, using default", "model", model)
	}
	slog.Info("initializing openai advisor", "model", model)
	return &OpenAI{client: openai.NewClient(apiKey), model: model, retry: defaultRetryPolicy()}, nil
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, o.retry, func() error {
		var callErr error
		resp, callErr = o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) ClassifyIntent(ctx context.Context, message string) (Intent, error) {
	out, err := o.complete(ctx, classifySystemPrompt, message)
	if err != nil {
		return "", err
	}
	var body struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		return "", fmt.Errorf("parse intent reply: %w", err)
	}
	intent, ok := ParseIntent(body.Intent)
	if !ok {
		return "", fmt.Errorf("unknown intent label %q", body.Intent)
	}
	return intent, nil
}

func (o *OpenAI) ProposeDelta(ctx context.Context, message string, current *graph.Graph) (*graph.Graph, error) {
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode current graph: %w", err)
	}
	var user strings.Builder
	user.WriteString("Current graph:\n")
	user.Write(currentJSON)
	user.WriteString("\n\nRequest:\n")
	user.WriteString(message)

	out, err := o.complete(ctx, synthesizeSystemPrompt, user.String())
	if err != nil {
		return nil, err
	}
	var delta graph.Graph
	if err := json.Unmarshal([]byte(out), &delta); err != nil {
		return nil, fmt.Errorf("parse graph delta: %w", err)
	}
	return &delta, nil
}

func (o *OpenAI) ReviewOpinion(ctx context.Context, g *graph.Graph) (Opinion, error) {
	gJSON, err := json.Marshal(g)
	if err != nil {
		return Opinion{}, fmt.Errorf("encode graph: %w", err)
	}
	out, err := o.complete(ctx, scoreSystemPrompt, string(gJSON))
	if err != nil {
		return Opinion{}, err
	}
	var opinion Opinion
	if err := json.Unmarshal([]byte(out), &opinion); err != nil {
		return Opinion{}, fmt.Errorf("parse review reply: %w", err)
	}
	if opinion.Score < 0 || opinion.Score > 100 {
		return Opinion{}, fmt.Errorf("score %d out of range", opinion.Score)
	}
	return opinion, nil
}
