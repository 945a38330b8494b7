package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModelName = "gemini-1.5-flash-latest"

	analysisSystemInstruction = "You are a document analysis assistant for an ERP document management system. " +
		"Answer strictly from the attached document. " +
		"When asked for JSON, reply with the JSON object only. " +
		"When given a comma-separated list of questions, answer each on its own line, in the same order, prefixed with \"- \"."
)

// GeminiAnalyzer answers the same File + Question contract as the HTTP
// endpoint by sending the file inline to Gemini.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func NewGeminiAnalyzer(ctx context.Context, apiKey string, log *zap.Logger) (*GeminiAnalyzer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiAnalyzer{
		client: client,
		model:  defaultGeminiModelName,
		log:    log.With(zap.String("module", "analysis")),
	}, nil
}

func (a *GeminiAnalyzer) Close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.log.Warn("error closing GenAI client", zap.Error(err))
		}
	}
}

func (a *GeminiAnalyzer) Ask(ctx context.Context, file UploadedFile, question string) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(analysisSystemInstruction)},
	}

	temp := float32(0.1)
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}

	parts := make([]genai.Part, 0, 2)
	if len(file.Data) > 0 {
		mimeType := file.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: file.Data})
	}
	parts = append(parts, genai.Text(question))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini analysis request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			a.log.Debug("gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text.String(), nil
}
