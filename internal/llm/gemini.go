package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/axion-health/insight-engine/internal/config"
)

const (
	defaultChatModelName      = "gemini-1.5-flash-latest"
	defaultEmbeddingModelName = "text-embedding-004"
)

type GeminiService struct {
	client *genai.Client
}

func NewGeminiService() *GeminiService {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &GeminiService{
		client: client,
	}
}

func (s *GeminiService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

// EmbedDocument embeds journal text for storage. The retrieval-document task
// type matches the query-side embedding space.
func (s *GeminiService) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, genai.TaskTypeRetrievalDocument)
}

// EmbedQuery embeds a search query into the stored-document vector space.
func (s *GeminiService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, genai.TaskTypeRetrievalQuery)
}

func (s *GeminiService) embed(ctx context.Context, text string, taskType genai.TaskType) ([]float32, error) {
	em := s.client.EmbeddingModel(defaultEmbeddingModelName)
	em.TaskType = taskType
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// Complete sends a single-turn generation request with the given system
// instruction and returns the model's text.
func (s *GeminiService) Complete(ctx context.Context, systemInstruction, prompt string) (string, error) {
	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}
	return extractText(resp)
}

// FunctionCall is one tool invocation proposed by the model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// ProposeFunctionCalls asks the model which of the declared functions it
// would call for the given query, without executing anything. History rows
// alternate user/model the way the chat API expects.
func (s *GeminiService) ProposeFunctionCalls(ctx context.Context, systemInstruction, query string, history []*genai.Content, declarations []*genai.FunctionDeclaration) ([]FunctionCall, error) {
	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	model.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(query))
	if err != nil {
		return nil, fmt.Errorf("gemini function-call request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}

	var calls []FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if fc, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, FunctionCall{Name: fc.Name, Args: fc.Args})
		}
	}
	return calls, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response was empty")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text parts")
	}
	return text.String(), nil
}
