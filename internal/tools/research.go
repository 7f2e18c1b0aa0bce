package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	perplexityBaseURL = "https://api.perplexity.ai"
	perplexityModel   = "sonar-pro"

	researchSystemPrompt = "You are a health research assistant. Provide factual, cited information " +
		"from credible medical sources. Include specific citations and be clear about the level of evidence."
)

// ResearchClient answers a health question from real-time web search with
// citations. Perplexity speaks the OpenAI chat wire format but returns its
// sources in a top-level citations array the standard client type does not
// carry, so the request goes out directly and decodes into an extended
// response.
type ResearchClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewResearchClient(apiKey string) *ResearchClient {
	return &ResearchClient{
		apiKey:     apiKey,
		baseURL:    perplexityBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// perplexityResponse is the OpenAI completion payload plus Perplexity's
// citations field.
type perplexityResponse struct {
	openai.ChatCompletionResponse
	Citations []string `json:"citations"`
}

func (r *ResearchClient) Research(ctx context.Context, params ResearchParams) (*ResearchReport, error) {
	if r.apiKey == "" {
		return nil, fmt.Errorf("%w: no research API key configured", ErrResearchUnavailable)
	}

	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model: perplexityModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: researchSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: params.Query},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrResearchUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResearchUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	httpResp, err := r.httpClient.Do(req)
	if err != nil {
		// The gap must surface in the final answer, so this is a typed
		// failure rather than an empty summary.
		return nil, fmt.Errorf("%w: %v", ErrResearchUnavailable, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream returned %s", ErrResearchUnavailable, httpResp.Status)
	}

	var resp perplexityResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrResearchUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrResearchUnavailable)
	}

	content := resp.Choices[0].Message.Content
	citations := citationsFromList(resp.Citations)
	if len(citations) == 0 {
		// Older models cite with bare URLs in the text instead.
		citations = extractCitations(content)
	}
	report := &ResearchReport{
		Query:     params.Query,
		Summary:   content,
		Citations: citations,
	}

	log.Printf("External research complete with %d citations", len(report.Citations))
	return report, nil
}

// citationsFromList maps the structured citations array, deduplicated in
// first-seen order so bracketed indices in the text stay meaningful.
func citationsFromList(urls []string) []Citation {
	seen := make(map[string]bool)
	var citations []Citation
	for _, raw := range urls {
		if raw == "" || seen[raw] {
			continue
		}
		seen[raw] = true
		citations = append(citations, Citation{
			Title: domainTitle(raw),
			URL:   raw,
		})
	}
	return citations
}

var citationPattern = regexp.MustCompile(`https?://[^\s\)\]"'<>]+`)

// extractCitations pulls source URLs out of the completion text, deduplicated
// in first-seen order.
func extractCitations(content string) []Citation {
	seen := make(map[string]bool)
	var citations []Citation
	for _, raw := range citationPattern.FindAllString(content, -1) {
		cleaned := strings.TrimRight(raw, ".,;")
		if seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		citations = append(citations, Citation{
			Title: domainTitle(cleaned),
			URL:   cleaned,
		})
	}
	return citations
}

// domainTitle falls back to the hostname when the source has no title.
func domainTitle(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
