// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"
)

// conceptPromptTmpl is the prompt sent to the Claude API for each section
// of the submitted document. It instructs the model to extract typed
// concept units for cross-document comparison.
var conceptPromptTmpl = template.Must(template.New("concepts").Parse(`You are a research novelty analysis system. Analyze the following section of an academic paper and extract its core concepts as typed units suitable for comparison against other papers.

For each unit, identify:
- modality: one of "text-claim", "equation", "figure-description", "methodology-step"
  - text-claim: a contribution claim, finding, or assertion
  - equation: a mathematical expression central to the work
  - figure-description: what a figure or table demonstrates
  - methodology-step: a discrete step of the proposed procedure
- content: the concept text, taken from the paper (preserve exact language, do not paraphrase)
- section: the section heading where the unit appears
- offset: the zero-based position of the unit within its section (0 if unknown)

Extract only concepts that characterize what is novel or essential about the work. Skip background, citations of prior work, and boilerplate.

Respond with a JSON object containing a "units" array. Each element must have all fields listed above. Do not include any text outside the JSON object.

Example response:
{"units": [{"modality": "text-claim", "content": "Our dual encoder improves recall@1 by 4.2 points on COCO.", "section": "Results", "offset": 0}]}

Paper section:
{{.Section}}
`))

// claudeAPIURL is the Claude API endpoint. Package-level var for test
// substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend calls the Claude API to extract concept units from one
// section of the submitted document.
type ClaudeBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExtractConcepts calls the Claude API with the concept prompt for one section.
func (c *ClaudeBackend) ExtractConcepts(ctx context.Context, section string) (AIResponse, error) {
	prompt, err := renderPrompt(section)
	if err != nil {
		return AIResponse{}, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: 4096,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AIResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return AIResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return AIResponse{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return AIResponse{}, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return AIResponse{}, fmt.Errorf("decoding Claude response: %w", err)
	}

	if len(cResp.Content) == 0 {
		return AIResponse{}, fmt.Errorf("Claude API returned empty content")
	}

	var aiResp AIResponse
	for _, block := range cResp.Content {
		if block.Type != "text" {
			continue
		}
		if err := json.Unmarshal([]byte(block.Text), &aiResp); err != nil {
			return AIResponse{}, fmt.Errorf("parsing AI response JSON: %w", err)
		}
		return aiResp, nil
	}

	return AIResponse{}, fmt.Errorf("no text content in Claude API response")
}

// renderPrompt executes the concept prompt template with the given section.
func renderPrompt(section string) (string, error) {
	var buf bytes.Buffer
	if err := conceptPromptTmpl.Execute(&buf, struct{ Section string }{Section: section}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
