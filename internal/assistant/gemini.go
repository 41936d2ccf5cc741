package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// generator is the subset of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements Parser, Responder and Checker on the Gemini API.
type Gemini struct {
	models generator
	model  string
}

// NewGemini creates a client for the Gemini developer API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: create genai client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models generator, model string) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{models: models, model: model}
}

func userContent(text string) *genai.Content {
	return &genai.Content{Role: "user", Parts: []*genai.Part{{Text: text}}}
}

func (g *Gemini) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("assistant: generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func jsonConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}
}

// ParseQuery asks the model for a criteria patch.
func (g *Gemini) ParseQuery(ctx context.Context, query string, periods []string, cfg ledger.CategoryConfig) (ledger.Patch, error) {
	prompt := buildParsePrompt(query, periods, cfg)
	raw, err := g.generate(ctx, []*genai.Content{userContent(prompt)}, jsonConfig())
	if err != nil {
		return ledger.Patch{}, err
	}
	var patch ledger.Patch
	if err := json.Unmarshal([]byte(cleanModelJSON(raw, '{', '}')), &patch); err != nil {
		return ledger.Patch{}, fmt.Errorf("assistant: decode patch: %w", err)
	}
	if _, ok := ledger.ParseCategory(patch.Category); !ok {
		patch.Category = ""
	}
	return patch, nil
}

// Reply answers the conversation grounded on stats.
func (g *Gemini) Reply(ctx context.Context, history []Message, stats ledger.Stats) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: msg.Content}}})
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: buildReplyInstruction(stats)}}},
	}
	return g.generate(ctx, contents, config)
}

type modelIssue struct {
	RowID     string `json:"rowId"`
	VoucherNo string `json:"voucherNo"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

// Check asks the model to flag compliance problems in rows.
func (g *Gemini) Check(ctx context.Context, rows []ledger.Row) ([]Issue, error) {
	raw, err := g.generate(ctx, []*genai.Content{userContent(buildCompliancePrompt(rows))}, jsonConfig())
	if err != nil {
		return nil, err
	}
	var found []modelIssue
	if err := json.Unmarshal([]byte(cleanModelJSON(raw, '[', ']')), &found); err != nil {
		return nil, fmt.Errorf("assistant: decode issues: %w", err)
	}
	issues := make([]Issue, 0, len(found))
	for _, item := range found {
		if strings.TrimSpace(item.Message) == "" {
			continue
		}
		issues = append(issues, Issue{
			ID:        uuid.NewString(),
			RowID:     item.RowID,
			VoucherNo: item.VoucherNo,
			Severity:  normalizeSeverity(item.Severity),
			Message:   strings.TrimSpace(item.Message),
			Source:    SourceModel,
		})
	}
	return issues, nil
}

func normalizeSeverity(value string) string {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
