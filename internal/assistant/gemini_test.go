package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

type fakeGenerator struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}}},
	}, nil
}

func TestGeminiParseQuery(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"period\":\"2024-03\",\"keyword\":\"差旅\",\"category\":\"Assets\"}\n```"}
	g := newGemini(gen, "")

	patch, err := g.ParseQuery(context.Background(), "三月差旅", []string{"2024-03"}, ledger.CategoryConfig{})
	require.NoError(t, err)
	require.Equal(t, ledger.Patch{Period: "2024-03", Keyword: "差旅"}, patch)
	require.Equal(t, DefaultModelName, gen.model)
	require.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.Contains(t, gen.contents[0].Parts[0].Text, "三月差旅")
}

func TestGeminiParseQueryBadJSON(t *testing.T) {
	g := newGemini(&fakeGenerator{text: "not json"}, "m")
	_, err := g.ParseQuery(context.Background(), "x", nil, ledger.CategoryConfig{})
	require.Error(t, err)
}

func TestGeminiReplyMapsRoles(t *testing.T) {
	gen := &fakeGenerator{text: " total is 100 "}
	g := newGemini(gen, "m")

	reply, err := g.Reply(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}, ledger.Stats{Count: 3, TotalDebit: "100.00"})
	require.NoError(t, err)
	require.Equal(t, "total is 100", reply)
	require.Equal(t, "model", gen.contents[1].Role)
	require.True(t, strings.Contains(gen.config.SystemInstruction.Parts[0].Text, "100.00"))
}

func TestGeminiEmptyResponse(t *testing.T) {
	g := newGemini(&fakeGenerator{text: "  "}, "m")
	_, err := g.Reply(context.Background(), nil, ledger.Stats{})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiGenerateError(t *testing.T) {
	boom := errors.New("quota")
	g := newGemini(&fakeGenerator{err: boom}, "m")
	_, err := g.Check(context.Background(), nil)
	require.ErrorIs(t, err, boom)
}

func TestGeminiCheck(t *testing.T) {
	gen := &fakeGenerator{text: `Here you go: [{"rowId":"1","voucherNo":"V1","severity":"high","message":"round amount"},
{"rowId":"2","severity":"weird","message":"missing memo"},{"rowId":"3","message":"  "}]`}
	g := newGemini(gen, "m")

	issues, err := g.Check(context.Background(), []ledger.Row{{ID: "1", VoucherNo: "V1"}})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	require.Equal(t, SeverityHigh, issues[0].Severity)
	require.Equal(t, SeverityMedium, issues[1].Severity)
	require.Equal(t, SourceModel, issues[0].Source)
	require.NotEmpty(t, issues[0].ID)
}

func TestCleanModelJSON(t *testing.T) {
	require.Equal(t, `{"a":1}`, cleanModelJSON("```json\n{\"a\":1}\n```", '{', '}'))
	require.Equal(t, `[1]`, cleanModelJSON("noise [1] trailing", '[', ']'))
}
