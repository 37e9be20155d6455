package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentwire/incidentwire/pkg/nlp"
)

// scriptedClient returns a fixed reply or error for every call.
type scriptedClient struct {
	reply    string
	err      error
	blockCtx bool // block until the context expires, then return its error
	lastJSON bool
	messages []nlp.Message
}

func (c *scriptedClient) Chat(ctx context.Context, messages []nlp.Message) (*nlp.Response, error) {
	c.lastJSON = false
	return c.respond(ctx, messages)
}

func (c *scriptedClient) ChatJSON(ctx context.Context, messages []nlp.Message) (*nlp.Response, error) {
	c.lastJSON = true
	return c.respond(ctx, messages)
}

func (c *scriptedClient) respond(ctx context.Context, messages []nlp.Message) (*nlp.Response, error) {
	c.messages = messages
	if c.blockCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	return &nlp.Response{Content: c.reply}, nil
}

func (c *scriptedClient) Close() error { return nil }

func sampleContent() Content {
	return Content{
		SourceName: "wire-a",
		Locator:    "https://a.example/1",
		Title:      "Blast hits market",
		Text:       "A bombing struck a crowded market on 2024-06-15.",
	}
}

func TestExtractWellFormedResponse(t *testing.T) {
	client := &scriptedClient{reply: `{
		"category": "bombing",
		"title": "Market bombing",
		"summary": "A bombing struck a crowded market.",
		"location": "Kabul",
		"occurred_at": "2024-06-15",
		"confidence": 0.85
	}`}

	rec, err := NewLLMExtractor(client).Extract(context.Background(), sampleContent(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "bombing", rec.Category)
	assert.Equal(t, "Market bombing", rec.Title)
	assert.Equal(t, "Kabul", rec.Location)
	require.NotNil(t, rec.OccurredAt)
	assert.Equal(t, time.June, rec.OccurredAt.Month())
	assert.InDelta(t, 0.85, rec.Confidence, 1e-9)

	// Provenance is stamped from the input, not the model.
	assert.Equal(t, "wire-a", rec.Source.SourceName)
	assert.Equal(t, "https://a.example/1", rec.Source.Locator)

	assert.True(t, client.lastJSON, "extraction uses the JSON-constrained call")
}

func TestExtractRepairsDamagedJSON(t *testing.T) {
	// Markdown fences and a trailing comma, the usual model damage.
	client := &scriptedClient{reply: "```json\n" + `{
		"category": "flood",
		"title": "River floods valley",
		"summary": "Heavy rain flooded the valley.",
		"location": "",
		"occurred_at": "",
		"confidence": 0.6,
	}` + "\n```"}

	rec, err := NewLLMExtractor(client).Extract(context.Background(), sampleContent(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "flood", rec.Category)
	assert.Nil(t, rec.OccurredAt)
}

func TestExtractRejectsEmptyRecord(t *testing.T) {
	client := &scriptedClient{reply: `{"category": "", "title": "  ", "summary": "", "confidence": 0.9}`}

	_, err := NewLLMExtractor(client).Extract(context.Background(), sampleContent(), Options{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestExtractDeadlineMapsToErrTimeout(t *testing.T) {
	client := &scriptedClient{blockCtx: true}

	_, err := NewLLMExtractor(client).Extract(context.Background(), sampleContent(), Options{
		Timeout: 20 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestExtractClampsConfidence(t *testing.T) {
	for reply, want := range map[string]float64{
		`{"title": "x", "summary": "y", "confidence": 1.7}`:  1.0,
		`{"title": "x", "summary": "y", "confidence": -0.2}`: 0.0,
	} {
		client := &scriptedClient{reply: reply}
		rec, err := NewLLMExtractor(client).Extract(context.Background(), sampleContent(), Options{})
		require.NoError(t, err)
		assert.InDelta(t, want, rec.Confidence, 1e-9)
	}
}

func TestExtractUnknownTimestampIsNil(t *testing.T) {
	client := &scriptedClient{reply: `{"title": "x", "summary": "y", "occurred_at": "sometime last week", "confidence": 0.5}`}

	rec, err := NewLLMExtractor(client).Extract(context.Background(), sampleContent(), Options{})
	require.NoError(t, err)
	assert.Nil(t, rec.OccurredAt)
}

func TestExtractPromptCarriesTitleAndText(t *testing.T) {
	client := &scriptedClient{reply: `{"title": "x", "summary": "y", "confidence": 0.5}`}

	_, err := NewLLMExtractor(client).Extract(context.Background(), sampleContent(), Options{})
	require.NoError(t, err)

	require.Len(t, client.messages, 2)
	assert.Equal(t, nlp.RoleSystem, client.messages[0].Role)
	assert.Contains(t, client.messages[1].Content, "Blast hits market")
	assert.Contains(t, client.messages[1].Content, "crowded market")
}
