package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
	"dealflow-ingest/services"
)

const defaultModel = "gemini-2.0-flash"

// generateFunc sends one prompt and returns the model's text answer.
type generateFunc func(ctx context.Context, system, prompt string) (string, error)

// GeminiResolver asks a Gemini model to map CSV headers onto a schema.
type GeminiResolver struct {
	model    string
	generate generateFunc
}

// NewGeminiResolver creates a resolver backed by the Gemini API.
func NewGeminiResolver(ctx context.Context, apiKey, model string) (*GeminiResolver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("assist: Gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("assist: create GenAI client: %w", err)
	}

	g := &GeminiResolver{model: model}
	g.generate = func(ctx context.Context, system, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0),
		})
		if err != nil {
			return "", fmt.Errorf("GenAI generate failed: %w", err)
		}
		return resp.Text(), nil
	}
	return g, nil
}

// Name returns the resolver name.
func (g *GeminiResolver) Name() string {
	return "gemini:" + g.model
}

// Resolve implements services.AssistedResolver.
func (g *GeminiResolver) Resolve(ctx context.Context, req services.AssistRequest) (*models.MappingResult, error) {
	def, err := schema.Lookup(string(req.Schema))
	if err != nil {
		return nil, err
	}
	prompt, err := buildPrompt(def, req)
	if err != nil {
		return nil, err
	}
	text, err := g.generate(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}
	return parseResponse(def.ID, text)
}

const systemInstruction = `You map spreadsheet columns onto a database table for a business-acquisition CRM.
Answer with JSON only, shaped as:
{"mappings":[{"sourceColumn":"...","targetField":"...","confidence":0-100,"dataType":"text|integer|currency|percentage|boolean|image|array|json|date|timestamp"}],
 "unmappedColumns":["..."],"suggestions":["..."]}
Use sourceColumn exactly as given. Only use targetField values from the provided field list.
Leave a column unmapped rather than guessing.`

type promptField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type promptPayload struct {
	Table      string              `json:"table"`
	Fields     []promptField       `json:"fields"`
	Headers    []string            `json:"headers"`
	SampleRows []map[string]string `json:"sampleRows"`
}

func buildPrompt(def *schema.Definition, req services.AssistRequest) (string, error) {
	payload := promptPayload{Table: def.Table, Headers: req.Headers}
	for _, f := range def.Columns() {
		if f == schema.FieldCreatedAt || f == schema.FieldUpdatedAt {
			continue
		}
		k, _ := def.Kind(f)
		payload.Fields = append(payload.Fields, promptField{Name: string(f), Type: k.String()})
	}
	for _, row := range req.SampleRows {
		payload.SampleRows = append(payload.SampleRows, row.Map())
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("assist: encode prompt: %w", err)
	}
	return "Map these columns:\n" + string(b), nil
}

type responseMapping struct {
	SourceColumn string `json:"sourceColumn"`
	TargetField  string `json:"targetField"`
	Confidence   int    `json:"confidence"`
	DataType     string `json:"dataType"`
}

type responsePayload struct {
	Mappings        []responseMapping `json:"mappings"`
	UnmappedColumns []string          `json:"unmappedColumns"`
	Suggestions     []string          `json:"suggestions"`
}

// parseResponse decodes the model's JSON, tolerating a Markdown code fence.
// Entries without a source or target are skipped; schema checks happen in
// the resolver.
func parseResponse(id schema.ID, text string) (*models.MappingResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var payload responsePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil {
		return nil, fmt.Errorf("assist: decode model response: %w", err)
	}

	result := &models.MappingResult{
		Schema:          id,
		UnmappedColumns: payload.UnmappedColumns,
		Suggestions:     payload.Suggestions,
	}
	for _, m := range payload.Mappings {
		if m.SourceColumn == "" || m.TargetField == "" {
			continue
		}
		dataType := strings.ToLower(strings.TrimSpace(m.DataType))
		if dataType == "text" {
			dataType = ""
		}
		result.Mappings = append(result.Mappings, models.ColumnMapping{
			SourceColumn:       m.SourceColumn,
			TargetField:        schema.Field(strings.TrimSpace(m.TargetField)),
			Confidence:         m.Confidence,
			TransformationType: dataType,
			Origin:             models.OriginAssisted,
		})
	}
	return result, nil
}
