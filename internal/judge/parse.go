package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// responseSchema builds the strict schema for Response. A fresh value is
// returned each time because marshaling a Definition mutates it.
func responseSchema() *jsonschema.Definition {
	score := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.Number, Description: desc}
	}
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"quality_score":      score("Overall response quality, 1 (poor) to 10 (excellent)."),
			"response_relevance": score("How relevant the response is to the user prompt, 1 to 10."),
			"trigger_accuracy": {
				Type:        jsonschema.String,
				Enum:        []string{string(Correct), string(Incorrect), string(Partial)},
				Description: "Whether the expected component triggered as it should have.",
			},
			"issues": {
				Type:  jsonschema.Array,
				Items: &jsonschema.Definition{Type: jsonschema.String},
			},
			"summary": {Type: jsonschema.String},
			"highlights": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"description": {Type: jsonschema.String},
						"message_id":  {Type: jsonschema.String, Description: "Id of the cited transcript message."},
						"quote":       {Type: jsonschema.String},
					},
					Required:             []string{"description", "message_id", "quote"},
					AdditionalProperties: false,
				},
			},
		},
		Required:             []string{"quality_score", "response_relevance", "trigger_accuracy", "issues", "summary", "highlights"},
		AdditionalProperties: false,
	}
}

// ParseResponse decodes a judge reply. It tolerates markdown code fences,
// surrounding prose and minor JSON damage.
func ParseResponse(content string) (Response, error) {
	body := extractJSON(content)
	if body == "" {
		return Response{}, fmt.Errorf("no JSON object in judge response")
	}

	var resp Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil {
			return Response{}, fmt.Errorf("parsing judge response: %w", err)
		}
		resp = Response{}
		if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
			return Response{}, fmt.Errorf("parsing repaired judge response: %w", err)
		}
	}
	if err := normalize(&resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "```"); i >= 0 {
		fenced := content[i+3:]
		fenced = strings.TrimPrefix(fenced, "json")
		if end := strings.Index(fenced, "```"); end >= 0 {
			fenced = fenced[:end]
		}
		content = strings.TrimSpace(fenced)
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 {
		return ""
	}
	if end < start {
		// Truncated object; let jsonrepair close it.
		return content[start:]
	}
	return content[start : end+1]
}

func normalize(r *Response) error {
	if r.QualityScore < 1 || r.QualityScore > 10 {
		return fmt.Errorf("quality_score %v out of range [1, 10]", r.QualityScore)
	}
	r.TriggerAccuracy = TriggerAccuracy(strings.ToLower(strings.TrimSpace(string(r.TriggerAccuracy))))
	if !r.TriggerAccuracy.Valid() {
		return fmt.Errorf("invalid trigger_accuracy %q", r.TriggerAccuracy)
	}
	switch {
	case r.ResponseRelevance < 1:
		r.ResponseRelevance = 1
	case r.ResponseRelevance > 10:
		r.ResponseRelevance = 10
	}
	if r.Issues == nil {
		r.Issues = []string{}
	}
	return nil
}
