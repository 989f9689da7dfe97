// Package scoring rates leads for outreach with a language model.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/workflow"
)

// Result is one scorer verdict. Score and Confidence are in [0, 1].
type Result struct {
	Score          float64               `json:"score"`
	Recommendation domain.Recommendation `json:"recommendation"`
	Reasoning      string                `json:"reasoning"`
	Confidence     float64               `json:"confidence"`
}

// Neutral is substituted when a scorer fails.
var Neutral = Result{
	Score:          0.5,
	Recommendation: domain.RecommendReview,
	Reasoning:      "automatic scoring unavailable; review manually",
	Confidence:     0,
}

func (r Result) asScore() workflow.Score {
	return workflow.Score{Score: r.Score, Recommendation: r.Recommendation, Analysis: r.Reasoning}
}

type Scorer interface {
	Score(ctx context.Context, l domain.Lead) (Result, error)
}

const resultSchema = `{
  "type": "object",
  "required": ["score", "recommendation", "reasoning"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 1},
    "recommendation": {"type": "string", "enum": ["approve", "reject", "review"]},
    "reasoning": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(resultSchema)

// SchemaError lists every field the model got wrong.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "scoring output invalid: " + strings.Join(e.Problems, "; ")
}

// ParseResult validates raw model output against the result schema.
func ParseResult(raw string) (Result, error) {
	text := cleanJSONBlock(raw)
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(text))
	if err != nil {
		return Result{}, fmt.Errorf("scoring output not json: %w", err)
	}
	if !res.Valid() {
		se := &SchemaError{}
		for _, d := range res.Errors() {
			se.Problems = append(se.Problems, d.Field()+": "+d.Description())
		}
		return Result{}, se
	}

	var out Result
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Result{}, err
	}
	return out, nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Prompt describes l for the model. now anchors the activity age.
func Prompt(l domain.Lead, now time.Time) string {
	var b strings.Builder
	b.WriteString("You qualify open-source maintainers as outreach leads for workflow automation consulting.\n")
	b.WriteString("Rate how promising this lead is and answer with a JSON object:\n")
	b.WriteString(`{"score": 0..1, "recommendation": "approve"|"reject"|"review", "reasoning": "...", "confidence": 0..1}`)
	b.WriteString("\n\nLead:\n")
	fmt.Fprintf(&b, "- owner: %s\n", l.OwnerHandle)
	fmt.Fprintf(&b, "- project: %s\n", l.ProjectName)
	fmt.Fprintf(&b, "- url: %s\n", l.ProjectURL)
	if l.ProjectDescription != "" {
		fmt.Fprintf(&b, "- description: %s\n", l.ProjectDescription)
	}
	if !l.LastActivity.IsZero() {
		days := int(now.Sub(l.LastActivity).Hours() / 24)
		fmt.Fprintf(&b, "- last activity: %s (%d days ago)\n", l.LastActivity.Format("2006-01-02"), days)
	}
	if at := strings.LastIndexByte(l.Email, '@'); at >= 0 {
		fmt.Fprintf(&b, "- email domain: %s\n", l.Email[at+1:])
	}
	return b.String()
}
