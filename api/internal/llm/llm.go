// Package llm asks a generative model to classify a CBC. The model only ever
// sees validated values (or, in image mode, the picture itself) and must
// answer with one JSON object.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cbc-anemia/api/internal/cbc"
	"cbc-anemia/api/internal/util"
)

// Request is a single completion call.
type Request struct {
	System string
	User   string
	Image  []byte
	MIME   string
}

// Engine is a chat model that answers with free text.
type Engine interface {
	Name() string
	GetModel() string
	Complete(ctx context.Context, req Request) (string, error)
}

const (
	ClassAnalysisError = "Analysis Error"
	ClassNotCBC        = "Not a CBC result"
)

// Analysis: ответ модели в том виде, в котором его отдаёт API.
type Analysis struct {
	Classification    Text   `json:"classification"`
	ConfidenceScore   Text   `json:"confidence_score"`
	Explanation       Text   `json:"explanation"`
	HealthRisk        Text   `json:"healthrisk"`
	KeyValuesAnalyzed Text   `json:"key_values_analyzed"`
	RawResponse       string `json:"raw_response,omitempty"`
}

// Failed reports whether the model answer could not be used.
func (a Analysis) Failed() bool { return a.Classification == ClassAnalysisError }

func (a *Analysis) fillDefaults() {
	if a.Classification == "" {
		a.Classification = "Unknown"
	}
	if a.ConfidenceScore == "" {
		a.ConfidenceScore = "0%"
	}
	if a.Explanation == "" {
		a.Explanation = "No explanation provided"
	}
	if a.HealthRisk == "" {
		a.HealthRisk = "Consult a healthcare professional"
	}
}

// ErrorAnalysis wraps an unusable model reply.
func ErrorAnalysis(raw string) Analysis {
	return Analysis{
		Classification:  ClassAnalysisError,
		ConfidenceScore: "0%",
		Explanation:     "Could not parse the AI analysis response.",
		HealthRisk:      "Please consult a healthcare professional for proper CBC interpretation.",
		RawResponse:     raw,
	}
}

// Text accepts any JSON scalar or structure and keeps it as a string:
// models return confidence as 85, "85%" or 0.85 and key_values_analyzed as
// an object about as often as a sentence.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*t = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(v))
	case strings.HasPrefix(s, "{"), strings.HasPrefix(s, "["):
		*t = Text(compact(b))
	default:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*t = Text(strconv.FormatFloat(f, 'f', -1, 64))
			return nil
		}
		*t = Text(s)
	}
	return nil
}

func compact(b []byte) string {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// Parse decodes a model reply. Code fences and chatter around the object
// are tolerated; anything else yields an Analysis Error carrying raw.
func Parse(raw string) (Analysis, error) {
	txt := util.ExtractJSONObject(util.StripCodeFences(raw))
	if strings.TrimSpace(txt) == "" {
		return ErrorAnalysis(raw), errors.New("empty model response")
	}
	var a Analysis
	if err := json.Unmarshal([]byte(txt), &a); err != nil {
		return ErrorAnalysis(raw), fmt.Errorf("bad model JSON: %w", err)
	}
	a.fillDefaults()
	return a, nil
}

// Input for Analyze: Values for the values prompt, or Image for the
// image prompt when Values is empty.
type Input struct {
	Values cbc.ValueMap
	Image  []byte
	MIME   string
}

// Analyze calls the engine once. It never returns an error: transport and
// parse failures become an Analysis Error, the cause goes to the second
// return value for logging.
func Analyze(ctx context.Context, e Engine, p Prompts, in Input) (Analysis, error) {
	req, err := p.Request(in)
	if err != nil {
		return ErrorAnalysis(""), err
	}
	raw, err := e.Complete(ctx, req)
	if err != nil {
		return ErrorAnalysis(err.Error()), fmt.Errorf("%s: %w", e.Name(), err)
	}
	return Parse(raw)
}

// Engines: зарегистрированные модели; nil означает «не настроена».
type Engines struct {
	Gemini   Engine
	OpenAI   Engine
	DeepSeek Engine
}

func (e *Engines) GetEngine(llmName string) (Engine, error) {
	var (
		eng  Engine
		name = strings.ToLower(strings.TrimSpace(llmName))
	)
	switch name {
	case "gemini":
		eng = e.Gemini
	case "gpt", "openai":
		eng = e.OpenAI
	case "deepseek":
		eng = e.DeepSeek
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use 'gemini' | 'gpt' | 'deepseek'", llmName)
	}
	if eng == nil {
		return nil, fmt.Errorf("llm %q is not configured", name)
	}
	return eng, nil
}

// Available lists configured engine names.
func (e *Engines) Available() []string {
	var out []string
	if e.Gemini != nil {
		out = append(out, "gemini")
	}
	if e.OpenAI != nil {
		out = append(out, "gpt")
	}
	if e.DeepSeek != nil {
		out = append(out, "deepseek")
	}
	return out
}
