// Package service wires one request through the pipeline: input checks,
// temp file, image variants, OCR, extraction, diagnosis, optional LLM.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cbc-anemia/api/internal/cbc"
	"cbc-anemia/api/internal/diagnosis"
	"cbc-anemia/api/internal/llm"
	"cbc-anemia/api/internal/logger"
	"cbc-anemia/api/internal/ocr"
	"cbc-anemia/api/internal/ocr/preprocess"
	"cbc-anemia/api/internal/store"
	"cbc-anemia/api/internal/util"
)

type Mode string

const (
	ModeRules    Mode = "rules"
	ModeLLM      Mode = "llm"
	ModeLLMImage Mode = "llm_image"
)

// ParseMode: "" means the service default.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeRules, ModeLLM, ModeLLMImage:
		return m, nil
	}
	return "", inputErr(ErrUnknownMode, fmt.Sprintf("%q; use rules | llm | llm_image", s))
}

const (
	notCBCExplanation = "The image does not contain a readable complete blood count (CBC) result or insufficient data could be extracted."
	notCBCHealthRisk  = "No health risk information available."
	extractedTextMax  = 500
	ruleConfidence    = "rule-based"
)

var allowedFormats = map[string]bool{"png": true, "jpeg": true, "gif": true, "bmp": true, "tiff": true}

// Results is the part of the result repository the service writes to.
type Results interface {
	Insert(ctx context.Context, row store.ResultRow) error
}

type Options struct {
	OCR        ocr.Engine
	Workers    int
	Rules      *cbc.Rules
	LLMs       *llm.Engines
	Prompts    llm.Prompts
	DefaultLLM string
	Results    Results
	MaxBytes   int64
	Log        logger.Logger
}

type Service struct {
	runner     *ocr.Runner
	extractor  *cbc.Extractor
	llms       *llm.Engines
	prompts    llm.Prompts
	defaultLLM string
	results    Results
	maxBytes   int64
	log        logger.Logger
}

func New(o Options) (*Service, error) {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	runner, err := ocr.NewRunner(o.OCR, o.Workers)
	if err != nil {
		return nil, err
	}
	if o.Rules == nil {
		o.Rules = cbc.DefaultRules()
	}
	if o.LLMs == nil {
		o.LLMs = &llm.Engines{}
	}
	if o.Prompts.Values == "" {
		o.Prompts = llm.DefaultPrompts()
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 16 << 20
	}
	if o.Log == nil {
		o.Log = logger.Default
	}
	return &Service{
		runner:     runner,
		extractor:  cbc.NewExtractor(o.Rules).WithLogger(o.Log),
		llms:       o.LLMs,
		prompts:    o.Prompts,
		defaultLLM: o.DefaultLLM,
		results:    o.Results,
		maxBytes:   o.MaxBytes,
		log:        o.Log,
	}, nil
}

// Close stops the OCR workers.
func (s *Service) Close() { s.runner.Release() }

func (s *Service) OCREngine() string { return s.runner.Engine().Name() }

// LLMEngines lists configured model names.
func (s *Service) LLMEngines() []string { return s.llms.Available() }

// MaxBytes is the upload limit applied to decoded images.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Request: одно изображение. Image (base64 или data:URL) используется,
// если ImageBytes пуст.
type Request struct {
	Image      string
	ImageBytes []byte
	Mode       Mode
	LLMName    string
	UserID     string
}

// Prediction is the response of /predict_anemia.
type Prediction struct {
	RequestID         string               `json:"request_id"`
	Mode              Mode                 `json:"mode"`
	Classification    string               `json:"classification"`
	ConfidenceScore   string               `json:"confidence_score"`
	Explanation       string               `json:"explanation"`
	HealthRisk        string               `json:"healthrisk"`
	KeyValuesAnalyzed string               `json:"key_values_analyzed,omitempty"`
	ExtractedCBC      cbc.ValueMap         `json:"extracted_cbc_data,omitempty"`
	Diagnosis         *diagnosis.Diagnosis `json:"diagnosis,omitempty"`
	Warnings          []string             `json:"warnings,omitempty"`
	ExtractedText     string               `json:"extracted_text,omitempty"`
	RawResponse       string               `json:"raw_response,omitempty"`
	LLM               string               `json:"llm,omitempty"`
	ResultID          string               `json:"result_id,omitempty"`
}

// Predict never returns an error for expected outcomes: unreadable reports
// and model failures are ordinary predictions. Errors are input errors
// (*InputError) or faults of the temp file.
func (s *Service) Predict(ctx context.Context, req Request) (*Prediction, error) {
	start := time.Now()
	mode, engine, err := s.resolveMode(req)
	if err != nil {
		return nil, err
	}
	img, err := s.decode(req)
	if err != nil {
		return nil, err
	}

	p := &Prediction{RequestID: uuid.NewString(), Mode: mode}
	defer func() {
		s.log.Infof("predict %s: mode=%s llm=%s class=%q values=%d took=%s",
			p.RequestID, p.Mode, p.LLM, p.Classification, len(p.ExtractedCBC), time.Since(start).Round(time.Millisecond))
	}()

	if mode == ModeLLMImage {
		p.LLM = engine.Name()
		s.applyAnalysis(ctx, p, engine, llm.Input{Image: img})
		s.save(ctx, p, req.UserID)
		return p, nil
	}

	ext, err := s.extract(ctx, img)
	if err != nil {
		return nil, err
	}
	p.ExtractedCBC = ext.Values
	p.Warnings = ext.Warnings
	if !ext.Usable {
		p.Classification = llm.ClassNotCBC
		p.ConfidenceScore = "0%"
		p.Explanation = notCBCExplanation
		p.HealthRisk = notCBCHealthRisk
		p.ExtractedText = util.Truncate(ext.RawText, extractedTextMax)
		return p, nil
	}

	d := diagnosis.Classify(ext.Values)
	p.Diagnosis = &d
	if mode == ModeRules {
		applyDiagnosis(p, d)
	} else {
		p.LLM = engine.Name()
		s.applyAnalysis(ctx, p, engine, llm.Input{Values: ext.Values})
	}
	s.save(ctx, p, req.UserID)
	return p, nil
}

func (s *Service) resolveMode(req Request) (Mode, llm.Engine, error) {
	mode := req.Mode
	name := req.LLMName
	if name == "" {
		name = s.defaultLLM
	}
	if mode == "" {
		mode = ModeRules
		if _, err := s.llms.GetEngine(name); err == nil {
			mode = ModeLLM
		}
	}
	switch mode {
	case ModeRules:
		return mode, nil, nil
	case ModeLLM, ModeLLMImage:
		eng, err := s.llms.GetEngine(name)
		if err != nil {
			return "", nil, inputErr(ErrUnknownLLM, err.Error())
		}
		return mode, eng, nil
	}
	return "", nil, inputErr(ErrUnknownMode, string(mode))
}

func (s *Service) applyAnalysis(ctx context.Context, p *Prediction, e llm.Engine, in llm.Input) {
	a, err := llm.Analyze(ctx, e, s.prompts, in)
	if err != nil {
		s.log.Warnf("predict %s: %s analysis failed: %v", p.RequestID, e.Name(), err)
	}
	p.Classification = string(a.Classification)
	p.ConfidenceScore = string(a.ConfidenceScore)
	p.Explanation = string(a.Explanation)
	p.HealthRisk = string(a.HealthRisk)
	p.KeyValuesAnalyzed = string(a.KeyValuesAnalyzed)
	p.RawResponse = a.RawResponse
}

func applyDiagnosis(p *Prediction, d diagnosis.Diagnosis) {
	p.Classification = string(d.Label)
	p.ConfidenceScore = ruleConfidence
	p.Explanation = d.Explanation
	p.HealthRisk = healthRisk(d)
	p.KeyValuesAnalyzed = keyValues(d.ValuesUsed)
}

func healthRisk(d diagnosis.Diagnosis) string {
	switch {
	case d.IsAnemia() && len(d.PossibleCauses) > 0:
		return "Anemia indicators found. Possible causes: " + strings.Join(d.PossibleCauses, ", ") +
			". Please consult a healthcare professional for further tests."
	case d.IsAnemia():
		return "Anemia indicators found. Please consult a healthcare professional for further tests."
	case d.Label == diagnosis.NoAnemia:
		return "No anemia indicators found. Consult a healthcare professional for a complete interpretation."
	}
	return "Consult a healthcare professional"
}

// keyValues: "Hemoglobin=100, MCV=70" in priority order.
func keyValues(vals cbc.ValueMap) string {
	var parts []string
	for _, k := range cbc.AllKeys() {
		if v, ok := vals[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, ", ")
}

func (s *Service) save(ctx context.Context, p *Prediction, userID string) {
	if s.results == nil || p.Classification == llm.ClassAnalysisError {
		return
	}
	row := store.ResultRow{
		ID:             p.RequestID,
		UserID:         userID,
		Classification: p.Classification,
		Confidence:     p.ConfidenceScore,
		Explanation:    p.Explanation,
		HealthRisk:     p.HealthRisk,
		Values:         p.ExtractedCBC,
	}
	if row.Values == nil {
		row.Values = cbc.ValueMap{}
	}
	if err := s.results.Insert(ctx, row); err != nil {
		s.log.Errorf("predict %s: save result: %v", p.RequestID, err)
		return
	}
	p.ResultID = row.ID
}

// decode validates the upload: present, non-empty, within limit and an
// image format the preprocessor can read.
func (s *Service) decode(req Request) ([]byte, error) {
	img := req.ImageBytes
	if img == nil {
		if strings.TrimSpace(req.Image) == "" {
			return nil, inputErr(ErrNoImage, "")
		}
		b, _, err := util.DecodeBase64MaybeDataURL(req.Image)
		if err != nil {
			return nil, inputErr(ErrBadEncoding, err.Error())
		}
		img = b
	}
	if len(img) == 0 {
		return nil, inputErr(ErrEmptyImage, "")
	}
	if int64(len(img)) > s.maxBytes {
		return nil, inputErr(ErrImageTooLarge, fmt.Sprintf("%d bytes, limit %d", len(img), s.maxBytes))
	}
	if f := util.SniffImageFormat(img); !allowedFormats[f] {
		if f == "" {
			f = "unknown"
		}
		return nil, inputErr(ErrUnsupportedFormat, f+"; use png, jpeg, gif, bmp or tiff")
	}
	return img, nil
}

// extract runs every OCR attempt and merges the texts. The temp file lives
// only for this call.
func (s *Service) extract(ctx context.Context, img []byte) (cbc.Extraction, error) {
	decoded, err := preprocess.Decode(img)
	if err != nil {
		return cbc.Extraction{}, inputErr(ErrUnsupportedFormat, err.Error())
	}
	variants, err := preprocess.Variants(decoded)
	if err != nil {
		return cbc.Extraction{}, fmt.Errorf("preprocess: %w", err)
	}

	var texts []cbc.RawText
	ext := "." + util.SniffImageFormat(img)
	err = ocr.WithTempImage(img, ext, func(path string) error {
		plan := ocr.Plan(variants, ocr.ConfigsFor(s.runner.Engine()), path)
		texts = s.runner.Run(ctx, plan)
		s.log.Debugf("ocr %s: %d/%d attempts produced text", s.runner.Engine().Name(), len(texts), len(plan))
		return ctx.Err()
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return cbc.Extraction{}, err
		}
		return cbc.Extraction{}, fmt.Errorf("ocr: %w", err)
	}
	return s.extractor.Extract(texts), nil
}

// OCRResult is the /test_ocr response.
type OCRResult struct {
	Engine     string                                  `json:"ocr_engine"`
	Values     cbc.ValueMap                            `json:"cbc_values"`
	Details    map[cbc.ParameterKey]cbc.ValidatedValue `json:"details"`
	Usable     bool                                    `json:"is_valid_cbc"`
	Resolved   int                                     `json:"values_found"`
	Warnings   []string                                `json:"warnings,omitempty"`
	RawText    string                                  `json:"extracted_text"`
	TextLength int                                     `json:"text_length"`
}

// TestOCR runs extraction only, no diagnosis.
func (s *Service) TestOCR(ctx context.Context, req Request) (*OCRResult, error) {
	img, err := s.decode(req)
	if err != nil {
		return nil, err
	}
	ext, err := s.extract(ctx, img)
	if err != nil {
		return nil, err
	}
	return &OCRResult{
		Engine:     s.runner.Engine().Name(),
		Values:     ext.Values,
		Details:    ext.Details,
		Usable:     ext.Usable,
		Resolved:   len(ext.Values),
		Warnings:   ext.Warnings,
		RawText:    util.Truncate(ext.RawText, 1000),
		TextLength: len(ext.RawText),
	}, nil
}

// ClassifyValues runs the rule classifier over values typed in by hand.
// Unknown names are returned, not rejected.
func (s *Service) ClassifyValues(in map[string]float64) (diagnosis.Diagnosis, []string) {
	vals, unknown := cbc.ValueMapFromNames(in)
	return diagnosis.Classify(vals), unknown
}
