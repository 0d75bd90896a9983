package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"cbc-anemia/api/internal/cbc"
	"cbc-anemia/api/internal/logger"
	"cbc-anemia/api/internal/util"
)

// valuesPlaceholder is replaced by the indented JSON of the validated values.
const valuesPlaceholder = "{values}"

const defaultSystem = `You are a hematology assistant. You classify anemia from Complete Blood Count (CBC) data.
You never invent values that were not given to you. Return ONLY the JSON object, nothing else.`

const defaultValues = `Analyze the following CBC (Complete Blood Count) results and classify what type of anemia it is.

Extracted CBC Values:
{values}

Classification Types:
- Macrocytic anemia
- Microcytic anemia
- Normocytic anemia
- Healthy/No anemia
- Inconclusive (insufficient data)

Key parameters for anemia classification:
- Hemoglobin: Low levels indicate anemia
- MCV (Mean Corpuscular Volume): Determines type of anemia
- RBC Count: Red blood cell count
- Hematocrit: Share of blood volume that is red blood cells

Normal ranges (approximate):
- Hemoglobin: 120-160 g/L for women, 140-180 g/L for men
- MCV: 80-100 fL
- RBC Count: 4.5-5.5 x10^12/L for women, 4.7-6.1 x10^12/L for men
- Hematocrit: 0.36-0.44 for women, 0.41-0.50 for men

Important: Hemoglobin and MCHC are in g/L. Hematocrit and the differential count values (Neutrophils, Lymphocytes, etc.) are provided as proportions (0.0-1.0), not percentages.

Analyze the available values and provide:
1. Classification based on the CBC values
2. Confidence score reflecting certainty of analysis
3. Detailed explanation of the classification
4. Health risk assessment and recommendations

Even with limited data, try to provide the best possible classification based on available parameters.

Format your response as a JSON object:
{
    "classification": "Type of anemia or health status",
    "confidence_score": "Confidence score as a percentage",
    "explanation": "Detailed explanation including which values support the classification",
    "healthrisk": "Health risk information and recommendations",
    "key_values_analyzed": "Summary of the CBC values that were used for classification"
}

Return ONLY the JSON object, nothing else.`

const defaultImage = `Analyze the uploaded image and classify what type of anemia it is.
Types of anemia:
- Macrocytic anemia
- Microcytic anemia
- Normocytic anemia
- Health no anemia
- Not a CBC result

Provide a detailed explanation of the classification and any relevant information.
Provide healthrisk information and recommendations for further action or treatment.

If the image is not a CBC result or you cannot identify the type of anemia, return this JSON object:
{
    "classification": "Not a CBC result",
    "confidence_score": "0%",
    "explanation": "The image does not contain a complete blood count (CBC) result.",
    "healthrisk": "No health risk information available."
}

For each identification, provide a confidence score that accurately reflects your certainty:
- 90-100%: Very high confidence with clear visual evidence
- 70-89%: Good confidence with some distinctive features visible
- 50-69%: Moderate confidence with partial or unclear features
- 30-49%: Low confidence, educated guess based on limited visual cues
- Below 30%: Very uncertain, minimal distinguishing features visible

Format your response as a JSON object with the following structure:
{
    "classification": "Type of anemia",
    "confidence_score": "Confidence score as a percentage",
    "explanation": "Detailed explanation of the classification",
    "healthrisk": "Health risk information"
}

Return ONLY the JSON object, nothing else.`

// Prompts for the two analysis modes.
type Prompts struct {
	System string
	Values string
	Image  string
}

func DefaultPrompts() Prompts {
	return Prompts{System: defaultSystem, Values: defaultValues, Image: defaultImage}
}

// LoadPrompts overrides the built-in prompts with anemia.{system,values,image}.txt
// from dir (or $PROMPT_DIR). Missing files keep the defaults.
func LoadPrompts(dir string) Prompts {
	p := DefaultPrompts()
	for tp, dst := range map[string]*string{"system": &p.System, "values": &p.Values, "image": &p.Image} {
		s, err := util.LoadPromptFile(dir, "anemia", tp)
		if err != nil {
			continue
		}
		*dst = s
		logger.Infof("prompt anemia.%s overridden", tp)
	}
	if !strings.Contains(p.Values, valuesPlaceholder) {
		logger.Warnf("values prompt has no %s placeholder, values will be appended", valuesPlaceholder)
	}
	return p
}

// Request builds the completion request for in.
func (p Prompts) Request(in Input) (Request, error) {
	if len(in.Values) > 0 {
		vals, err := valuesJSON(in.Values)
		if err != nil {
			return Request{}, err
		}
		user := p.Values
		if strings.Contains(user, valuesPlaceholder) {
			user = strings.ReplaceAll(user, valuesPlaceholder, vals)
		} else {
			user += "\n\n" + vals
		}
		return Request{System: p.System, User: user}, nil
	}
	if len(in.Image) > 0 {
		return Request{
			System: p.System,
			User:   p.Image,
			Image:  in.Image,
			MIME:   util.PickMIME(in.MIME, "", in.Image),
		}, nil
	}
	return Request{}, errors.New("nothing to analyze: no values and no image")
}

// valuesJSON renders values in canonical priority order; json.Marshal
// would sort keys alphabetically.
func valuesJSON(vals cbc.ValueMap) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	first := true
	for _, k := range cbc.AllKeys() {
		v, ok := vals[k]
		if !ok {
			continue
		}
		name, err := json.Marshal(string(k))
		if err != nil {
			return "", err
		}
		num, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		if !first {
			buf.WriteString(",")
		}
		first = false
		buf.WriteString("\n  ")
		buf.Write(name)
		buf.WriteString(": ")
		buf.Write(num)
	}
	buf.WriteString("\n}")
	return buf.String(), nil
}
