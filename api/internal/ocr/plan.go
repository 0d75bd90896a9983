package ocr

import "fmt"

// Variant is one preprocessed rendition of the uploaded image, PNG encoded.
type Variant struct {
	Name string
	Data []byte
}

// Attempt is a single OCR call. Either Image or Path is set.
type Attempt struct {
	Variant string
	Image   []byte
	Path    string
	Config  Config
}

// Source labels the attempt in extraction details and logs.
func (a Attempt) Source() string {
	return fmt.Sprintf("%s/%s", a.Variant, a.Config)
}

// Plan lays attempts out variant-major: every config for the first variant,
// then the next variant. The original image (if path is not empty) goes last
// with engine defaults. The order is what the merger treats as priority.
func Plan(variants []Variant, configs []Config, originalPath string) []Attempt {
	out := make([]Attempt, 0, len(variants)*len(configs)+1)
	for _, v := range variants {
		for _, c := range configs {
			out = append(out, Attempt{Variant: v.Name, Image: v.Data, Config: c})
		}
	}
	if originalPath != "" {
		out = append(out, Attempt{Variant: "original", Path: originalPath})
	}
	return out
}
