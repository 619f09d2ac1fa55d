// Package kural owns the Thirukkural verse corpus and the keyword retriever
// the pipeline uses to ground every story in a verse.
package kural

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

//go:embed corpus.json
var embeddedCorpus []byte

// Verse is one Thirukkural couplet with its translations and classification.
type Verse struct {
	ID                 int      `json:"id"`
	Section            string   `json:"section"`
	SectionEnglish     string   `json:"section_english"`
	Chapter            string   `json:"chapter"`
	ChapterEnglish     string   `json:"chapter_english"`
	Tamil              string   `json:"tamil"`
	English            string   `json:"english"`
	ExplanationTamil   string   `json:"explanation_tamil,omitempty"`
	ExplanationEnglish string   `json:"explanation_english,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`
}

type corpusDocument struct {
	Kurals []Verse `json:"kurals"`
}

// LoadCorpus reads the verse corpus from path. When path is empty or the file
// does not exist the embedded starter corpus is used so the service can run
// without external data.
func LoadCorpus(path string) ([]Verse, error) {
	data := embeddedCorpus
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = raw
		case errors.Is(err, os.ErrNotExist):
			// fall back to the embedded corpus
		default:
			return nil, fmt.Errorf("kural: read corpus %s: %w", path, err)
		}
	}

	var doc corpusDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("kural: parse corpus: %w", err)
	}
	if len(doc.Kurals) == 0 {
		return nil, errors.New("kural: corpus contains no verses")
	}
	return doc.Kurals, nil
}
