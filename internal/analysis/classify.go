package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ClassificationPrompt is sent with every upload.
const ClassificationPrompt = `Identify what type of document this is. ` +
	`Reply only with a JSON object of the form ` +
	`{"documentType": "<short document type, e.g. Invoice>", "translatedResponse": "<the document content translated to English>"}.`

var ErrUnparseable = errors.New("AI response is not valid JSON")

type Classification struct {
	DocumentType       string `json:"documentType"`
	TranslatedResponse string `json:"translatedResponse"`
}

// ParseClassification reads the JSON object out of a classification reply,
// tolerating markdown fences and surrounding prose.
func ParseClassification(text string) (*Classification, error) {
	var c Classification
	if err := unmarshalAIJSON(text, &c); err != nil {
		return nil, err
	}
	c.DocumentType = strings.TrimSpace(c.DocumentType)
	if c.DocumentType == "" {
		return nil, fmt.Errorf("%w: documentType is empty", ErrUnparseable)
	}
	return &c, nil
}

func unmarshalAIJSON(raw string, out any) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return ErrUnparseable
}
