package analysis

import (
	"strings"

	"github.com/erp-dms/dms-assistant/internal/catalog"
)

// SummaryItem pairs one question with its answer before it is persisted.
type SummaryItem struct {
	Text     string `json:"text"`
	Label    string `json:"label"`
	Question string `json:"question"`
}

// LocalQuestion is a question/answer pair the user lifted out of the chat.
type LocalQuestion struct {
	SummaryItem
	RefKey      string `json:"ref_key"`
	IsMandatory bool   `json:"is_mandatory"`
}

// Key is the de-duplication key shared by summary items and local questions.
func (s SummaryItem) Key() string {
	return NormalizeQuestion(s.Question)
}

func NormalizeQuestion(q string) string {
	return normalize(q)
}

// QuestionSet is the ordered, normalized question list for one category plus
// a lookup from normalized question to its reference key.
type QuestionSet struct {
	Questions []string
	RefKeys   map[string]string
}

func NewQuestionSet(questions []catalog.AIQuestion) QuestionSet {
	set := QuestionSet{
		Questions: make([]string, 0, len(questions)),
		RefKeys:   make(map[string]string, len(questions)),
	}
	for _, q := range questions {
		n := NormalizeQuestion(q.QuestionText)
		if n == "" {
			continue
		}
		set.Questions = append(set.Questions, n)
		if ref := strings.TrimSpace(q.RefKey); ref != "" {
			set.RefKeys[n] = ref
		}
	}
	return set
}

// Prompt is the single request sent for the whole set.
func (s QuestionSet) Prompt() string {
	return strings.Join(s.Questions, ",")
}

// AnswerLines splits a reply into non-blank lines with any leading "- " removed.
func AnswerLines(response string) []string {
	var lines []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, strings.TrimSpace(strings.TrimPrefix(line, "- ")))
	}
	return lines
}

// PairAnswers pairs answer line i with question i. Pairing is positional and
// never content-matched: a short reply truncates the result and surplus lines
// are ignored. missingRefKey is called for every question without a reference
// key, whose label then falls back to the question text.
func (s QuestionSet) PairAnswers(response string, missingRefKey func(question string)) []SummaryItem {
	lines := AnswerLines(response)
	n := min(len(lines), len(s.Questions))

	items := make([]SummaryItem, 0, n)
	for i := 0; i < n; i++ {
		q := s.Questions[i]
		label, ok := s.RefKeys[q]
		if !ok {
			label = q
			if missingRefKey != nil {
				missingRefKey(q)
			}
		}
		items = append(items, SummaryItem{Text: lines[i], Label: label, Question: q})
	}
	return items
}
