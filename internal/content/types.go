package content

import (
	"encoding/json"
	"strings"
)

// Answer is a recorded or correct answer: T/N for basic questions, A/B/C
// for specialist ones.
type Answer string

const (
	AnswerYes Answer = "T"
	AnswerNo  Answer = "N"
	AnswerA   Answer = "A"
	AnswerB   Answer = "B"
	AnswerC   Answer = "C"
)

// QuestionType distinguishes the two exam pools.
type QuestionType string

const (
	TypeBasic      QuestionType = "basic"
	TypeSpecialist QuestionType = "specialist"
)

// MediaKind is the kind of media attached to a question.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media references a file on the media CDN.
type Media struct {
	ID   string
	Kind MediaKind
}

// Question is read-only question content.
type Question struct {
	ID      int
	Type    QuestionType
	Text    string
	A, B, C string
	Correct Answer
	Media   *Media
}

// Options returns the answers a user may pick for q.
func (q Question) Options() []Answer {
	if q.Type == TypeSpecialist {
		return []Answer{AnswerA, AnswerB, AnswerC}
	}
	return []Answer{AnswerYes, AnswerNo}
}

// OptionText returns the label for a specialist option.
func (q Question) OptionText(a Answer) string {
	switch a {
	case AnswerA:
		return q.A
	case AnswerB:
		return q.B
	case AnswerC:
		return q.C
	}
	return ""
}

// IsCorrect reports whether a matches the correct answer.
func (q Question) IsCorrect(a Answer) bool {
	return a != "" && a == q.Correct
}

type questionJSON struct {
	ID        int          `json:"id"`
	Type      QuestionType `json:"type"`
	Q         string       `json:"q"`
	A         string       `json:"a,omitempty"`
	B         string       `json:"b,omitempty"`
	C         string       `json:"c,omitempty"`
	Correct   Answer       `json:"correct"`
	Media     *string      `json:"media"`
	MediaType *string      `json:"mediaType"`
}

func (q *Question) UnmarshalJSON(b []byte) error {
	var w questionJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*q = Question{
		ID:      w.ID,
		Type:    w.Type,
		Text:    w.Q,
		A:       w.A,
		B:       w.B,
		C:       w.C,
		Correct: Answer(strings.ToUpper(string(w.Correct))),
	}
	if w.Media != nil && *w.Media != "" {
		kind := MediaImage
		if w.MediaType != nil && *w.MediaType == string(MediaVideo) {
			kind = MediaVideo
		}
		q.Media = &Media{ID: *w.Media, Kind: kind}
	}
	return nil
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := questionJSON{ID: q.ID, Type: q.Type, Q: q.Text, A: q.A, B: q.B, C: q.C, Correct: q.Correct}
	if q.Media != nil {
		id, kind := q.Media.ID, string(q.Media.Kind)
		w.Media, w.MediaType = &id, &kind
	}
	return json.Marshal(w)
}

// CategoryData is one category payload.
type CategoryData struct {
	Category  string     `json:"category"`
	Questions []Question `json:"questions"`
}

// Rules are the exam rules for a category.
type Rules struct {
	TotalQuestions        int   `json:"totalQuestions,omitempty"`
	BasicQuestions        int   `json:"basicQuestions"`
	SpecialistQuestions   int   `json:"specialistQuestions"`
	BasicTimeSeconds      int   `json:"basicTimeSeconds"`
	SpecialistTimeSeconds int   `json:"specialistTimeSeconds"`
	TotalTimeSeconds      int   `json:"totalTimeSeconds"`
	BasicPoints           []int `json:"basicPoints"`
	SpecialistPoints      []int `json:"specialistPoints"`
	MaxPoints             int   `json:"maxPoints"`
	PassThreshold         int   `json:"passThreshold"`
}

// DefaultRules returns the standard theory exam: 20 basic and 12
// specialist questions worth 74 points, 68 to pass, 25 minutes.
func DefaultRules() Rules {
	return Rules{
		TotalQuestions:        32,
		BasicQuestions:        20,
		SpecialistQuestions:   12,
		BasicTimeSeconds:      20,
		SpecialistTimeSeconds: 50,
		TotalTimeSeconds:      1500,
		BasicPoints:           []int{3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1},
		SpecialistPoints:      []int{3, 3, 3, 3, 3, 3, 2, 2, 2, 2, 1, 1},
		MaxPoints:             74,
		PassThreshold:         68,
	}
}

// Clone returns a deep copy of r.
func (r Rules) Clone() Rules {
	r.BasicPoints = append([]int(nil), r.BasicPoints...)
	r.SpecialistPoints = append([]int(nil), r.SpecialistPoints...)
	return r
}

// Category describes one entry of meta.json.
type Category struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	QuestionCount   int    `json:"questionCount"`
	BasicCount      int    `json:"basicCount"`
	SpecialistCount int    `json:"specialistCount"`
	Exam            *Rules `json:"exam,omitempty"`
}

// Meta is the top-level content index.
type Meta struct {
	Version    string     `json:"version,omitempty"`
	Categories []Category `json:"categories"`
	Exam       Rules      `json:"exam"`
}

// RulesFor returns a copy of the rules for category, preferring a
// per-category override.
func (m *Meta) RulesFor(category string) Rules {
	for _, c := range m.Categories {
		if c.ID == category && c.Exam != nil {
			return c.Exam.Clone()
		}
	}
	return m.Exam.Clone()
}

// Search filters categories whose id or name contains query, ignoring case.
// An empty query returns all categories.
func Search(categories []Category, query string) []Category {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return categories
	}
	var out []Category
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.ID), query) ||
			strings.Contains(strings.ToLower(c.Name), query) {
			out = append(out, c)
		}
	}
	return out
}
