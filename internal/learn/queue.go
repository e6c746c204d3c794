package learn

import (
	"time"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/spacedrep"
)

// Band is the review priority of a question, lowest value first.
type Band int

const (
	BandDue Band = iota
	BandIncorrect
	BandUnseen
	BandRest
)

func (b Band) String() string {
	switch b {
	case BandDue:
		return "due"
	case BandIncorrect:
		return "incorrect"
	case BandUnseen:
		return "unseen"
	}
	return "rest"
}

func isIncorrect(q content.Question, last content.Answer) bool {
	return last != "" && last != q.Correct
}

// Classify returns the highest priority band q belongs to.
func Classify(q content.Question, e spacedrep.Entry, now time.Time) Band {
	switch {
	case e.IsDue(now):
		return BandDue
	case isIncorrect(q, e.LastAnswer):
		return BandIncorrect
	case !e.Seen():
		return BandUnseen
	}
	return BandRest
}

// BuildQueue orders questions for review: due, then incorrect, then
// unseen, then the rest. Input order is kept within a band and each
// question id appears once. An empty result falls back to questions.
func BuildQueue(questions []content.Question, entries map[int]spacedrep.Entry, now time.Time) []content.Question {
	var bands [4][]content.Question
	seen := make(map[int]bool, len(questions))
	for _, q := range questions {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		b := Classify(q, entries[q.ID], now)
		bands[b] = append(bands[b], q)
	}

	out := make([]content.Question, 0, len(seen))
	for _, band := range bands {
		out = append(out, band...)
	}
	if len(out) == 0 {
		return questions
	}
	return out
}

// WrongOnly returns the questions whose latest answer is wrong. Answers
// given in the current session override persisted ones.
func WrongOnly(questions []content.Question, entries map[int]spacedrep.Entry, session map[int]content.Answer) []content.Question {
	var out []content.Question
	seen := make(map[int]bool)
	for _, q := range questions {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		last := entries[q.ID].LastAnswer
		if a, ok := session[q.ID]; ok {
			last = a
		}
		if isIncorrect(q, last) {
			out = append(out, q)
		}
	}
	return out
}

// StartPosition picks where a learner resumes in queue. With anything due
// or incorrect the queue head is already the right place; otherwise the
// first unseen question, else the start.
func StartPosition(queue []content.Question, entries map[int]spacedrep.Entry, now time.Time) int {
	firstUnseen := -1
	for i, q := range queue {
		switch Classify(q, entries[q.ID], now) {
		case BandDue, BandIncorrect:
			return 0
		case BandUnseen:
			if firstUnseen < 0 {
				firstUnseen = i
			}
		}
	}
	return max(0, firstUnseen)
}
