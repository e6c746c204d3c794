package exam

import (
	"math/rand/v2"

	"github.com/prawko/prawko/internal/content"
)

// Item is one question of a running exam. It is mutated once, when the
// question is locked by an answer or a timeout.
type Item struct {
	Question  content.Question
	Points    int
	Given     content.Answer
	IsCorrect bool
	Locked    bool
	TimedOut  bool
}

// shuffle returns a Fisher-Yates shuffled copy of qs.
func shuffle(qs []content.Question, rng *rand.Rand) []content.Question {
	out := append([]content.Question(nil), qs...)
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Build draws an exam from questions: each pool is shuffled independently,
// a prefix of the required length taken, and basic items placed before
// specialist ones. Rules are scaled down when a pool is short.
func Build(questions []content.Question, rules content.Rules, rng *rand.Rand) ([]*Item, content.Rules, bool) {
	var basic, specialist []content.Question
	for _, q := range questions {
		if q.Type == content.TypeSpecialist {
			specialist = append(specialist, q)
		} else {
			basic = append(basic, q)
		}
	}

	effective, scaled := ScaleRules(rules, len(basic), len(specialist))

	basic = shuffle(basic, rng)[:effective.BasicQuestions]
	specialist = shuffle(specialist, rng)[:effective.SpecialistQuestions]

	items := make([]*Item, 0, len(basic)+len(specialist))
	for i, q := range basic {
		items = append(items, &Item{Question: q, Points: pointAt(effective.BasicPoints, i)})
	}
	for i, q := range specialist {
		items = append(items, &Item{Question: q, Points: pointAt(effective.SpecialistPoints, i)})
	}
	return items, effective, scaled
}
