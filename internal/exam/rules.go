package exam

import (
	"math"

	"github.com/prawko/prawko/internal/content"
)

// pointAt returns the positional point value, 1 when the schedule runs out.
func pointAt(schedule []int, i int) int {
	if i < len(schedule) {
		return schedule[i]
	}
	return 1
}

func schedulePoints(schedule []int, count int) int {
	total := 0
	for i := range count {
		total += pointAt(schedule, i)
	}
	return total
}

// ScaleRules shrinks rules to the available question pools. When a pool is
// short its count and point schedule are truncated, maxPoints becomes the
// sum of the truncated schedules, and passThreshold keeps its ratio to
// maxPoints, rounded half away from zero. The second result reports
// whether any scaling happened. The input is never modified.
func ScaleRules(rules content.Rules, basicAvailable, specialistAvailable int) (content.Rules, bool) {
	out := rules.Clone()
	scaled := false

	if basicAvailable < out.BasicQuestions {
		out.BasicQuestions = max(0, basicAvailable)
		if len(out.BasicPoints) > out.BasicQuestions {
			out.BasicPoints = out.BasicPoints[:out.BasicQuestions]
		}
		scaled = true
	}
	if specialistAvailable < out.SpecialistQuestions {
		out.SpecialistQuestions = max(0, specialistAvailable)
		if len(out.SpecialistPoints) > out.SpecialistQuestions {
			out.SpecialistPoints = out.SpecialistPoints[:out.SpecialistQuestions]
		}
		scaled = true
	}
	if !scaled {
		return out, false
	}

	out.TotalQuestions = out.BasicQuestions + out.SpecialistQuestions
	origMax := rules.MaxPoints
	out.MaxPoints = schedulePoints(out.BasicPoints, out.BasicQuestions) +
		schedulePoints(out.SpecialistPoints, out.SpecialistQuestions)

	if origMax > 0 {
		ratio := float64(rules.PassThreshold) * float64(out.MaxPoints) / float64(origMax)
		out.PassThreshold = int(math.Round(ratio))
	} else {
		out.PassThreshold = min(rules.PassThreshold, out.MaxPoints)
	}
	return out, true
}
