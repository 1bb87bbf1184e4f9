package access

import "github.com/curaious/ors/pkg/fleet"

// Summary is the dashboard roll-up over a set of plans.
type Summary struct {
	Total        int                 `json:"total"`
	AverageScore int                 `json:"averageScore"`
	ByBand       map[ScoreBand]int   `json:"byBand"`
	ByGrade      map[fleet.Grade]int `json:"byGrade"`
	NeedsAction  int                 `json:"needsAction"`
}

// Summarize counts plans per score band and grade. NeedsAction counts plans
// that are failed or in the low band.
func Summarize(plans []fleet.OrsPlan) Summary {
	s := Summary{
		Total:   len(plans),
		ByBand:  map[ScoreBand]int{BandHigh: 0, BandMedium: 0, BandLow: 0},
		ByGrade: make(map[fleet.Grade]int, len(fleet.Grades)),
	}
	for _, g := range fleet.Grades {
		s.ByGrade[g] = 0
	}

	sum := 0
	for _, plan := range plans {
		score := plan.Score()
		band := ScoreBandOf(score)
		sum += score
		s.ByBand[band]++
		s.ByGrade[plan.OverallTrafficScore]++
		if band == BandLow || plan.OverallTrafficScore == fleet.GradeFailed {
			s.NeedsAction++
		}
	}
	if len(plans) > 0 {
		s.AverageScore = sum / len(plans)
	}
	return s
}
