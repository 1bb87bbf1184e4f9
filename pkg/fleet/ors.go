package fleet

import (
	"fmt"
	"strings"
)

// Grade is the overall traffic score of a plan.
type Grade string

const (
	GradeA      Grade = "A"
	GradeB      Grade = "B"
	GradeC      Grade = "C"
	GradeFailed Grade = "Failed"
)

var Grades = []Grade{GradeA, GradeB, GradeC, GradeFailed}

func (g Grade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeFailed:
		return true
	}
	return false
}

func ParseGrade(s string) (Grade, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(GradeFailed)) {
		return GradeFailed, nil
	}
	g := Grade(strings.ToUpper(s))
	if !g.Valid() {
		return "", fmt.Errorf("unknown grade %q", s)
	}
	return g, nil
}

type TextDoc struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

type Document struct {
	TextDoc     []TextDoc `json:"textDoc"`
	Attachments []string  `json:"attachments"`
}

type OrsPlan struct {
	ID                  string     `json:"_id"`
	Vehicle             string     `json:"vehicle"`
	RoadWorthinessScore string     `json:"roadWorthinessScore"`
	OverallTrafficScore Grade      `json:"overallTrafficScore"`
	ActionRequired      string     `json:"actionRequired"`
	Documents           []Document `json:"documents"`
	CreatedAt           string     `json:"createdAt,omitempty"`
	UpdatedAt           string     `json:"updatedAt,omitempty"`
	AssignedTo          *Ref       `json:"assignedTo,omitempty"`
	CreatedBy           *Ref       `json:"createdBy,omitempty"`
}

// Score is the numeric part of RoadWorthinessScore.
func (p OrsPlan) Score() int {
	return ScoreValue(p.RoadWorthinessScore)
}

// OrsPlanInput is the body sent to create a plan.
type OrsPlanInput struct {
	Vehicle             string     `json:"vehicle" validate:"required"`
	RoadWorthinessScore string     `json:"roadWorthinessScore" validate:"required,score"`
	OverallTrafficScore Grade      `json:"overallTrafficScore" validate:"required,grade"`
	ActionRequired      string     `json:"actionRequired"`
	Documents           []Document `json:"documents"`
	AssignedTo          string     `json:"assignedTo,omitempty"`
}

// Normalized returns a copy with a %-suffixed score and a usable document slot.
func (in OrsPlanInput) Normalized() OrsPlanInput {
	in.Vehicle = strings.TrimSpace(in.Vehicle)
	in.RoadWorthinessScore = NormalizeScore(in.RoadWorthinessScore)
	in.Documents = EnsureDocumentSlot(CloneDocuments(in.Documents))
	return in
}

// OrsPlanPatch carries only the fields an edit form touched. Nil fields are
// neither sent nor merged.
type OrsPlanPatch struct {
	Vehicle             *string    `json:"vehicle,omitempty"`
	RoadWorthinessScore *string    `json:"roadWorthinessScore,omitempty" validate:"omitempty,score"`
	OverallTrafficScore *Grade     `json:"overallTrafficScore,omitempty" validate:"omitempty,grade"`
	ActionRequired      *string    `json:"actionRequired,omitempty"`
	Documents           []Document `json:"documents,omitempty"`
}

func (p OrsPlanPatch) IsEmpty() bool {
	return p.Vehicle == nil && p.RoadWorthinessScore == nil && p.OverallTrafficScore == nil &&
		p.ActionRequired == nil && p.Documents == nil
}

func (p OrsPlanPatch) Normalized() OrsPlanPatch {
	if p.RoadWorthinessScore != nil {
		s := NormalizeScore(*p.RoadWorthinessScore)
		p.RoadWorthinessScore = &s
	}
	if p.Documents != nil {
		p.Documents = CloneDocuments(p.Documents)
	}
	return p
}

// ApplyTo merges the set fields into plan. Everything else, including the
// server-populated references, is left as it was.
func (p OrsPlanPatch) ApplyTo(plan *OrsPlan) {
	if p.Vehicle != nil {
		plan.Vehicle = *p.Vehicle
	}
	if p.RoadWorthinessScore != nil {
		plan.RoadWorthinessScore = *p.RoadWorthinessScore
	}
	if p.OverallTrafficScore != nil {
		plan.OverallTrafficScore = *p.OverallTrafficScore
	}
	if p.ActionRequired != nil {
		plan.ActionRequired = *p.ActionRequired
	}
	if p.Documents != nil {
		plan.Documents = CloneDocuments(p.Documents)
	}
}

// Inverse returns the patch that puts back plan's values for the fields p
// sets. Fields p leaves nil stay nil, so undoing one edit never touches a
// field another edit changed.
func (p OrsPlanPatch) Inverse(plan OrsPlan) OrsPlanPatch {
	var inv OrsPlanPatch
	if p.Vehicle != nil {
		inv.Vehicle = &plan.Vehicle
	}
	if p.RoadWorthinessScore != nil {
		inv.RoadWorthinessScore = &plan.RoadWorthinessScore
	}
	if p.OverallTrafficScore != nil {
		inv.OverallTrafficScore = &plan.OverallTrafficScore
	}
	if p.ActionRequired != nil {
		inv.ActionRequired = &plan.ActionRequired
	}
	if p.Documents != nil {
		inv.Documents = CloneDocuments(plan.Documents)
		if inv.Documents == nil {
			inv.Documents = []Document{}
		}
	}
	return inv
}

// ApplyPatch merges p into the plan with the given id and reports whether it was found.
func ApplyPatch(plans []OrsPlan, id string, p OrsPlanPatch) bool {
	for i := range plans {
		if plans[i].ID == id {
			p.ApplyTo(&plans[i])
			return true
		}
	}
	return false
}

func FindPlan(plans []OrsPlan, id string) (OrsPlan, bool) {
	for _, plan := range plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return OrsPlan{}, false
}

func CloneDocuments(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{
			TextDoc:     append([]TextDoc(nil), d.TextDoc...),
			Attachments: append([]string(nil), d.Attachments...),
		}
	}
	return out
}

// EnsureDocumentSlot makes sure docs[0] exists and holds at least one note row.
func EnsureDocumentSlot(docs []Document) []Document {
	if len(docs) == 0 {
		docs = []Document{{}}
	}
	if len(docs[0].TextDoc) == 0 {
		docs[0].TextDoc = []TextDoc{{}}
	}
	if docs[0].Attachments == nil {
		docs[0].Attachments = []string{}
	}
	return docs
}
