package fleet

import "fmt"

// PlanDraft is the editable form state of a plan. Notes and attachments are
// edited on the active document slot (index 0).
type PlanDraft struct {
	Vehicle             string
	RoadWorthinessScore string
	OverallTrafficScore Grade
	ActionRequired      string
	Documents           []Document
}

func NewPlanDraft() *PlanDraft {
	return &PlanDraft{
		OverallTrafficScore: GradeB,
		Documents:           EnsureDocumentSlot(nil),
	}
}

// DraftFromPlan deep-copies plan so that editing never touches cached data.
func DraftFromPlan(plan OrsPlan) *PlanDraft {
	grade := plan.OverallTrafficScore
	if grade == "" {
		grade = GradeB
	}
	return &PlanDraft{
		Vehicle:             plan.Vehicle,
		RoadWorthinessScore: plan.RoadWorthinessScore,
		OverallTrafficScore: grade,
		ActionRequired:      plan.ActionRequired,
		Documents:           EnsureDocumentSlot(CloneDocuments(plan.Documents)),
	}
}

func (d *PlanDraft) slot() *Document {
	d.Documents = EnsureDocumentSlot(d.Documents)
	return &d.Documents[0]
}

func (d *PlanDraft) Notes() []TextDoc {
	return d.slot().TextDoc
}

func (d *PlanDraft) Attachments() []string {
	return d.slot().Attachments
}

func (d *PlanDraft) AddNote(label, description string) {
	s := d.slot()
	// a fresh slot carries one blank row; fill it before growing
	if len(s.TextDoc) == 1 && s.TextDoc[0] == (TextDoc{}) {
		s.TextDoc[0] = TextDoc{Label: label, Description: description}
		return
	}
	s.TextDoc = append(s.TextDoc, TextDoc{Label: label, Description: description})
}

func (d *PlanDraft) SetNote(index int, label, description string) error {
	s := d.slot()
	if index < 0 || index >= len(s.TextDoc) {
		return fmt.Errorf("note %d out of range", index)
	}
	s.TextDoc[index] = TextDoc{Label: label, Description: description}
	return nil
}

// RemoveNote refuses to remove the last remaining row.
func (d *PlanDraft) RemoveNote(index int) error {
	s := d.slot()
	if index < 0 || index >= len(s.TextDoc) {
		return fmt.Errorf("note %d out of range", index)
	}
	if len(s.TextDoc) == 1 {
		return fmt.Errorf("a plan keeps at least one note")
	}
	s.TextDoc = append(s.TextDoc[:index], s.TextDoc[index+1:]...)
	return nil
}

func (d *PlanDraft) AddAttachment(link string) {
	s := d.slot()
	s.Attachments = append(s.Attachments, link)
}

func (d *PlanDraft) SetAttachment(index int, link string) error {
	s := d.slot()
	if index < 0 || index >= len(s.Attachments) {
		return fmt.Errorf("attachment %d out of range", index)
	}
	s.Attachments[index] = link
	return nil
}

func (d *PlanDraft) RemoveAttachment(index int) error {
	s := d.slot()
	if index < 0 || index >= len(s.Attachments) {
		return fmt.Errorf("attachment %d out of range", index)
	}
	s.Attachments = append(s.Attachments[:index], s.Attachments[index+1:]...)
	return nil
}

// Input builds a normalized create body.
func (d *PlanDraft) Input() OrsPlanInput {
	return OrsPlanInput{
		Vehicle:             d.Vehicle,
		RoadWorthinessScore: d.RoadWorthinessScore,
		OverallTrafficScore: d.OverallTrafficScore,
		ActionRequired:      d.ActionRequired,
		Documents:           d.Documents,
	}.Normalized()
}

// Patch builds a normalized update body carrying every editable field.
// Reference fields are never part of it.
func (d *PlanDraft) Patch() OrsPlanPatch {
	vehicle, score, grade, action := d.Vehicle, d.RoadWorthinessScore, d.OverallTrafficScore, d.ActionRequired
	return OrsPlanPatch{
		Vehicle:             &vehicle,
		RoadWorthinessScore: &score,
		OverallTrafficScore: &grade,
		ActionRequired:      &action,
		Documents:           EnsureDocumentSlot(CloneDocuments(d.Documents)),
	}.Normalized()
}
