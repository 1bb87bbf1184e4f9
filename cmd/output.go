package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/curaious/ors/pkg/access"
	"github.com/curaious/ors/pkg/fleet"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// printJSON writes v indented when --json is set and reports whether it did.
func printJSON(w io.Writer, v any) (bool, error) {
	if !flagJSON {
		return false, nil
	}
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return true, err
	}
	_, err = fmt.Fprintln(w, string(b))
	return true, err
}

func refLabel(r *fleet.Ref) string {
	if s := r.String(); s != "" {
		return s
	}
	return "-"
}

func printPlans(w io.Writer, plans []fleet.OrsPlan) error {
	if done, err := printJSON(w, plans); done {
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tVEHICLE\tSCORE\tGRADE\tASSIGNED TO\tACTION REQUIRED")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Vehicle, p.RoadWorthinessScore, p.OverallTrafficScore, refLabel(p.AssignedTo), p.ActionRequired)
	}
	return tw.Flush()
}

func printPlan(w io.Writer, p fleet.OrsPlan) error {
	if done, err := printJSON(w, p); done {
		return err
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "Vehicle:\t%s\n", p.Vehicle)
	fmt.Fprintf(tw, "Road worthiness:\t%s (%s)\n", p.RoadWorthinessScore, access.ScoreBandOf(p.Score()))
	fmt.Fprintf(tw, "Traffic score:\t%s\n", p.OverallTrafficScore)
	fmt.Fprintf(tw, "Action required:\t%s\n", p.ActionRequired)
	fmt.Fprintf(tw, "Assigned to:\t%s\n", refLabel(p.AssignedTo))
	fmt.Fprintf(tw, "Created by:\t%s\n", refLabel(p.CreatedBy))
	if p.UpdatedAt != "" {
		fmt.Fprintf(tw, "Updated:\t%s\n", p.UpdatedAt)
	}
	for _, doc := range p.Documents {
		for _, note := range doc.TextDoc {
			if note == (fleet.TextDoc{}) {
				continue
			}
			fmt.Fprintf(tw, "Note:\t%s: %s\n", note.Label, note.Description)
		}
		for _, link := range doc.Attachments {
			fmt.Fprintf(tw, "Attachment:\t%s\n", link)
		}
	}
	return tw.Flush()
}

func printUsers(w io.Writer, users []fleet.User) error {
	if done, err := printJSON(w, users); done {
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Role)
	}
	return tw.Flush()
}

func printSession(w io.Writer, s fleet.Session) error {
	if done, err := printJSON(w, s.User); done {
		return err
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "User:\t%s <%s>\n", s.User.Username, s.User.Email)
	fmt.Fprintf(tw, "ID:\t%s\n", s.User.ID)
	fmt.Fprintf(tw, "Role:\t%s\n", s.User.Role)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(tw, "Token expires:\t%s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s access.Summary) error {
	if done, err := printJSON(w, s); done {
		return err
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "Plans:\t%d\n", s.Total)
	fmt.Fprintf(tw, "Average score:\t%d%%\n", s.AverageScore)
	fmt.Fprintf(tw, "Needs action:\t%d\n", s.NeedsAction)
	fmt.Fprintf(tw, "Score bands:\thigh %d, medium %d, low %d\n",
		s.ByBand[access.BandHigh], s.ByBand[access.BandMedium], s.ByBand[access.BandLow])

	grades := make([]string, 0, len(fleet.Grades))
	for _, g := range fleet.Grades {
		grades = append(grades, fmt.Sprintf("%s %d", g, s.ByGrade[g]))
	}
	fmt.Fprintf(tw, "Grades:\t%s\n", strings.Join(grades, ", "))
	return tw.Flush()
}
