package cmd

import (
	"fmt"
	"strings"

	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/pkg/access"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/spf13/cobra"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List and manage ORS plans",
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the plans visible to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := planFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		client, _, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		plans, err := client.VisiblePlans(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printPlans(cmd.OutOrStdout(), plans)
	},
}

var plansShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, session, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		plan, err := client.GetOrsPlan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(access.VisiblePlans([]fleet.OrsPlan{plan}, session.User)) == 0 {
			return perrors.NewErrForbidden("plan " + plan.ID + " is not assigned to you")
		}
		return printPlan(cmd.OutOrStdout(), plan)
	},
}

var plansCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		draft := fleet.NewPlanDraft()
		draft.Vehicle, _ = cmd.Flags().GetString("vehicle")
		draft.RoadWorthinessScore, _ = cmd.Flags().GetString("score")
		draft.ActionRequired, _ = cmd.Flags().GetString("action")

		if cmd.Flags().Changed("grade") {
			raw, _ := cmd.Flags().GetString("grade")
			grade, err := fleet.ParseGrade(raw)
			if err != nil {
				return perrors.NewErrValidation(err.Error(), nil)
			}
			draft.OverallTrafficScore = grade
		}
		if err := applyDocumentFlags(cmd, draft); err != nil {
			return err
		}

		in := draft.Input()
		in.AssignedTo, _ = cmd.Flags().GetString("assign")

		client, _, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		plan, err := client.CreateOrsPlan(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan)
	},
}

var plansUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a plan; only the given fields change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, documents, err := planPatchFromFlags(cmd)
		if err != nil {
			return err
		}

		client, session, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		current, err := client.GetOrsPlan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if access.CanModify(session.User) && !access.CanEdit(session.User, current) {
			return perrors.NewErrForbidden("ORS plan is not assigned to or created by you")
		}
		if documents {
			draft := fleet.DraftFromPlan(current)
			if err := applyDocumentFlags(cmd, draft); err != nil {
				return err
			}
			patch.Documents = draft.Patch().Documents
		}

		plan, err := client.UpdateOrsPlan(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan)
	},
}

var plansDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a plan (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, cleanup, err := loggedInClient(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := client.DeleteOrsPlan(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func planFilterFromFlags(cmd *cobra.Command) (access.PlanFilter, error) {
	search, _ := cmd.Flags().GetString("search")
	rawGrade, _ := cmd.Flags().GetString("grade")
	rawBand, _ := cmd.Flags().GetString("band")

	band, err := access.ParseScoreBand(rawBand)
	if err != nil {
		return access.PlanFilter{}, perrors.NewErrValidation(err.Error(), nil)
	}

	grade := access.All
	if rawGrade != "" && !strings.EqualFold(rawGrade, access.All) {
		g, err := fleet.ParseGrade(rawGrade)
		if err != nil {
			return access.PlanFilter{}, perrors.NewErrValidation(err.Error(), nil)
		}
		grade = string(g)
	}

	return access.PlanFilter{Search: search, Grade: grade, ScoreBand: band}, nil
}

// planPatchFromFlags builds an update from the flags that were set. The
// document flags need the stored plan, so they are only checked here and
// reported through documents.
func planPatchFromFlags(cmd *cobra.Command) (patch fleet.OrsPlanPatch, documents bool, err error) {
	flags := cmd.Flags()
	if flags.Changed("vehicle") {
		v, _ := flags.GetString("vehicle")
		patch.Vehicle = &v
	}
	if flags.Changed("score") {
		v, _ := flags.GetString("score")
		patch.RoadWorthinessScore = &v
	}
	if flags.Changed("action") {
		v, _ := flags.GetString("action")
		patch.ActionRequired = &v
	}
	if flags.Changed("grade") {
		raw, _ := flags.GetString("grade")
		grade, err := fleet.ParseGrade(raw)
		if err != nil {
			return patch, false, perrors.NewErrValidation(err.Error(), nil)
		}
		patch.OverallTrafficScore = &grade
	}

	documents = flags.Changed("note") || flags.Changed("attachment")
	if documents {
		if err := applyDocumentFlags(cmd, fleet.NewPlanDraft()); err != nil {
			return patch, false, err
		}
	} else if patch.IsEmpty() {
		return patch, false, perrors.NewErrValidation("nothing to update", nil)
	}
	return patch, documents, nil
}

// applyDocumentFlags adds --note label=description and --attachment values
// to the draft's active document.
func applyDocumentFlags(cmd *cobra.Command, draft *fleet.PlanDraft) error {
	notes, _ := cmd.Flags().GetStringArray("note")
	for _, n := range notes {
		label, description, ok := strings.Cut(n, "=")
		if !ok {
			return perrors.NewErrValidation(fmt.Sprintf("note %q must be label=description", n), nil)
		}
		draft.AddNote(strings.TrimSpace(label), strings.TrimSpace(description))
	}

	attachments, _ := cmd.Flags().GetStringArray("attachment")
	for _, a := range attachments {
		draft.AddAttachment(strings.TrimSpace(a))
	}
	return nil
}

func addPlanFieldFlags(cmd *cobra.Command) {
	cmd.Flags().String("vehicle", "", "vehicle identifier")
	cmd.Flags().String("score", "", "road worthiness score, e.g. 78 or 78%")
	cmd.Flags().String("grade", "", "overall traffic score: A, B, C or Failed")
	cmd.Flags().String("action", "", "action required")
	cmd.Flags().StringArray("note", nil, "document note as label=description (repeatable)")
	cmd.Flags().StringArray("attachment", nil, "attachment link (repeatable)")
}

func init() {
	plansListCmd.Flags().String("search", "", "vehicle substring")
	plansListCmd.Flags().String("grade", access.All, "A, B, C, Failed or all")
	plansListCmd.Flags().String("band", access.All, "high, medium, low or all")

	addPlanFieldFlags(plansCreateCmd)
	plansCreateCmd.Flags().String("assign", "", "id of the inspector to assign")

	addPlanFieldFlags(plansUpdateCmd)

	plansCmd.AddCommand(plansListCmd, plansShowCmd, plansCreateCmd, plansUpdateCmd, plansDeleteCmd)
	rootCmd.AddCommand(plansCmd)
}
