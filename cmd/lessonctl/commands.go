package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/models"
	"lessonlab-backend/internal/session"
	"lessonlab-backend/internal/ui"
)

var errSignIn = errors.New("not signed in; run `lessonctl login` first")

// friendly turns transport errors into something a terminal user can act on.
func friendly(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrNotAuthenticated), errors.Is(err, session.ErrNoSession):
		return errSignIn
	case errors.As(err, &apiErr):
		return fmt.Errorf("%s (%d)", apiErr.Detail, apiErr.Status)
	}
	return err
}

func passwordFlag(cmd *cobra.Command) string {
	pw, _ := cmd.Flags().GetString("password")
	if pw == "" {
		pw = os.Getenv("LESSONLAB_PASSWORD")
	}
	return pw
}

func (a *app) registerCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.api.Register(cmd.Context(), models.RegisterRequest{
				FullName: name, Email: email, Password: passwordFlag(cmd),
			})
			if err != nil {
				return friendly(err)
			}
			fmt.Fprintf(a.out, "Registered %s. Sign in with `lessonctl login --email %s`.\n", user.Email, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().String("password", "", "password (or LESSONLAB_PASSWORD)")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw := passwordFlag(cmd)
			if pw == "" {
				return errors.New("a password is required (--password or LESSONLAB_PASSWORD)")
			}
			user, err := a.auth.SignIn(cmd.Context(), email, pw)
			if err != nil {
				return friendly(err)
			}
			who := email
			if user != nil {
				who = user.Email
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", who)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().String("password", "", "password (or LESSONLAB_PASSWORD)")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.SignOut(cmd.Context()); err != nil {
				fmt.Fprintf(a.out, "Signed out locally; the server did not confirm: %v\n", friendly(err))
				return nil
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.auth.Status()
			if st.Kind != session.Authenticated {
				return errSignIn
			}
			if st.User != nil {
				fmt.Fprintln(a.out, st.User.Email)
			} else {
				fmt.Fprintln(a.out, "signed in")
			}
			return nil
		},
	}
}

func (a *app) generateCmd() *cobra.Command {
	var form ui.Form
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new lesson plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if msg := ui.ValidateForm(form); msg != "" {
				return errors.New(msg)
			}
			lesson, err := a.api.Generate(cmd.Context(), models.GenerateLessonRequest{
				Topic:             strings.TrimSpace(form.Topic),
				Grade:             strings.ToUpper(strings.TrimSpace(form.Grade)),
				Duration:          form.Duration,
				ShowAgentThoughts: form.ShowThoughts,
			})
			if err != nil {
				return friendly(err)
			}
			return a.printLesson(lesson, form.ShowThoughts)
		},
	}
	cmd.Flags().StringVar(&form.Topic, "topic", "", "what the lesson is about")
	cmd.Flags().StringVar(&form.Grade, "grade", "", "K or 1-12")
	cmd.Flags().IntVar(&form.Duration, "duration", 45, "length in minutes")
	cmd.Flags().BoolVar(&form.ShowThoughts, "thoughts", false, "include the generator's reasoning")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your lesson plans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			lessons, err := a.api.List(cmd.Context())
			if err != nil {
				return friendly(err)
			}
			ui.SortNewestFirst(lessons)
			if a.jsonOutput {
				return a.printJSON(lessons)
			}
			if len(lessons) == 0 {
				fmt.Fprintln(a.out, "No lesson plans yet.")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tGRADE\tMINUTES\tCREATED\tRATING")
			for _, l := range lessons {
				s := ui.Summarize(l)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.Title, ui.GradeLabel(s.Grade), s.Duration, s.CreatedAt.Format("2006-01-02"), ratingText(s.Rating))
			}
			return tw.Flush()
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one lesson plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lesson id %q", args[0])
			}
			lesson, err := a.api.Get(cmd.Context(), id)
			if err != nil {
				return friendly(err)
			}
			return a.printLesson(lesson, true)
		},
	}
}

func (a *app) rateCmd() *cobra.Command {
	var helpful, notHelpful bool
	var stars int
	cmd := &cobra.Command{
		Use:   "rate <id>",
		Short: "Rate a lesson plan as helpful or not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lesson id %q", args[0])
			}

			var value bool
			switch {
			case stars != 0:
				if stars < ui.MinStars || stars > ui.MaxStars {
					return fmt.Errorf("--stars must be between %d and %d", ui.MinStars, ui.MaxStars)
				}
				value = ui.StarsToHelpful(stars)
			case helpful != notHelpful:
				value = helpful
			default:
				return errors.New("pass exactly one of --helpful, --not-helpful or --stars")
			}

			ack, err := a.api.Rate(cmd.Context(), id, value)
			if err != nil {
				return friendly(err)
			}
			if a.jsonOutput {
				return a.printJSON(ack)
			}
			fmt.Fprintf(a.out, "%s: %s\n", ack.Message, ratingText(ack.UserRating))
			return nil
		},
	}
	cmd.Flags().BoolVar(&helpful, "helpful", false, "mark as helpful")
	cmd.Flags().BoolVar(&notHelpful, "not-helpful", false, "mark as not helpful")
	cmd.Flags().IntVar(&stars, "stars", 0, "1-5 stars; 3 and up counts as helpful")
	return cmd
}

func (a *app) reviseCmd() *cobra.Command {
	var feedback string
	cmd := &cobra.Command{
		Use:   "revise <id>",
		Short: "Ask for a revision with feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lesson id %q", args[0])
			}
			if strings.TrimSpace(feedback) == "" {
				return errors.New("--feedback is required")
			}
			lesson, err := a.api.Revise(cmd.Context(), id, feedback)
			if err != nil {
				return friendly(err)
			}
			return a.printLesson(lesson, false)
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "what should change")
	return cmd
}

func ratingText(r *bool) string {
	switch {
	case r == nil:
		return "-"
	case *r:
		return "helpful"
	default:
		return "not helpful"
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printLesson prints the latest revision when there is one.
func (a *app) printLesson(l *models.LessonPlan, thoughts bool) error {
	if a.jsonOutput {
		return a.printJSON(l)
	}

	plan := &l.PlanJSON
	if l.RevisedPlanJSON != nil {
		plan = l.RevisedPlanJSON
	}

	w := a.out
	fmt.Fprintf(w, "%s\n%s · %d minutes · id %s\n\n", l.DisplayTitle(), ui.GradeLabel(l.Grade), l.Duration, l.ID)
	fmt.Fprintln(w, "Objectives:")
	for i, o := range plan.Objectives {
		fmt.Fprintf(w, "  %d. %s\n", i+1, o)
	}
	fmt.Fprintf(w, "\nIntroduction: %s\nMain activity: %s\nAssessment: %s\nTiming: %s\n",
		plan.Structure.Introduction, plan.Structure.MainActivity, plan.Structure.Assessment, plan.Structure.Timing)
	if len(plan.Resources) > 0 {
		fmt.Fprintln(w, "\nResources:")
		for _, r := range plan.Resources {
			fmt.Fprintf(w, "  - %s (%s, %.0f%%) %s\n", r.Title, r.Type, r.Score*100, r.URL)
		}
	}
	if thoughts && l.AgentThoughts != nil {
		fmt.Fprintf(w, "\nReasoning:\n  objectives: %s\n  structure: %s\n  resources: %s\n",
			l.AgentThoughts.ObjectivesReasoning, l.AgentThoughts.StructureReasoning, l.AgentThoughts.ResourcesReasoning)
	}
	return nil
}
