package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"venturelab/internal/domain"
	"venturelab/internal/engine"
)

func ideaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idea",
		Short: "Manage ideas",
		Long:  "Ideas move idea -> researched -> scored -> approved -> compiled. Each stage command runs one step.",
	}
	cmd.AddCommand(ideaCreateCmd())
	cmd.AddCommand(ideaListCmd())
	cmd.AddCommand(ideaShowCmd())
	cmd.AddCommand(ideaResearchCmd())
	cmd.AddCommand(ideaEditResearchCmd())
	cmd.AddCommand(ideaScoreCmd())
	cmd.AddCommand(ideaApproveCmd())
	cmd.AddCommand(ideaCompileCmd())
	cmd.AddCommand(ideaDeleteCmd())
	return cmd
}

func ideaCreateCmd() *cobra.Command {
	var in engine.CreateIdeaInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in.ActorID = actorID()
				it, err := e.CreateIdea(ctx, in)
				if err != nil {
					return err
				}
				return printIdea(it)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "idea name")
	cmd.Flags().StringVar(&in.Description, "description", "", "what the business does")
	cmd.Flags().StringVar(&in.Domain, "domain", "", "saas, media, services, commerce, fintech, health, education, real_estate or other")
	cmd.Flags().StringVar(&in.TargetCustomer, "target-customer", "", "who pays")
	cmd.Flags().StringVar(&in.InitialThoughts, "thoughts", "", "initial thoughts")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func ideaListCmd() *cobra.Command {
	var in engine.ListIdeasInput
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ideas, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				page, err := e.ListIdeas(ctx, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Domain", "Status", "Verdict", "Score"})
				for _, it := range page.Items {
					score := ""
					if it.Score != nil {
						score = fmt.Sprintf("%.2f", it.Score.FinalScore)
					}
					tw.AppendRow(table.Row{it.ID, it.Name, it.Domain, it.Status, deref(it.Verdict), score})
				}
				tw.Render()
				if page.NextCursor != "" {
					fmt.Printf("next: --cursor %s\n", page.NextCursor)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&in.Limit, "limit", 50, "page size")
	cmd.Flags().StringVar(&in.Cursor, "cursor", "", "cursor from a previous page")
	return cmd
}

func ideaShowCmd() *cobra.Command {
	var withResearch bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := e.GetIdea(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(detail)
				}
				if err := printIdea(detail.Idea); err != nil {
					return err
				}
				if withResearch && detail.Research != nil {
					fmt.Printf("\n# %s\n\n%s\n", detail.Research.Title, detail.Research.Body)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withResearch, "research", false, "print the research document")
	return cmd
}

func ideaResearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "research <id>",
		Short: "Run market research for an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.Research(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printIdea(it)
			})
		},
	}
}

func ideaEditResearchCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "edit-research <id>",
		Short: "Replace the research document body",
		Long:  "Reads the new body from --file, or stdin when --file is '-'. Editing invalidates the cached score.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.UpdateResearch(ctx, args[0], string(data), actorID())
				if err != nil {
					return err
				}
				return printIdea(it)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "markdown file with the new research")
	return cmd
}

func ideaScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <id>",
		Short: "Score an idea against the rubric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Score(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if res.Cached {
					fmt.Println("inputs unchanged; returning the stored score")
				}
				return printScore(res.Idea)
			})
		},
	}
}

func ideaApproveCmd() *cobra.Command {
	var in engine.ApproveInput
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Record the approval decision for a scored idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.ID = args[0]
			in.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.Approve(ctx, in)
				if err != nil {
					return err
				}
				return printIdea(it)
			})
		},
	}
	cmd.Flags().StringVar(&in.Decision, "decision", "approved", "approved, parked or killed")
	cmd.Flags().StringVar(&in.Comment, "comment", "", "reason for the decision")
	return cmd
}

func ideaCompileCmd() *cobra.Command {
	var ventureID string
	cmd := &cobra.Command{
		Use:   "compile <id>",
		Short: "Compile an approved idea into a venture plan",
		Long:  "Without --venture-id the compile model designs a new venture. With it, a standard Validate / Build MVP / Launch plan is added to that venture.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Compile(ctx, engine.CompileInput{
					ID:         args[0],
					NewVenture: ventureID == "",
					VentureID:  ventureID,
					ActorID:    actorID(),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("compiled into venture %s: %d project, %d phases, %d tasks\n",
					deref(res.Idea.VentureID), res.Stats.Projects, res.Stats.Phases, res.Stats.Tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ventureID, "venture-id", "", "existing venture to attach the plan to")
	return cmd
}

func ideaDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an idea and its research document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteIdea(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func printIdea(it domain.Idea) error {
	if viper.GetBool("json") {
		return printJSON(it)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendRows([]table.Row{
		{"ID", it.ID},
		{"Name", it.Name},
		{"Domain", it.Domain},
		{"Status", it.Status},
		{"Version", it.Version},
	})
	if it.TargetCustomer != "" {
		tw.AppendRow(table.Row{"Target customer", it.TargetCustomer})
	}
	if it.Score != nil {
		tw.AppendRow(table.Row{"Score", fmt.Sprintf("%.2f (%s)", it.Score.FinalScore, deref(it.Verdict))})
	}
	if it.ApprovalDecision != nil {
		tw.AppendRow(table.Row{"Decision", fmt.Sprintf("%s by %s", *it.ApprovalDecision, deref(it.ApprovedBy))})
	}
	if it.VentureID != nil {
		tw.AppendRow(table.Row{"Venture", *it.VentureID})
	}
	if it.LastError != nil {
		tw.AppendRow(table.Row{"Last error", *it.LastError})
	}
	tw.Render()
	return nil
}

func printScore(it domain.Idea) error {
	if it.Score == nil {
		return printIdea(it)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Dimension", "Score", "Max", "Justification"})
	for _, d := range it.Score.Dimensions {
		label := d.Label
		if d.Inverse {
			label += " (inverse)"
		}
		tw.AppendRow(table.Row{label, d.Score, d.Max, d.Justification})
	}
	tw.AppendFooter(table.Row{"Total", it.Score.RawTotal, "", fmt.Sprintf("x%.2f confidence = %.2f %s",
		it.Score.Confidence, it.Score.FinalScore, deref(it.Verdict))})
	tw.Render()
	if len(it.Score.KillReasons) > 0 {
		fmt.Println("Kill reasons:\n  - " + strings.Join(it.Score.KillReasons, "\n  - "))
	}
	if len(it.Score.NextValidations) > 0 {
		fmt.Println("Next validation steps:\n  - " + strings.Join(it.Score.NextValidations, "\n  - "))
	}
	return nil
}
