package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"venturelab/internal/engine"
)

func ventureCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "venture", Short: "Inspect compiled ventures"}
	cmd.AddCommand(ventureListCmd())
	cmd.AddCommand(ventureShowCmd())
	return cmd
}

func ventureListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List ventures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListVentures(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Domain", "Status", "Idea"})
				for _, v := range items {
					tw.AppendRow(table.Row{v.ID, v.Name, v.Domain, v.Status, v.IdeaID})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func ventureShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a venture with its projects, phases and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tree, err := e.GetVentureTree(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tree)
				}
				fmt.Printf("%s [%s]\n", tree.Name, tree.Status)
				if tree.OneLiner != "" {
					fmt.Println(tree.OneLiner)
				}
				for i, p := range tree.Projects {
					printProjectTree(p, "", i == len(tree.Projects)-1)
				}
				return nil
			})
		},
	}
}

func printProjectTree(p engine.ProjectTree, prefix string, last bool) {
	connector, childPrefix := branch(prefix, last)
	fmt.Printf("%s%s%s [%s]\n", prefix, connector, p.Name, p.Status)
	for i, ph := range p.Phases {
		phConn, taskPrefix := branch(childPrefix, i == len(p.Phases)-1)
		fmt.Printf("%s%s%d. %s\n", childPrefix, phConn, ph.Order, ph.Name)
		for j, t := range ph.Tasks {
			tConn, _ := branch(taskPrefix, j == len(ph.Tasks)-1)
			fmt.Printf("%s%s%s %s [%s]\n", taskPrefix, tConn, t.Priority, t.Title, t.Status)
		}
	}
}

func branch(prefix string, last bool) (string, string) {
	if last {
		return "└── ", prefix + "    "
	}
	return "├── ", prefix + "│   "
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every idea, venture and API key change, newest first.",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var q engine.EventQuery
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				page, err := e.ListEvents(ctx, q)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor"})
				for _, evt := range page.Items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&q.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&q.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&q.EntityKind, "entity-kind", "", "entity kind (idea, venture, api_key)")
	cmd.Flags().StringVar(&q.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&q.Cursor, "cursor", "", "cursor from a previous page")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP server"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyRevokeCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key; the secret is shown once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, secret, err := e.CreateAPIKey(ctx, actor, name, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "actor_id": key.ActorID, "key": secret})
				}
				fmt.Printf("id:    %s\nactor: %s\nkey:   %s\n", key.ID, key.ActorID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "label")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor filter")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RevokeAPIKey(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Printf("revoked %s\n", args[0])
				return nil
			})
		},
	}
}
