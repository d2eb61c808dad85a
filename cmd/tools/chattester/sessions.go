package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived sessions, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tCREATED\tACTIVE")
		for _, s := range e.store.Sessions() {
			active := ""
			if s.Active {
				active = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Title, s.MessageCount, s.CreatedAt.Format("2006-01-02 15:04"), active)
		}
		return w.Flush()
	},
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Archive the current conversation and start an empty one",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.NewConversation(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "started conversation %s\n", e.store.Conversation().ID)
		return nil
	},
}
