package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/echomind/coach-gateway/internal/config"
	"github.com/echomind/coach-gateway/internal/store"
)

func newSessionsCmd(storeCfg *config.StoreConfig) *cobra.Command {
	sessions := &cobra.Command{Use: "sessions", Short: "Query stored sessions"}

	var asJSON bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := store.Open(ctx, storeCfg.StoreDriver, storeCfg.StoreDSN)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.ListSessions(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, records)
			}
			if len(records) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no sessions"))
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderSessionTable(records))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session with its summary and coaching report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSession(cmd.Context(), cmd, storeCfg, args[0], asJSON)
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")

	sessions.AddCommand(listCmd, showCmd)
	return sessions
}

func showSession(ctx context.Context, cmd *cobra.Command, storeCfg *config.StoreConfig, id string, asJSON bool) error {
	s, err := store.Open(ctx, storeCfg.StoreDriver, storeCfg.StoreDSN)
	if err != nil {
		return err
	}
	defer s.Close()

	rec, err := s.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	if asJSON {
		return writeJSON(cmd, rec)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, titleStyle.Render("Session "+rec.SessionID))
	_, _ = fmt.Fprintf(out, "%s %s\n", labelStyle.Render("status"), rec.Status)
	_, _ = fmt.Fprintf(out, "%s %s\n", labelStyle.Render("started"), rec.StartTime.Local().Format("2006-01-02 15:04:05"))
	if rec.EndTime != nil {
		_, _ = fmt.Fprintf(out, "%s %s\n", labelStyle.Render("ended"), rec.EndTime.Local().Format("2006-01-02 15:04:05"))
	}
	if rec.Summary != nil {
		_, _ = fmt.Fprintln(out, renderSummary(*rec.Summary))
	}
	if len(rec.CoachingReport) > 0 {
		report, err := decodeCritique(rec.CoachingReport)
		if err != nil {
			return fmt.Errorf("decode coaching report: %w", err)
		}
		_, _ = fmt.Fprintln(out, renderCritique(report))
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
