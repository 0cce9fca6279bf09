package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"goaltracker/internal/goals"
	"goaltracker/internal/progress"
	"goaltracker/internal/tui"
)

func goalsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List, create and update goals",
	}
	cmd.AddCommand(goalsListCmd(a))
	cmd.AddCommand(goalsShowCmd(a))
	cmd.AddCommand(goalsCreateCmd(a))
	cmd.AddCommand(goalsProgressCmd(a))
	cmd.AddCommand(goalsStatusCmd(a))
	cmd.AddCommand(goalsDeleteCmd(a))
	cmd.AddCommand(goalsDetailCmd(a))
	return cmd
}

func goalsListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your goals, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client.ListGoals(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No goals yet. Create one with `goalctl goals create --title ...`")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPROGRESS")
			for _, g := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d%%\n", g.ID, g.Title, g.Status.Label(), g.Progress)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func goalsShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			g, err := a.client.GetGoal(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), g)
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func goalsCreateCmd(a *app) *cobra.Command {
	var title, description, status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := goals.NewGoal{Title: title, Description: description}
			if status != "" {
				s, err := goals.ParseStatus(status)
				if err != nil {
					return err
				}
				in.Status = s
			}
			g, err := a.client.CreateGoal(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created goal %d\n", g.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "goal title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "goal description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "initial status (not_started, in_progress, completed)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func goalsProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <0-100>",
		Short: "Set a goal's progress; status follows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("progress must be a whole number: %w", goals.ErrValidation)
			}
			return a.submit(cmd, id, func(c *progress.Controller) error {
				c.SubmitProgress(value)
				return nil
			})
		},
	}
}

func goalsStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <not_started|in_progress|completed>",
		Short: "Set a goal's status; progress follows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, err := goals.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return a.submit(cmd, id, func(c *progress.Controller) error {
				return c.SubmitStatus(status)
			})
		},
	}
}

// submit loads the goal into a controller, applies one intent and reports
// the settled pair.
func (a *app) submit(cmd *cobra.Command, id int64, intent func(*progress.Controller) error) error {
	ctrl, err := progress.Load(cmd.Context(), a.client, id, a.controllerOptions()...)
	if err != nil {
		return err
	}
	defer ctrl.Unmount()

	if err := intent(ctrl); err != nil {
		return err
	}
	ctrl.Wait()
	final := ctrl.CurrentValue()
	ctrl.Unmount()

	var failed error
	for ev := range ctrl.Events() {
		if ev.Kind == progress.EventUpdateFailed {
			failed = fmt.Errorf("not saved, goal stays at %s: %w", ev.Pair, ev.Err)
		}
	}
	if failed != nil {
		return failed
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Goal %d: %s\n", id, final)
	return nil
}

func goalsDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctrl, err := progress.Load(cmd.Context(), a.client, id, a.controllerOptions()...)
			if err != nil {
				return err
			}
			defer ctrl.Unmount()

			if !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete goal %d %q?", id, ctrl.Goal().Title))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			if err := ctrl.ConfirmDelete(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted goal %d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func goalsDetailCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "detail <id>",
		Short:       "Open the interactive goal screen",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctrl, err := progress.Load(cmd.Context(), a.client, id, a.controllerOptions()...)
			if err != nil {
				return err
			}

			res, err := tui.Run(cmd.Context(), ctrl, a.cfg.UI.TrackWidth)
			if err != nil {
				return err
			}
			if res.Deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted goal %d\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Goal %d: %s\n", id, res.Final)
			}
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid goal id %q: %w", s, goals.ErrValidation)
	}
	return id, nil
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func printGoal(w io.Writer, g goals.Goal) {
	fmt.Fprintf(w, "#%d %s\n", g.ID, g.Title)
	if g.Description != "" {
		fmt.Fprintf(w, "  %s\n", g.Description)
	}
	fmt.Fprintf(w, "  status:   %s\n", g.Status.Label())
	fmt.Fprintf(w, "  progress: %d%%\n", g.Progress)
	fmt.Fprintf(w, "  created:  %s\n", g.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  updated:  %s\n", g.UpdatedAt.Local().Format("2006-01-02 15:04"))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
