package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/kanban"
	"github.com/spf13/cobra"
)

// newItemsCommand groups the non-interactive board commands.
func newItemsCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List, move, delete and restore board items",
	}
	cmd.AddCommand(
		newItemsListCommand(opts, stdout, stderr),
		newItemsMoveCommand(opts, stdout, stderr),
		newItemsDeleteCommand(opts, stdout, stderr),
		newItemsRestoreCommand(opts, stdout, stderr),
	)
	return cmd
}

func newItemsListCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		board    string
		assignee string
		archived bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one board's items grouped by column",
		Long: `List one board's items in column order.

Examples:
  # Table view of the default board
  lanes items list

  # Overdue work for one assignee, as JSON
  lanes items list --board tasks --assignee ana --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "items list", stderr, false, func(ctx context.Context, rt *runtimeEnv) error {
				kind, err := domain.ParseBoardKind(firstNonEmpty(board, rt.cfg.Board.Default))
				if err != nil {
					return fmt.Errorf("board %q: %w", board, err)
				}
				rows, err := listBoardRows(ctx, rt.svc, domain.ItemFilter{
					Board:           kind,
					Assignee:        strings.TrimSpace(assignee),
					IncludeArchived: archived,
				})
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(rows)
				}
				_, _ = fmt.Fprintln(stdout, renderItemTable(rows, rt.svc.Now()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&board, "board", "", "board to list (tasks, improvements, roadmap)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "only items assigned to this user")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newItemsMoveCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "move <item-id> <column>",
		Short: "Move one item to another column",
		Long: `Move one item to another column, rewriting the fields that place it there.

Moves that need confirmation (for example forcing a task overdue) fail
unless --confirm is passed.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, "items move", stderr, false, func(ctx context.Context, rt *runtimeEnv) error {
				result, err := rt.svc.MoveItem(cliContext(ctx), app.MoveItemInput{
					ItemID:   args[0],
					ToColumn: args[1],
					Confirm:  confirm,
				})
				var confirmErr *app.ConfirmationError
				if errors.As(err, &confirmErr) {
					return fmt.Errorf("%s (rerun with --confirm): %w", confirmErr.Prompt, app.ErrConfirmationRequired)
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(stdout, "moved %q from %s to %s\n", result.Item.Title, result.From, result.To)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "accept moves that need confirmation")
	return cmd
}

func newItemsDeleteCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Archive or hard-delete one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, "items delete", stderr, false, func(ctx context.Context, rt *runtimeEnv) error {
				if err := rt.svc.DeleteItemWithMode(cliContext(ctx), args[0], app.DeleteMode(strings.ToLower(strings.TrimSpace(mode)))); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(stdout, "deleted %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "archive or hard (defaults to delete.default_mode)")
	return cmd
}

func newItemsRestoreCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <item-id>",
		Short: "Restore one archived item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, "items restore", stderr, false, func(ctx context.Context, rt *runtimeEnv) error {
				item, err := rt.svc.RestoreItem(cliContext(ctx), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(stdout, "restored %q\n", item.Title)
				return nil
			})
		},
	}
}

// itemRow is one listed item with its derived column.
type itemRow struct {
	Column string      `json:"column"`
	Item   domain.Item `json:"item"`
}

// listBoardRows returns the filtered items in board column order.
func listBoardRows(ctx context.Context, svc *app.Service, filter domain.ItemFilter) ([]itemRow, error) {
	board, err := kanban.BoardFor(filter.Board)
	if err != nil {
		return nil, err
	}
	items, err := svc.ListItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	byID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	index := kanban.BuildIndex(board, items, svc.Now(), nil, nil)
	rows := make([]itemRow, 0, len(items))
	for _, column := range board.ColumnIDs() {
		for _, id := range index.IDs(column) {
			rows = append(rows, itemRow{Column: column, Item: byID[id]})
		}
	}
	return rows, nil
}

// renderItemTable draws rows as a bordered terminal table.
func renderItemTable(rows []itemRow, now time.Time) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	overdueStyle := cellStyle.Foreground(lipgloss.Color("203"))

	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		due := ""
		if row.Item.DueAt != nil {
			due = row.Item.DueAt.Local().Format("2006-01-02 15:04")
		}
		data = append(data, []string{
			row.Item.ID,
			row.Column,
			row.Item.Title,
			string(row.Item.Status),
			due,
			string(row.Item.Priority),
			row.Item.Assignee,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "COLUMN", "TITLE", "STATUS", "DUE", "PRIORITY", "ASSIGNEE").
		Rows(data...).
		StyleFunc(func(r, c int) lipgloss.Style {
			if r == table.HeaderRow {
				return headerStyle
			}
			if c == 4 && r >= 0 && r < len(rows) {
				if item := rows[r].Item; item.DueAt != nil && !item.IsTerminal() && item.DueAt.Before(now) {
					return overdueStyle
				}
			}
			return cellStyle
		})
	return t.Render()
}
