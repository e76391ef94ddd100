package main

import (
	"fmt"
	"strconv"
	"strings"

	"management/backend/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func parseMessageID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid message id %q", arg)
	}
	return uint(id), nil
}

func newMessagesCmd(opts *rootOptions) *cobra.Command {
	messagesCmd := &cobra.Command{
		Use:   "messages",
		Short: "Inspect and remove chat messages",
	}

	threadCmd := &cobra.Command{
		Use:   "thread <message_id>",
		Short: "Print a message and all of its replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMessageID(args[0])
			if err != nil {
				return err
			}
			s, closeDB, err := opts.store(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			thread, err := s.ListThread(cmd.Context(), id)
			if err != nil {
				return err
			}
			printThread(cmd, thread)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <message_id>",
		Short: "Delete a message together with every reply below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMessageID(args[0])
			if err != nil {
				return err
			}
			s, closeDB, err := opts.store(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			removed, err := s.DeleteMessage(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s message(s).\n", humanize.Comma(removed))
			return nil
		},
	}

	messagesCmd.AddCommand(threadCmd, deleteCmd)
	return messagesCmd
}

// printThread prints a thread returned root first as an indented reply tree.
func printThread(cmd *cobra.Command, thread []models.GroupMessage) {
	if len(thread) == 0 {
		return
	}
	children := make(map[uint][]models.GroupMessage)
	for _, m := range thread[1:] {
		if m.ParentID != nil {
			children[*m.ParentID] = append(children[*m.ParentID], m)
		}
	}

	var walk func(m models.GroupMessage, depth int)
	walk = func(m models.GroupMessage, depth int) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s#%d %s (%s): %s\n",
			strings.Repeat("  ", depth), m.ID, m.AuthorID, humanize.Time(m.CreatedAt), m.Body)
		for _, c := range children[m.ID] {
			walk(c, depth+1)
		}
	}
	walk(thread[0], 0)
}
