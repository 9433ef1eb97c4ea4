package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/draftsync/internal/conversation"
	"github.com/user/draftsync/internal/types"
	"github.com/user/draftsync/pkg/backend"
)

var (
	listFilter string
	listLimit  int
	listOffset int
)

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(
		conversationListCmd,
		conversationTitleCmd,
		conversationDeleteCmd,
		conversationRestoreCmd,
		conversationPurgeCmd,
		conversationClearCmd,
	)
	for _, flag := range []backend.Flag{backend.FlagStarred, backend.FlagPinned, backend.FlagArchived} {
		conversationCmd.AddCommand(newFlagCmd(flag))
	}

	conversationListCmd.Flags().StringVar(&listFilter, "filter", "active", "active, archived, deleted, starred, or pinned")
	conversationListCmd.Flags().IntVar(&listLimit, "limit", 20, "page size")
	conversationListCmd.Flags().IntVar(&listOffset, "offset", 0, "page offset")
}

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Manage conversations",
}

func newConversationManager() *conversation.Manager {
	cfg := loadConfig()
	setupLogging(cfg)
	return conversation.NewManager(buildClient(cfg))
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newConversationManager()
		if _, err := m.Refresh(context.Background(), backend.ListFilter(listFilter), listLimit, listOffset); err != nil {
			return err
		}

		list := m.List(backend.ListFilter(listFilter))
		if len(list) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMODE\tMESSAGES\tFLAGS\tUPDATED")
		for _, c := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				c.ID,
				c.Title,
				c.Mode,
				c.MessageCount,
				flagString(c),
				c.UpdatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func flagString(c *types.Conversation) string {
	out := ""
	if c.Pinned {
		out += "P"
	}
	if c.Starred {
		out += "S"
	}
	if c.Archived {
		out += "A"
	}
	if c.Deleted {
		out += "D"
	}
	if out == "" {
		out = "-"
	}
	return out
}

func newFlagCmd(flag backend.Flag) *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <id>", flag),
		Short: fmt.Sprintf("Toggle the %s flag", flag),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newConversationManager()
			return m.SetFlag(context.Background(), types.ConversationID(args[0]), flag, !off)
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "clear the flag instead of setting it")
	return cmd
}

var conversationTitleCmd = &cobra.Command{
	Use:   "title <id> <title>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newConversationManager()
		return m.UpdateTitle(context.Background(), types.ConversationID(args[0]), args[1])
	},
}

var conversationDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Move a conversation to trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newConversationManager()
		return m.SoftDelete(context.Background(), types.ConversationID(args[0]))
	},
}

var conversationRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a conversation from trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newConversationManager()
		return m.Restore(context.Background(), types.ConversationID(args[0]))
	},
}

var conversationPurgeCmd = &cobra.Command{
	Use:   "purge <id>",
	Short: "Permanently delete a conversation (irreversible)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newConversationManager()
		return m.Purge(context.Background(), types.ConversationID(args[0]))
	},
}

var conversationClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Remove all messages from a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		return buildClient(cfg).ClearMessages(context.Background(), types.ConversationID(args[0]))
	},
}
