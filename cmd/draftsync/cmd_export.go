package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/draftsync/internal/export"
	"github.com/user/draftsync/internal/types"
)

var (
	exportFormat string
	exportOut    string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "md", "output format: json, md, yaml")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
}

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Export a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		svc := buildClient(cfg)

		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		ctx := context.Background()
		id := types.ConversationID(args[0])

		msgs, err := svc.Messages(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}

		conv := &types.Conversation{ID: id}
		if list, err := svc.ListConversations(ctx, "", 0, 0); err == nil {
			for _, c := range list {
				if c.ID == id {
					conv = c
					break
				}
			}
		}

		w := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		return exporter.Export(&export.Document{Conversation: conv, Messages: msgs}, w)
	},
}
