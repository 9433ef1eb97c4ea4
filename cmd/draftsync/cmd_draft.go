package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/draftsync/internal/debounce"
	"github.com/user/draftsync/internal/draft"
)

func init() {
	rootCmd.AddCommand(draftCmd)
}

var draftCmd = &cobra.Command{
	Use:   "draft <document-id>",
	Short: "Stream draft edits to the server with debounced autosave",
	Long:  "Reads lines from stdin as edits to the document body. Each edit arms the autosave timer; bursts of edits collapse into a single save of the latest body. Ctrl-D saves the final state and exits.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraft,
}

func runDraft(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	documentID := args[0]
	svc := buildClient(cfg)

	saver := debounce.New(int64(cfg.Save.MaxConcurrent))
	saver.SetRetryDelay(time.Duration(cfg.Save.RetryDelayMS) * time.Millisecond)
	saver.SetOnError(func(key string, err error) {
		slog.Warn("draft autosave failed", "key", key, "error", err)
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	saver.Start(ctx)
	defer saver.Stop()

	auto := draft.NewAutoSaver(svc, saver, time.Duration(cfg.Save.DelayMS)*time.Millisecond)

	fmt.Println("Type lines to append to the draft. Ctrl-D to save and quit.")
	var body strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteByte('\n')
		auto.Update(documentID, []byte(body.String()))
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Stop discards any armed timer, so flush the final body directly.
	auto.Discard(documentID)
	if body.Len() > 0 {
		if err := svc.SaveDraft(ctx, documentID, []byte(body.String())); err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
		fmt.Println("Draft saved.")
	}
	return nil
}
