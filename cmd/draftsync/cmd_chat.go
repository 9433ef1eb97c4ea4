package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/draftsync/internal/conversation"
	"github.com/user/draftsync/internal/debounce"
	"github.com/user/draftsync/internal/exchange"
	"github.com/user/draftsync/internal/quota"
	"github.com/user/draftsync/internal/state"
	"github.com/user/draftsync/internal/types"
)

var (
	chatMode   string
	chatResume string
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatMode, "mode", "chat", "assistant mode (chat, resume, cover-letter)")
	chatCmd.Flags().StringVar(&chatResume, "conversation", "", "resume an existing conversation by id")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive assistant session",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	svc := buildClient(cfg)
	store := state.NewStore(cfg.DataDir)

	tracker := quota.New(store)
	tracker.SetDefaults(cfg.Quota.DefaultLimit, time.Duration(cfg.Quota.SnapshotMaxAgeMinutes)*time.Minute)

	saver := debounce.New(int64(cfg.Save.MaxConcurrent))
	saver.SetRetryDelay(time.Duration(cfg.Save.RetryDelayMS) * time.Millisecond)
	saver.SetOnError(func(key string, err error) {
		slog.Warn("background save failed", "key", key, "error", err)
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	saver.Start(ctx)
	defer saver.Stop()

	convs := conversation.NewManager(svc)

	coord, err := exchange.New(svc, tracker, convs, saver, store, cfg.DisplayName)
	if err != nil {
		return err
	}
	coord.SetSaveDelay(time.Duration(cfg.Save.DelayMS) * time.Millisecond)
	coord.SetUpgradeLink(cfg.Quota.UpgradeLink)
	coord.SetOnAuthExpired(func() {
		if err := store.Reset(); err != nil {
			slog.Warn("failed to clear session cache", "error", err)
		}
		fmt.Println("Your session has expired. Please log in again and update your token.")
	})

	refresher := quota.NewRefresher(tracker, svc, cfg.Quota.RefreshSchedule)
	if err := refresher.Start(); err != nil {
		slog.Warn("quota refresher disabled", "schedule", cfg.Quota.RefreshSchedule, "error", err)
	} else {
		defer refresher.Stop()
	}

	if chatResume != "" {
		if err := coord.Resume(ctx, types.ConversationID(chatResume), chatMode); err != nil {
			return fmt.Errorf("resume conversation: %w", err)
		}
		for _, msg := range coord.Transcript().Messages() {
			printMessage(msg)
		}
	} else {
		coord.Start(chatMode)
	}

	fmt.Println("Type a message and press enter. Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply, err := coord.Send(ctx, line)
		if err != nil {
			switch {
			case errors.Is(err, types.ErrSendInFlight):
				fmt.Println("Still waiting for the previous reply.")
			case errors.Is(err, types.ErrAuthExpired):
				return err
			default:
				fmt.Printf("Message not sent: %v\n", err)
			}
			continue
		}
		printMessage(reply)
	}
	return scanner.Err()
}

func printMessage(msg *types.Message) {
	switch msg.Role {
	case types.RoleUser:
		fmt.Printf("you: %s\n", msg.Content)
	case types.RoleAssistant:
		fmt.Printf("assistant: %s\n", msg.Content)
	default:
		fmt.Printf("[%s]\n", msg.Content)
	}
}
