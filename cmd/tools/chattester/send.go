package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	"github.com/zhouzirui/aura/backend/internal/service/stream"
	"github.com/zhouzirui/aura/backend/internal/transport"
)

var attachNames []string

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send a message and print the streamed answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringSliceVar(&attachNames, "attach", nil, "Attachment file names to include (metadata only)")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	ctrl := stream.NewController(e.store, transport.NewHTTPTransport(e.cfg.Aura.UpstreamURL), e.log)
	for _, name := range attachNames {
		ctrl.AddAttachment(attachmentFor(name))
	}

	flight, err := ctrl.Start(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	state, err := flight.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	conv := e.store.Conversation()
	answer := conv.Messages[len(conv.Messages)-1]

	fmt.Fprintf(out, "conversation %s, state %s\n", conv.ID, state)
	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, b := range answer.Blocks {
		fmt.Fprintln(out, renderBlock(b))
	}
	if len(answer.SuggestedFollowups) > 0 {
		fmt.Fprintln(out, strings.Repeat("─", 60))
		for _, f := range answer.SuggestedFollowups {
			fmt.Fprintf(out, "  → %s\n", f)
		}
	}
	if flight.Err() != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "stream error: %v\n", flight.Err())
	}
	return nil
}

func attachmentFor(name string) chat.Attachment {
	a := chat.Attachment{Name: name}
	if info, err := os.Stat(name); err == nil {
		a.Size = info.Size()
	}
	return a
}

func renderBlock(b chat.ContentBlock) string {
	if b.Type == chat.BlockText {
		var text string
		if err := json.Unmarshal(b.Data, &text); err == nil {
			return text
		}
	}
	header := fmt.Sprintf("[%s]", b.Type)
	if b.Title != "" {
		header += " " + b.Title
	}
	return header + "\n  " + string(b.Data)
}
