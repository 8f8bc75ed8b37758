package main

import (
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/fwojciec/relay"
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one prompt and stream the reply",
		Long: `Send one prompt and stream the reply to stdout. Pass --conversation to
continue an existing conversation. Ctrl-C stops the reply; the partial text
is still saved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.setup(true)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			conv := a.conversationID()
			if a.flags.conversation == "" {
				color.New(color.FgHiBlack).Fprintf(a.errOut, "conversation %s\n", conv)
			}

			s, err := rt.send(ctx, conv, strings.Join(args, " "))
			if err != nil {
				return err
			}
			res := s.Wait()
			switch res.Status {
			case relay.StatusCancelled:
				return errInterrupted
			case relay.StatusError:
				return errReplyFailed
			}
			return nil
		},
	}
}
