package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Long: `Start an interactive chat. Each line is sent as one turn.

Ctrl-C while a reply is streaming stops it and keeps the partial text.
Ctrl-C at the prompt, end of input, or 'exit' ends the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.setup(true)
			if err != nil {
				return err
			}
			defer rt.close()

			sigs := a.interrupts
			if sigs == nil {
				sigs = make(chan os.Signal, 1)
				signal.Notify(sigs, os.Interrupt)
				defer signal.Stop(sigs)
			}

			ctx := cmd.Context()
			done := make(chan struct{})
			defer close(done)
			lines := scanLines(a.in, done)

			conv := a.conversationID()
			prompt := color.New(color.FgBlue, color.Bold)
			dim := color.New(color.FgHiBlack)
			dim.Fprintf(a.errOut, "conversation %s (%s, %s)\n", conv, rt.provider.Provider, rt.provider.Model)

			for {
				prompt.Fprint(a.out, "> ")
				var line string
				select {
				case <-ctx.Done():
					return nil
				case <-sigs:
					fmt.Fprintln(a.out)
					return nil
				case l, ok := <-lines:
					if !ok {
						fmt.Fprintln(a.out)
						return nil
					}
					line = strings.TrimSpace(l)
				}
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}

				s, err := rt.send(ctx, conv, line)
				if err != nil {
					color.New(color.FgRed).Fprintf(a.errOut, "error: %v\n", err)
					continue
				}
				select {
				case <-s.Done():
				case <-sigs:
					s.Cancel()
					<-s.Done()
				}
				fmt.Fprintln(a.out)
			}
		},
	}
}

// scanLines delivers lines from r until EOF or until done is closed.
func scanLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}
