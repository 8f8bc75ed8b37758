package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print a stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.conversation == "" {
				return errors.New("--conversation is required")
			}
			rt, err := a.setup(false)
			if err != nil {
				return err
			}
			defer rt.close()

			msgs, err := rt.store.List(cmd.Context(), a.flags.conversation)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				rt.view.PrintMessage(m)
			}
			return nil
		},
	}
}
