package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/danmuck/domainkit/internal/domain"
	"github.com/spf13/cobra"
)

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse HEX...",
		Short: "Abstract hex messages into field values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := a.symbol()
			if err != nil {
				return err
			}
			msgs := make([][]byte, len(args))
			for i, arg := range args {
				b, err := hex.DecodeString(strings.TrimPrefix(strings.ReplaceAll(arg, " ", ""), "0x"))
				if err != nil {
					return fmt.Errorf("message %d: %w", i, err)
				}
				msgs[i] = b
			}
			e := a.engine()
			out := cmd.OutOrStdout()
			// Messages are parsed in order so each sees what the previous ones
			// taught the session.
			return a.withSession(func(mem *domain.Memory) error {
				for i, raw := range msgs {
					fields, err := sym.Abstract(cmd.Context(), e, raw, mem)
					if err != nil {
						return fmt.Errorf("message %d: %w", i, err)
					}
					fmt.Fprintf(out, "%d: %s\n", i, fields)
				}
				return nil
			})
		},
	}
}
