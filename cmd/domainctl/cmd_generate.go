package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/danmuck/domainkit/internal/definition"
	"github.com/danmuck/domainkit/internal/domain"
	"github.com/danmuck/domainkit/internal/symbol"
	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		count   int
		presets []string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Specialize messages and print them as hex",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			sym, err := a.symbol()
			if err != nil {
				return err
			}
			fixed, err := parsePresets(presets)
			if err != nil {
				return err
			}
			e := a.engine()
			out := cmd.OutOrStdout()
			return a.withSession(func(mem *domain.Memory) error {
				for i := 0; i < count; i++ {
					raw, err := sym.Specialize(cmd.Context(), e, mem, fixed)
					if err != nil {
						return fmt.Errorf("message %d: %w", i, err)
					}
					fmt.Fprintln(out, hex.EncodeToString(raw))
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&count, "count", "n", 1, "number of messages")
	f.StringArrayVar(&presets, "preset", nil, "field=value override, e.g. seq=hex:01 (repeatable)")
	return cmd
}

// parsePresets reads field=value pairs. Literal presets never exhaust, so one
// set serves every generated message.
func parsePresets(raw []string) (symbol.Presets, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(symbol.Presets, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("preset %q: want field=value", kv)
		}
		v, err := definition.ParseValue(value)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		out[name] = domain.Literal(v)
	}
	return out, nil
}
