package main

import (
	"fmt"

	"github.com/danmuck/domainkit/internal/sessionstore"
	"github.com/spf13/cobra"
)

func newMemoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect persisted session memories",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the memory of the session",
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				mem, err := store.Load(a.cfg.Session)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "session %s: %d entries\n", a.cfg.Session, mem.Len())
				for _, id := range mem.IDs() {
					v, _ := mem.Value(id)
					fmt.Fprintf(out, "  %s %d bits %s\n", id, v.Len(), v.Hex())
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the memory of the session",
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.Delete(a.cfg.Session); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s cleared\n", a.cfg.Session)
				return nil
			},
		},
		&cobra.Command{
			Use:   "sessions",
			Short: "List stored sessions",
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				names, err := store.Sessions()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			},
		},
	)
	return cmd
}

func (a *app) openStore() (*sessionstore.Store, error) {
	if a.cfg.StoreDir == "" {
		return nil, fmt.Errorf("no store: pass --store or set store_dir in the config")
	}
	return sessionstore.Open(a.cfg.StoreDir)
}
