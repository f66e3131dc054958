package main

import (
	"fmt"

	"github.com/danmuck/domainkit/internal/config"
	"github.com/danmuck/domainkit/internal/definition"
	"github.com/danmuck/domainkit/internal/domain"
	"github.com/danmuck/domainkit/internal/logging"
	"github.com/danmuck/domainkit/internal/observability"
	"github.com/danmuck/domainkit/internal/sessionstore"
	"github.com/danmuck/domainkit/internal/symbol"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	config     string
	engine     string
	definition string
	session    string
	store      string
}

// app carries the resolved configuration between the root and its commands.
type app struct {
	flags rootFlags
	cfg   config.CLI
	log   zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultCLI(), log: logging.New("domainctl")}
	root := &cobra.Command{
		Use:           "domainctl",
		Short:         "Generate and parse messages described by a field definition",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.flags.config, "config", "", "domainctl TOML config")
	f.StringVar(&a.flags.engine, "engine", "", "engine TOML config, overrides the [engine] table")
	f.StringVar(&a.flags.definition, "def", "", "symbol definition (.yaml, .yml or .toml)")
	f.StringVar(&a.flags.session, "session", "", "session name whose memory is loaded and saved")
	f.StringVar(&a.flags.store, "store", "", "badger directory holding session memories")

	root.AddCommand(newGenerateCmd(a), newParseCmd(a), newMemoryCmd(a))
	return root
}

func (a *app) resolve(cmd *cobra.Command) error {
	if a.flags.config != "" {
		cfg, err := config.LoadCLI(a.flags.config)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.flags.engine != "" {
		eng, err := config.LoadEngine(a.flags.engine)
		if err != nil {
			return err
		}
		a.cfg.Engine = eng
	}
	flags := cmd.Flags()
	if flags.Changed("def") {
		a.cfg.Definition = a.flags.definition
	}
	if flags.Changed("session") {
		a.cfg.Session = a.flags.session
	}
	if flags.Changed("store") {
		a.cfg.StoreDir = a.flags.store
	}
	if err := config.ValidateCLI(a.cfg); err != nil {
		return err
	}
	return a.cfg.Engine.Validate()
}

func (a *app) engine() *domain.Engine {
	return domain.NewEngine(a.cfg.Engine, domain.WithLogger(a.log), domain.WithMetrics(observability.Default()))
}

func (a *app) symbol() (*symbol.Symbol, error) {
	if a.cfg.Definition == "" {
		return nil, fmt.Errorf("no definition: pass --def or set definition in the config")
	}
	doc, err := definition.Load(a.cfg.Definition)
	if err != nil {
		return nil, err
	}
	return doc.Build()
}

// withSession runs fn against the session memory. Without a store the memory
// lives for this invocation only; with one it is loaded first and saved when
// fn succeeds.
func (a *app) withSession(fn func(mem *domain.Memory) error) error {
	if a.cfg.StoreDir == "" {
		return fn(domain.NewMemory())
	}
	store, err := sessionstore.Open(a.cfg.StoreDir)
	if err != nil {
		return err
	}
	defer store.Close()

	mem, err := store.Load(a.cfg.Session)
	if err != nil {
		return err
	}
	if err := fn(mem); err != nil {
		return err
	}
	return store.Save(a.cfg.Session, mem)
}
