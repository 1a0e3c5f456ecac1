package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dexview/internal/config"
	"dexview/internal/lang"
	"dexview/internal/viewer"
	"dexview/internal/writer"

	"github.com/spf13/cobra"
)

func main() {
	// Commands return on SIGINT/SIGTERM so deferred closes remove extracted
	// archive entries before exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by all subcommands.
type app struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "dexview",
		Short: "Browse and render DEX, APK and JNI libraries",
		Long: `dexview indexes the classes of a DEX file, an APK/JAR/ZIP archive or an
ARM64 JNI library, searches them, and renders classes and methods as Smali,
Java-like declarations or ARM64 disassembly with syntax highlighting.

Nodes are addressed as "pkg", "pkg.Class" or "pkg.Class#method".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (YAML or JSONC; default .dexview.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newWritersCommand(a),
		newTreeCommand(a),
		newShowCommand(a),
		newExportCommand(a),
		newGraphCommand(a),
		newBrowseCommand(a),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if cfg.Source != "" {
		a.log.Debug("config.load", "path", cfg.Source)
	}
	return nil
}

// registry returns the built-in writers, extended with configured rules.
func (a *app) registry() (*writer.Registry, error) {
	if len(a.cfg.Highlight) == 0 {
		return lang.Registry(), nil
	}
	return lang.NewRegistry(a.cfg.Highlight)
}

// sessionOptions overrides the configured writer and class options when
// the flags are set.
type sessionOptions struct {
	writer  string
	options string
}

func (f *sessionOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.writer, "writer", "w", "", "writer name (see 'dexview writers')")
	cmd.Flags().StringVar(&f.options, "options", "", "class options: annotations,name,details,fields|all|none")
}

// open creates a session over path.
func (a *app) open(path string, f sessionOptions) (*viewer.Session, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	name := a.cfg.Writer
	if f.writer != "" {
		name = f.writer
	}
	opts, err := a.cfg.ClassOptions()
	if err != nil {
		return nil, err
	}
	if f.options != "" {
		if opts, err = writer.ParseOptions(strings.Split(f.options, ",")); err != nil {
			return nil, err
		}
	}

	s, err := viewer.New(viewer.Options{
		Registry:     reg,
		Open:         viewer.LoaderOpener(a.cfg.LoaderOptions()),
		Writer:       name,
		ClassOptions: &opts,
		CacheSize:    a.cfg.CacheSize,
		Logger:       a.log,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Open(path); err != nil {
		return nil, err
	}
	return s, nil
}
