package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"cxref/internal/config"
	cxerrors "cxref/internal/errors"
	"cxref/internal/logging"
	"cxref/internal/paths"
	"cxref/internal/store"
	"cxref/internal/symbols"
)

// project is the resolved working context of a command.
type project struct {
	root   string
	cfg    *config.Config
	logger *logging.Logger
}

// loadProject resolves the project root, loads and validates its config and
// builds a stderr logger.
func loadProject(cmd *cobra.Command) (*project, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, cxerrors.New(cxerrors.PreconditionViolation, "loading configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cxerrors.New(cxerrors.PreconditionViolation, "invalid configuration", err)
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return &project{root: root, cfg: cfg, logger: logger}, nil
}

// resolveRoot returns --root, or the nearest ancestor of the working
// directory holding a .cxref directory, or the working directory itself.
func resolveRoot() (string, error) {
	if rootFlag != "" {
		abs, err := filepath.Abs(rootFlag)
		if err != nil {
			return "", err
		}
		return paths.Canonicalize(abs)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", cxerrors.New(cxerrors.InternalError, "failed to get current directory", err)
	}
	return findProjectRoot(cwd), nil
}

func findProjectRoot(start string) string {
	for dir := start; ; {
		if info, err := os.Stat(paths.DataDir(dir)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func newLogger(cfg *config.Config, out io.Writer) (*logging.Logger, error) {
	levelName := cfg.Logging.Level
	if logLevelFlag != "" {
		levelName = logLevelFlag
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, cxerrors.New(cxerrors.PreconditionViolation, "--log-level", err)
	}
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  level,
		Output: out,
	}), nil
}

// openStore maps the project's store read-only.
func (p *project) openStore() (*store.Store, error) {
	path := p.cfg.StorePath(p.root)
	st, err := store.OpenFile(path)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Opened store", map[string]interface{}{
		"path":  path,
		"nodes": st.NodeCount(),
	})
	return st, nil
}

// newContext returns a context cancelled on SIGINT or SIGTERM.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseTypes parses a --types value; empty means all types.
func parseTypes(s string) (symbols.NodeType, error) {
	if s == "" {
		return symbols.All, nil
	}
	t := symbols.ParseNodeType(s)
	if t == symbols.Invalid {
		return symbols.Invalid, cxerrors.Newf(cxerrors.PreconditionViolation, "unknown node type in %q", s)
	}
	return t, nil
}

// parseIndex parses a node index argument.
func parseIndex(s string) (symbols.Index, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n < 0 {
		return symbols.NoIndex, cxerrors.Newf(cxerrors.PreconditionViolation, "invalid node index %q", s)
	}
	return symbols.Index(n), nil
}

// writeOutput formats resp with --format and prints it.
func writeOutput(cmd *cobra.Command, resp interface{}) error {
	out, err := FormatResponse(resp, OutputFormat(formatFlag))
	if err != nil {
		return cxerrors.New(cxerrors.PreconditionViolation, "formatting output", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

// printError prints err and any suggested fixes.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var ce *cxerrors.CxrefError
	if errors.As(err, &ce) && len(ce.SuggestedFixes) > 0 {
		fmt.Fprintln(w, "Suggested fixes:")
		for _, fix := range ce.SuggestedFixes {
			fmt.Fprintf(w, "  - %s\n", fix.Description)
			if fix.Command != "" {
				fmt.Fprintf(w, "    $ %s\n", fix.Command)
			}
		}
	}
}

// Exit codes
const (
	exitError    = 1
	exitNotFound = 2
	exitRebuild  = 3
)

func exitCode(err error) int {
	switch {
	case cxerrors.CodeOf(err) == cxerrors.NotFound:
		return exitNotFound
	case cxerrors.RequiresRebuild(err):
		return exitRebuild
	}
	return exitError
}
