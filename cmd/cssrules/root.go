package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	css "github.com/Discord-CSS-Datamining/discord-css-differ"
	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/internal/cache"
	"github.com/Discord-CSS-Datamining/discord-css-differ/internal/config"
	"github.com/Discord-CSS-Datamining/discord-css-differ/parser"
)

// app holds the streams and global flags shared by all commands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	debug           bool
	configPath      string
	strict          bool
	maxDepth        int
	skipUnsupported bool
	noCustomAtRules bool
	cacheDir        string

	opts  []parser.Option
	cache *cache.Dir

	// Effective settings that change the tree of a clean parse.
	depth  int
	custom bool
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cssrules",
		Short:         "Extract selectors and declarations from a stylesheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.cache != nil {
				return a.cache.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&a.debug, "debug", false, "Log every parsed rule (also CSSRULES_DEBUG=1)")
	flags.StringVar(&a.configPath, "config", "", "Configuration file (default ./"+config.DefaultName+" if present)")
	flags.BoolVar(&a.strict, "strict", false, "Abort on the first fault")
	flags.IntVar(&a.maxDepth, "max-depth", parser.DefaultMaxDepth, "Maximum at-rule nesting depth")
	flags.BoolVar(&a.skipUnsupported, "skip-unsupported", false, "Drop unsupported selector syntax instead of skipping the rule")
	flags.BoolVar(&a.noCustomAtRules, "no-custom-at-rules", false, "Reject the @value and @use directives")
	flags.StringVar(&a.cacheDir, "cache-dir", "", "Cache parsed trees in this directory")

	root.AddCommand(
		newParseCommand(a),
		newSelectorsCommand(a),
		newFingerprintCommand(a),
		newWatchCommand(a),
	)
	return root
}

// setup builds the logger and parser options. Flags set on the command
// line override the configuration file.
func (a *app) setup(cmd *cobra.Command) error {
	debug := a.debug
	if v, err := strconv.ParseBool(os.Getenv("CSSRULES_DEBUG")); err == nil && v {
		debug = true
	}
	a.logger = newLogger(a.stderr, debug)

	var cfg *config.File
	var err error
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.LoadDefault(".")
	}
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	if cfg.Path != "" {
		a.logger.Debug("loaded config", "path", cfg.Path)
	}

	opts, err := cfg.Options()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	a.depth, a.custom = parser.DefaultMaxDepth, true
	if cfg.MaxDepth != nil {
		a.depth = *cfg.MaxDepth
	}
	if cfg.CustomAtRules != nil {
		a.custom = *cfg.CustomAtRules
	}

	flags := cmd.Flags()
	if flags.Changed("max-depth") {
		if a.maxDepth < 1 || a.maxDepth > parser.MaxDepthLimit {
			return &exitError{code: exitUsage, err: fmt.Errorf("--max-depth must be between 1 and %d", parser.MaxDepthLimit)}
		}
		a.depth = a.maxDepth
		opts = append(opts, parser.WithMaxDepth(a.maxDepth))
	}
	if flags.Changed("strict") {
		opts = append(opts, parser.WithStrict(a.strict))
	}
	if flags.Changed("skip-unsupported") {
		policy := parser.FailOnUnsupported
		if a.skipUnsupported {
			policy = parser.SkipUnsupported
		}
		opts = append(opts, parser.WithUnsupportedSyntax(policy))
	}
	if flags.Changed("no-custom-at-rules") {
		a.custom = !a.noCustomAtRules
		opts = append(opts, parser.WithCustomAtRules(a.custom))
	}
	a.opts = append(opts, parser.WithLogger(a.logger))

	dir := a.cacheDir
	if dir == "" {
		dir = cfg.CacheDir
	}
	if dir != "" {
		if a.cache, err = cache.Open(dir); err != nil {
			return ioError(err)
		}
	}
	return nil
}

// source is a stylesheet read from a file or standard input.
type source struct {
	name string
	data []byte
}

// read returns the stylesheet named by args; none or "-" reads stdin.
func (a *app) read(args []string) (*source, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, ioError(fmt.Errorf("read stdin: %w", err))
		}
		return &source{name: "<stdin>", data: data}, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, ioError(err)
	}
	return &source{name: filepath.Clean(args[0]), data: data}, nil
}

// parse parses src, consulting the cache first when one is configured.
// Only clean parses are stored.
func (a *app) parse(src *source) (*ast.StyleSheet, error) {
	key := a.cacheKey(src.data)
	if a.cache != nil {
		ss, hit, err := a.cache.Get(key)
		if err != nil {
			a.logger.Warn("ignoring cache entry", "file", src.name, "error", err)
		} else if hit {
			a.logger.Debug("cache hit", "file", src.name)
			return ss, nil
		}
	}

	ss, err := css.ParseString(string(src.data), a.opts...)
	if err != nil {
		return ss, err
	}
	if a.cache != nil {
		if err := a.cache.Put(key, ss); err != nil {
			a.logger.Warn("cannot write cache entry", "file", src.name, "error", err)
		}
	}
	return ss, nil
}

// cacheKey prefixes the source with the settings that change the tree of
// a clean parse.
func (a *app) cacheKey(data []byte) []byte {
	prefix := fmt.Sprintf("depth=%d custom=%t\x00", a.depth, a.custom)
	return append([]byte(prefix), data...)
}

// report writes each fault of a failed parse to stderr and returns the
// parse exit error.
func (a *app) report(src *source, err error) error {
	var list parser.ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			fmt.Fprintf(a.stderr, "%s:%s\n", src.name, e)
		}
	} else {
		fmt.Fprintf(a.stderr, "%s:%s\n", src.name, err)
	}
	return &exitError{code: exitParse}
}
