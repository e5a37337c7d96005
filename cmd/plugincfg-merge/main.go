package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dusted-go/logging/prettylog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/John-Robertt/plugincfg-merge/internal/config"
	"github.com/John-Robertt/plugincfg-merge/internal/fetch"
	"github.com/John-Robertt/plugincfg-merge/internal/httpapi"
	"github.com/John-Robertt/plugincfg-merge/internal/merge"
	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
	"github.com/John-Robertt/plugincfg-merge/internal/render"
)

const noMergeMessage = "Error encountered, no merged file was written"

const (
	exitOK    = 0
	exitUsage = 1
	exitParse = 2
	exitRead  = 3
	exitWrite = 4
	exitOther = 5
)

// Flags that older scripts pass with a single dash.
var legacyFlags = map[string]bool{
	"-debug":               true,
	"-sortVhostGrp":        true,
	"-setMatchUriAppVhost": true,
	"-precedence":          true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], prettyLogger, os.Stderr)
	stop()
	os.Exit(code)
}

func prettyLogger(level slog.Level) *slog.Logger {
	return slog.New(prettylog.NewHandler(&slog.HandlerOptions{Level: level}))
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type cli struct {
	newLogger func(slog.Level) *slog.Logger
	now       func() time.Time
	ignored   []string

	configPath       string
	debug            bool
	sortVhostGroup   bool
	matchURIAppVhost bool
	precedence       bool

	settings config.Settings
	log      *slog.Logger
}

func run(ctx context.Context, args []string, newLogger func(slog.Level) *slog.Logger, stderr io.Writer) int {
	c := &cli{newLogger: newLogger, now: time.Now}
	root := c.rootCommand()
	args, c.ignored = normalizeArgs(args, shorthands(root.PersistentFlags()))
	root.SetArgs(args)
	root.SetOut(stderr)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "Error: %v\n\n%s", ue.err, root.UsageString())
		return exitUsage
	}
	log := c.log
	if log == nil {
		log = newLogger(slog.LevelInfo)
	}
	log.Error(noMergeMessage, "error", err)
	return exitCode(err)
}

// normalizeArgs rewrites the single-dash legacy flags to their long form
// and drops any other unknown single-dash word. Words led by a registered
// shorthand, such as "-cs.yaml", are kept for pflag.
func normalizeArgs(args []string, short map[byte]bool) (out, ignored []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return append(out, args[i:]...), ignored
		case legacyFlags[a]:
			out = append(out, "-"+a)
		case len(a) > 2 && a[0] == '-' && a[1] != '-' && !short[a[1]]:
			ignored = append(ignored, a)
		default:
			out = append(out, a)
		}
	}
	return out, ignored
}

func shorthands(fs *pflag.FlagSet) map[byte]bool {
	out := make(map[byte]bool)
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Shorthand != "" {
			out[f.Shorthand[0]] = true
		}
	})
	return out
}

func exitCode(err error) int {
	var ce *config.ConfigError
	if errors.As(err, &ce) {
		return exitUsage
	}
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		if fe.AppError.Stage == model.StageLoadConfig {
			return exitUsage
		}
		return exitRead
	}
	var pe *plugincfg.ParseError
	if errors.As(err, &pe) && pe.AppError.Code == plugincfg.CodeXMLParse {
		return exitParse
	}
	var re *render.RenderError
	if errors.As(err, &re) && re.AppError.Code == render.CodeOutputWrite {
		return exitWrite
	}
	return exitOther
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "plugincfg-merge [flags] <plugin-cfg.xml>... <output.xml>",
		Short: "Merge web server plugin configuration files into one",
		Long: "Merge two or more plugin-cfg.xml files into one configuration. Routing entries\n" +
			"served by several inputs share one cluster holding every contributing server.\n" +
			"Inputs may be local paths or http(s) URLs; the last argument is the output file.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return &usageError{err: errors.New("at least one input and the output path are required")}
			}
			return nil
		},
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: c.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.merge(cmd.Context(), args[:len(args)-1], args[len(args)-1])
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "settings YAML file (local path or http(s) URL)")
	pf.BoolVar(&c.debug, "debug", false, "log every processing step")
	pf.BoolVar(&c.sortVhostGroup, "sortVhostGrp", false, "match routing entries by virtual host group as well")
	pf.BoolVar(&c.matchURIAppVhost, "setMatchUriAppVhost", false, "match routing entries by application name as well")
	pf.BoolVar(&c.precedence, "precedence", false, "earlier inputs win a shared entry instead of sharing it")

	root.AddCommand(c.serveCommand())
	return root
}

// setup layers the changed flags over the settings and builds the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	set, err := config.Load(cmd.Context(), c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	override := func(name string, dst *bool, v bool) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = v
		}
	}
	override("debug", &set.Debug, c.debug)
	override("sortVhostGrp", &set.SortVhostGroup, c.sortVhostGroup)
	override("setMatchUriAppVhost", &set.MatchURIAppVhost, c.matchURIAppVhost)
	override("precedence", &set.Precedence, c.precedence)
	c.settings = set

	level := slog.LevelInfo
	if set.Debug {
		level = slog.LevelDebug
	}
	c.log = c.newLogger(level)
	for _, a := range c.ignored {
		c.log.Warn("Parameter: " + a + " is not valid. It will be ignored")
	}
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			c.log.Debug("Flag requested", "flag", f.Name, "value", f.Value.String())
		}
	})
	return nil
}

func (c *cli) merge(ctx context.Context, inputs []string, output string) error {
	c.log.Info("Merging...", "inputs", len(inputs), "output", output)

	docs, err := plugincfg.LoadAll(ctx, inputs, c.settings.LoadOptions(c.log))
	if err != nil {
		return err
	}
	res, err := merge.Merge(ctx, docs, c.settings.MergeOptions(c.log))
	if err != nil {
		return err
	}
	out, err := render.Output(docs, res, c.now())
	if err != nil {
		return err
	}
	if err := render.WriteFile(output, out); err != nil {
		return err
	}

	c.log.Info("Merged plugin config file written to " + output)
	c.log.Info("Merge Complete",
		"inputs", res.Stats.Inputs,
		"sharedGroups", res.Stats.SharedGroups,
		"sharedKeys", res.Stats.SharedKeys,
		"unsharedKeys", res.Stats.UnsharedKeys,
		"uniqueKeys", res.Stats.UniqueKeys,
		"serverClusters", res.Stats.Clusters,
		"virtualHostGroups", res.Stats.VhostGroups,
		"uriGroups", res.Stats.URIGroups,
		"routes", res.Stats.Routes)
	return nil
}

func (c *cli) serveCommand() *cobra.Command {
	var (
		listen            string
		readHeaderTimeout time.Duration
		mergeTimeout      time.Duration
		shutdownTimeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve merges over HTTP (POST /api/merge)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				c.settings.Listen = listen
			}
			return c.serve(cmd.Context(), readHeaderTimeout, mergeTimeout, shutdownTimeout)
		},
	}
	f := cmd.Flags()
	f.StringVar(&listen, "listen", config.Defaults().Listen, "HTTP listen address")
	f.DurationVar(&readHeaderTimeout, "read-header-timeout", 5*time.Second, "HTTP ReadHeaderTimeout")
	f.DurationVar(&mergeTimeout, "merge-timeout", 60*time.Second, "upper bound for one merge request")
	f.DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown wait after a signal")
	return cmd
}

func (c *cli) serve(ctx context.Context, readHeaderTimeout, mergeTimeout, shutdownTimeout time.Duration) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &http.Server{
		Addr: c.settings.Listen,
		Handler: httpapi.NewHandler(httpapi.Options{
			MergeTimeout: mergeTimeout,
			Settings:     c.settings,
			Logger:       c.log,
			Registry:     reg,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	addr := c.settings.Listen
	if strings.HasPrefix(addr, ":") {
		addr = "0.0.0.0" + addr
	}
	c.log.Info("listening on http://" + addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		c.log.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			c.log.Warn("graceful shutdown failed", "error", err)
			_ = srv.Close()
		}

		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
