// Command tabml trains tabular models and serves predictions from them.
//
// File commands work on local files and model directories:
//
//	tabml preview -data houses.csv -n 5
//	tabml train -data houses.csv -target price -algorithm random_forest -out model/
//	tabml predict -model model/ -input records.json
//	tabml info -model model/
//	tabml chart -data houses.csv -model model/ -out chart.png
//
// Store commands persist datasets, models and prediction history in Postgres
// (database.url or DATABASE_URL):
//
//	tabml upload -owner alice -data houses.csv -name houses
//	tabml datasets -owner alice
//	tabml fit -owner alice -dataset <id> -target price -algorithm svm
//	tabml models -owner alice
//	tabml score -owner alice -model <id> -input records.json
//	tabml history -owner alice -model <id> -page 1
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/YuminosukeSato/tabml/config"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// env is what every command receives.
type env struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
	logger log.Logger
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"preview":  {"print the first rows of a CSV file", runPreview},
	"train":    {"train a model from a CSV file into a model directory", runTrain},
	"predict":  {"predict JSON records with a model directory", runPredict},
	"info":     {"describe a model directory", runInfo},
	"chart":    {"render a training chart as PNG", runChart},
	"upload":   {"store a CSV file as a dataset", runUpload},
	"datasets": {"list stored datasets", runDatasets},
	"fit":      {"train a stored model from a stored dataset", runFit},
	"models":   {"list stored models", runModels},
	"score":    {"predict JSON records with a stored model", runScore},
	"history":  {"list a stored model's predictions", runHistory},
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tabml", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "tabml: unknown command %q\n", name)
		usage(stderr)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "tabml: %v\n", err)
		return 1
	}
	logger, err := log.Configure(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "tabml: %v\n", err)
		return 1
	}
	log.SetLogger(logger)

	e := &env{cfg: cfg, stdout: stdout, stderr: stderr, logger: logger.With(log.ComponentKey, "cli", log.OperationKey, name)}
	err = errors.SafeExecute("tabml "+name, func() error {
		return cmd.run(ctx, e, fs.Args()[1:])
	})
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		e.logger.Error("command failed", err, log.ErrorCategoryKey, errors.CategoryOf(err).String())
		fmt.Fprintf(stderr, "tabml %s: %v\n", name, err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: tabml [-config file] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-9s %s\n", n, commands[n].usage)
	}
}

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet("tabml "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func required(fs *flag.FlagSet, names ...string) error {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, n := range names {
		if !set[n] {
			return errors.NewValidationError(n, "flag is required", "")
		}
	}
	return nil
}
