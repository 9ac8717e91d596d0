// Command parley plays an authored scene from a content directory, printing
// one line per beat.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

type options struct {
	configPath string
	sceneID    string
	cast       string
	auto       bool
	pace       float64
	maxBeats   int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("parley", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "parley.yaml", "path to the YAML config file")
	fs.StringVar(&opts.sceneID, "scene", "", "scene template to play (lists scenes when empty)")
	fs.StringVar(&opts.cast, "cast", "", "role assignments as role=character,... (auto-cast when empty)")
	fs.BoolVar(&opts.auto, "auto", false, "advance without waiting for Enter")
	fs.Float64Var(&opts.pace, "pace", 0, "lines per second in -auto mode (0 = unpaced)")
	fs.IntVar(&opts.maxBeats, "max-beats", 200, "stop after this many beats")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := newApp(ctx, opts.configPath, stderr)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if opts.sceneID == "" {
		for _, s := range app.catalog.Scenes.GetAll() {
			fmt.Fprintf(stdout, "%s\t%s\n", s.ID, s.Name)
		}
		return nil
	}

	return app.play(ctx, opts, stdin, stdout)
}
