// Command gostash runs Starlark code against an in-memory stash.
//
// With -script it executes a file; otherwise it reads Starlark from stdin
// statement by statement, printing the value of every expression. Compound
// statements such as def continue until an empty line.
//
// The module stash is predeclared:
//
//	stash.set("session", {"user": 1}, expires=30, callback=lambda: print("bye"))
//	stash.get(stash.pattern("/^sess/i"))
//	stash.remove()
//
// Settings come from GOSTASH_LOG_LEVEL, GOSTASH_LOG_FORMAT and GOSTASH_SEED
// (optionally via a .env file) and can be overridden by flags.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"gostash/internal/cache"
	"gostash/internal/config"
	"gostash/internal/logger"
	"gostash/internal/starlark/cachemod"
)

func main() {
	// Signal-aware context is the root of ownership for long-lived background work.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "gostash: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := flag.NewFlagSet("gostash", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		script    = flags.String("script", "", "execute this Starlark `file` instead of reading stdin")
		seed      = flags.String("seed", cfg.SeedFile, "preload entries from this YAML `file`")
		linger    = flags.Duration("linger", 0, "after -script, keep running this long so pending expiries can fire")
		logLevel  = flags.String("log-level", cfg.LogLevel.String(), "log `level` (debug, info, warn, error)")
		logFormat = flags.String("log-format", cfg.LogFormat, "log `format` (text or json)")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %q", flags.Args())
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	log := logger.New(stderr, level, *logFormat)

	c := cache.New[starlark.Value](cache.WithLogger(log))
	defer func() {
		// Close is idempotent; safe to call in defer.
		if err := c.Close(); err != nil {
			log.Error("cache close", slog.Any("err", err))
		}
	}()

	if *seed != "" {
		if err := loadSeed(c, *seed); err != nil {
			return err
		}
		log.Debug("seed loaded", slog.String("file", *seed), slog.Int("entries", c.Len()))
	}

	predeclared := starlark.StringDict{
		"stash": cachemod.Module(c, log),
	}
	thread := &starlark.Thread{
		Name:  "gostash",
		Print: func(_ *starlark.Thread, msg string) { fmt.Fprintln(stdout, msg) },
	}
	stopCancel := context.AfterFunc(ctx, func() { thread.Cancel("interrupted") })
	defer stopCancel()

	if *script != "" {
		if _, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, *script, nil, predeclared); err != nil {
			return describe(err)
		}
		return wait(ctx, *linger)
	}
	return repl(ctx, thread, stdin, stdout, predeclared)
}

func loadSeed(c *cache.Cache[starlark.Value], path string) error {
	entries, err := config.LoadSeed(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		v, err := cachemod.FromGo(e.Value)
		if err != nil {
			return fmt.Errorf("seed %s: key %q: %w", path, e.Key, err)
		}
		v.Freeze()
		if err := c.Set(e.Key, v, cache.WithExpiry(e.Expiry())); err != nil {
			return fmt.Errorf("seed %s: %w", path, err)
		}
	}
	return nil
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return nil
}

func repl(ctx context.Context, thread *starlark.Thread, stdin io.Reader, stdout io.Writer, predeclared starlark.StringDict) error {
	opts := &syntax.FileOptions{LoadBindsGlobally: true}
	globals := maps.Clone(predeclared)

	in := bufio.NewReader(stdin)
	var (
		eof, flushed bool
		readErr      error
	)
	readline := func() ([]byte, error) {
		if eof {
			// A final blank line closes any block left open at end of input.
			if !flushed {
				flushed = true
				return []byte("\n"), nil
			}
			return nil, io.EOF
		}
		line, err := in.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			eof = true
			if len(line) == 0 {
				flushed = true
				return []byte("\n"), nil
			}
			return append(line, '\n'), nil
		}
		if err != nil {
			readErr = err
		}
		return line, err
	}

	for ctx.Err() == nil {
		f, err := opts.ParseCompoundStmt("<stdin>", readline)
		if err != nil {
			if readErr != nil {
				return readErr
			}
			if eof && flushed {
				return nil
			}
			fmt.Fprintf(stdout, "error: %v\n", err)
			continue
		}

		if expr := soleExpr(f); expr != nil {
			v, err := starlark.EvalExprOptions(f.Options, thread, expr, globals)
			if err != nil {
				fmt.Fprintf(stdout, "error: %v\n", describe(err))
				continue
			}
			if v != starlark.None {
				fmt.Fprintln(stdout, v)
			}
			continue
		}
		if err := starlark.ExecREPLChunk(f, thread, globals); err != nil {
			fmt.Fprintf(stdout, "error: %v\n", describe(err))
		}
	}
	return nil
}

func soleExpr(f *syntax.File) syntax.Expr {
	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*syntax.ExprStmt); ok {
			return stmt.X
		}
	}
	return nil
}

// describe returns a Starlark error with its backtrace.
func describe(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return errors.New(evalErr.Backtrace())
	}
	return err
}
