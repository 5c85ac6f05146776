// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Runview loads the artifacts of a benchmark run into one table
// indexed by time and prints it.
//
// Usage:
//
//	runview [flags] rundir
//
// The artifacts to load are described by a loader definition. The
// built-in definitions are:
//
//	run      psql progress dumps, wait events, pgbench progress,
//	         the main JSON report and iostat output
//	latency  run plus per-second latency quantiles computed from the
//	         pgbench transaction logs in execution_reports
//
// Further loaders may be defined in HCL files given with -def:
//
//	loader "mine" {
//	  extends = "run"
//	  source "pg_stat_io_progress" "pivot" {
//	    pivot_columns = ["backend_type", "context", "object"]
//	    values        = ["writes", "reads"]
//	  }
//	}
//
// Expressions in definitions may refer to values given with -var as
// var.NAME. Run "runview -list" to list the loaders and source kinds.
//
// The table is printed as text, CSV (-format csv) or an HTML table
// (-format html). With -kinds, runview prints the kind of each column
// instead. With -sqlite, the table is also stored in a SQLite database
// and the ID of the stored run is printed to standard error.
//
// # Environment
//
// RUNVIEW_LOG_LEVEL sets the level of the diagnostic log written to
// standard error: debug, info, warn (the default) or error.
// RUNVIEW_DEV=true selects a human-readable log format.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pgrun/runview/frame"
	"github.com/pgrun/runview/loader"
	"github.com/pgrun/runview/runstore"
	_ "github.com/pgrun/runview/runstore/sqlite3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// config is read from RUNVIEW_* environment variables.
type config struct {
	Dev      bool
	LogLevel string `split_words:"true" default:"warn"`
}

// listFlag is a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

func main() {
	log.SetPrefix("runview: ")
	log.SetFlags(0)
	err := runview(os.Stdout, os.Stderr, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runview(stdout, stderr io.Writer, args []string) error {
	var cfg config
	if err := envconfig.Process("runview", &cfg); err != nil {
		return err
	}
	zlog, err := newLogger(stderr, cfg)
	if err != nil {
		return err
	}
	defer zlog.Sync()

	fs := flag.NewFlagSet("runview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var defs, vars listFlag
	fs.Var(&defs, "def", "read loader definitions from `file.hcl` (repeatable)")
	fs.Var(&vars, "var", "set definition variable `name=value` (repeatable)")
	flagLoader := fs.String("loader", "run", "load the run with loader `name`")
	flagFormat := fs.String("format", "text", "print the table as `format`: text, csv or html")
	flagKinds := fs.Bool("kinds", false, "print the kind of each column instead of the table")
	flagList := fs.Bool("list", false, "list the loaders and source kinds and exit")
	flagSQLite := fs.String("sqlite", "", "also store the table in SQLite database `file`")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: runview [flags] rundir\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	varMap := make(map[string]string)
	for _, v := range vars {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return fmt.Errorf("-var %q: want name=value", v)
		}
		varMap[k] = val
	}
	catalog, err := loader.DefaultCatalog(varMap, zlog)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := catalog.ParseFile(def); err != nil {
			return err
		}
	}

	if *flagList {
		return list(stdout, catalog)
	}

	var write func(io.Writer, *frame.Frame) error
	switch *flagFormat {
	case "text":
		write = writeText
	case "csv":
		write = writeCSV
	case "html":
		write = writeHTML
	default:
		fmt.Fprintf(stderr, "unknown format %q\n", *flagFormat)
		fs.Usage()
		return flag.ErrHelp
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return flag.ErrHelp
	}
	root := fs.Arg(0)

	reg, err := catalog.Registry(*flagLoader)
	if err != nil {
		return err
	}
	zlog.Info("loading run", zap.String("root", root), zap.String("loader", *flagLoader), zap.Strings("sources", reg.Names()))
	f, err := reg.Load(root)
	if err != nil {
		return err
	}

	if *flagSQLite != "" {
		if err := store(stderr, *flagSQLite, root, f); err != nil {
			return err
		}
	}
	if *flagKinds {
		return writeKinds(stdout, f)
	}
	return write(stdout, f)
}

// newLogger returns a logger writing to w, configured as in cfg.
func newLogger(w io.Writer, cfg config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Dev {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if err := zcfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("RUNVIEW_LOG_LEVEL: %w", err)
	}
	enc := zapcore.NewJSONEncoder(zcfg.EncoderConfig)
	if zcfg.Encoding == "console" {
		enc = zapcore.NewConsoleEncoder(zcfg.EncoderConfig)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zcfg.Level)
	return zap.New(core).Named("runview"), nil
}

// list prints the loaders and source kinds of c.
func list(w io.Writer, c *loader.Catalog) error {
	fmt.Fprintf(w, "loaders:\n")
	for _, name := range c.Loaders() {
		reg, err := c.Registry(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\t%s\t%s\n", name, strings.Join(reg.Names(), " "))
	}
	fmt.Fprintf(w, "source kinds:\n")
	for _, k := range loader.Kinds() {
		fmt.Fprintf(w, "\t%s\t%s\n", k, loader.KindDoc(k))
	}
	return nil
}

// store inserts f into the SQLite database at path.
func store(stderr io.Writer, path, root string, f *frame.Frame) error {
	db, err := runstore.OpenSQL("sqlite3", path)
	if err != nil {
		return err
	}
	id, err := db.InsertFrame(context.Background(), root, f)
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "stored run %s in %s\n", id, path)
	return nil
}
