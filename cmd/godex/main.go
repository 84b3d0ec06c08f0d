// godex runs and assembles programs for the godex interpreter.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/daimatz/godex/pkg/config"
)

var log = commonlog.GetLogger("godex")

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: godex <command> [options] [paths...]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  run   assemble or load the given paths and run a static entry method\n")
	fmt.Fprintf(w, "  asm   assemble .dasm sources into an image (.gdx, or .gdxz compressed)\n")
	fmt.Fprintf(w, "  dump  disassemble images or sources\n")
	fmt.Fprintf(w, "\nPaths may be .dasm sources, image files or directories of images.\n")
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  godex run -main Hello hello.dasm\n")
	fmt.Fprintf(w, "  godex asm -o hello.gdxz hello.dasm\n")
	fmt.Fprintf(w, "  godex dump hello.gdxz\n")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var cmd func(*flag.FlagSet, *common, []string, io.Writer) error
	switch args[0] {
	case "run":
		cmd = cmdRun
	case "asm":
		cmd = cmdAsm
	case "dump":
		cmd = cmdDump
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "godex: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	fs := flag.NewFlagSet("godex "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newCommon(fs)
	err := cmd(fs, c, args[1:], stdout)
	var exit exitCode
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	case errors.As(err, &exit):
		return int(exit)
	}
	fmt.Fprintf(stderr, "godex: %v\n", err)
	return 1
}

// exitCode is returned by a command that finished with a non-zero status
// it already reported.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// common holds the flags every command shares.
type common struct {
	configPath string
	verbosity  int
}

func newCommon(fs *flag.FlagSet) *common {
	c := &common{}
	fs.StringVar(&c.configPath, "config", "", "configuration file (default: ./"+config.FileName+" when present)")
	fs.IntVar(&c.verbosity, "v", -1, "log verbosity, overriding the configuration")
	return c
}

// load reads the configuration and sets up logging.
func (c *common) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if c.verbosity >= 0 {
		cfg.Log.Verbosity = c.verbosity
	}
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
	return cfg, nil
}
