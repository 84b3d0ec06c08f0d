package main

import (
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/interp"
	"github.com/daimatz/godex/pkg/linker"
	"github.com/daimatz/godex/pkg/mirror"
	"github.com/daimatz/godex/pkg/native"
)

var initNatives sync.Once

// Entry methods tried in order. An int result becomes the exit status.
var entrySignatures = []string{"()V", "()I"}

func cmdRun(fs *flag.FlagSet, c *common, args []string, stdout io.Writer) error {
	mainClass := fs.String("main", "", "class holding the static entry method (e.g. 'com.example.Hello')")
	method := fs.String("method", "main", "name of the entry method")
	engine := fs.String("engine", "", "dispatch driver: switch or table, overriding the configuration")
	accessChecks := fs.Bool("access-checks", false, "enable access checks, overriding the configuration")
	preinit := fs.Bool("preinit", false, "initialize the main class in an unstarted runtime first, rolling back on abort")
	stats := fs.Bool("stats", false, "print heap and hot method statistics on exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mainClass == "" {
		fs.Usage()
		return errors.New("run: -main is required")
	}
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *engine != "" {
		cfg.Interpreter.Engine = *engine
	}
	if *accessChecks {
		cfg.Interpreter.AccessChecks = true
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Stdout = stdout
	if *preinit {
		opts.Started = false
	}

	prog, err := loadProgram(fs.Args())
	if err != nil {
		return err
	}
	heap := mirror.NewHeap(int64(cfg.Runtime.HeapLimit))
	l := linker.New(heap, prog.loader)
	rt, err := interp.NewRuntime(l, heap, opts)
	if err != nil {
		return err
	}
	initNatives.Do(native.Initialize)
	rt.SetNativeBridge(native.NewBridge())
	hot := interp.NewHotnessCounter(cfg.Runtime.JITThreshold)
	rt.SetJIT(hot)

	self := rt.AttachThread("main")
	defer self.Detach()

	start := time.Now()
	status, err := execute(self, l, *mainClass, *method, *preinit)
	if *stats {
		fmt.Fprintf(stdout, "-- %s in %s\n", heap.Stats(), time.Since(start).Round(time.Microsecond))
		for _, m := range hot.Hot() {
			fmt.Fprintf(stdout, "-- hot: %s (%s samples)\n", m, humanize.Comma(int64(m.Hotness())))
		}
	}
	if err != nil {
		return err
	}
	if status != 0 {
		return exitCode(status)
	}
	return nil
}

// execute runs the entry method on self and returns its exit status.
func execute(self *interp.Thread, l *linker.Linker, className, method string, preinit bool) (status int, err error) {
	defer func() {
		if r := recover(); r != nil {
			abort, ok := r.(*interp.AbortError)
			if !ok {
				panic(r)
			}
			err = abort
		}
	}()

	c, err := l.FindClass(dex.ClassDescriptor(className))
	if err != nil {
		return 0, err
	}
	rt := self.Runtime()
	if preinit {
		rt.SetIntercepts(native.NewUnstarted())
		ok, msg := self.InitializeInTransaction(c)
		switch {
		case ok:
			log.Infof("%s initialized before start", c)
		case msg != "":
			log.Infof("initialization of %s deferred to start: %s", c, msg)
		default:
			return uncaught(self, l)
		}
		rt.SetIntercepts(nil)
		rt.Start()
	}

	var entry *mirror.Method
	for _, sig := range entrySignatures {
		if m := c.FindMethod(method, sig); m != nil && m.IsStatic() {
			entry = m
			break
		}
	}
	if entry == nil {
		return 0, errors.Errorf("%s has no static %s()V or %s()I", c, method, method)
	}
	if !self.EnsureInitialized(c) {
		return uncaught(self, l)
	}
	result := self.Invoke(entry, nil)
	if self.IsExceptionPending() {
		return uncaught(self, l)
	}
	if entry.ReturnType() == "I" {
		return int(result.Int()), nil
	}
	return 0, nil
}

func uncaught(self *interp.Thread, l *linker.Linker) (int, error) {
	exc := self.Exception()
	self.ClearException()
	return 0, errors.Errorf("uncaught exception %s", l.Describe(exc))
}
