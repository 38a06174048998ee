// Command atomic-stress runs configured contention scenarios against the
// atomic_value containers and records the results. Meant to sit on a bench
// box and append history, so regressions show up as a diffable table.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_value/internal/stress"
	"github.com/temoto/atomic_value/log2"
)

var log = log2.NewStderr(log2.LInfo)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "stress.hcl", "")
	flagScenario := cmdline.String("scenario", "", "run only the named scenario")
	flagOnce := cmdline.Bool("once", false, "one pass instead of looping until signal")
	flagDebug := cmdline.Bool("debug", false, "")
	cmdline.Parse(os.Args[1:])

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		// assume journal/pipe logging, it has own timestamps
		log.SetFlags(log2.LServiceFlags)
	}
	if *flagDebug {
		log.SetLevel(log2.LDebug)
	}

	cfg := stress.MustReadConfig(log, stress.NewOsFullReader(), *flagConfig)
	if *flagScenario != "" {
		keep := cfg.Scenarios[:0]
		for _, sc := range cfg.Scenarios {
			if sc.Name == *flagScenario {
				keep = append(keep, sc)
			}
		}
		cfg.Scenarios = keep
	}
	if len(cfg.Scenarios) == 0 {
		log.Fatalf("config=%s has no scenarios to run (filter scenario='%s')", *flagConfig, *flagScenario)
	}

	sinks, err := cfg.Sink.Open()
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	defer sinks.Close()

	a := alive.NewAlive()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("stop requested")
		a.Stop()
	}()

	runner := stress.NewRunner(a, log)
	for pass := 1; a.IsRunning(); pass++ {
		log.Debugf("pass=%d begin", pass)
		results, err := runner.RunAll(cfg)
		for _, r := range results {
			if r.Aborted {
				continue
			}
			if serr := sinks.Record(r); serr != nil {
				log.Errorf("sink: %s", errors.ErrorStack(serr))
			}
		}
		if err != nil {
			if a.IsRunning() {
				log.Fatal(errors.ErrorStack(err))
			}
			break
		}
		if *flagOnce {
			break
		}
	}

	a.Stop()
	a.Wait()
}
