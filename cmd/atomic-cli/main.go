// Command atomic-cli is an interactive shell around one live container:
// poke a word or float cell by hand and watch the previous/current pairs
// the library returns. Reads commands from a prompt on a terminal, from
// stdin lines otherwise.
package main

import (
	"bufio"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/atomic_value"
	"github.com/temoto/atomic_value/log2"
)

const usage = `syntax: one command per line
- new word|float [INIT]      start over with a fresh cell
- get                        atomic read
- racyget                    unsynchronized read
- set V                      atomic write
- swap V                     write, print replaced value
- cas OLD NEW                one compare-and-swap attempt
- casdelta NEW CMP DELTA     float only: swap when |CMP-current| <= DELTA
- add D | sub D              retry-loop arithmetic
- mul D | div D              float only
- spin V                     wait until the cell holds V (Ctrl-C to give up)
- stress OPS WORKERS         WORKERS goroutines add +1 OPS times each
- help
- quit
`

var log = log2.NewStderr(log2.LDebug)

// session is the one cell under the shell. Exactly one of word/float is
// active; new swaps them out.
type session struct {
	kind  string
	word  *atomic_value.Cell[int64]
	float *atomic_value.F64
}

func main() {
	log.SetFlags(log2.LInteractiveFlags)

	s := &session{}
	if err := s.reset("word", 0); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	log.Infof("atomic-cli: word cell = 0; try `help`")

	mainLoop(s.execute, completer)
}

// mainLoop dispatches lines from a prompt or from piped stdin.
func mainLoop(exec func(line string), complete func(d prompt.Document) []prompt.Suggest) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for range sigCh {
			os.Exit(1)
		}
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		// TODO OptionHistory
		prompt.New(exec, complete).Run()
		return
	}
	scan := bufio.NewScanner(os.Stdin)
	for scan.Scan() {
		exec(strings.TrimSpace(scan.Text()))
	}
	if err := scan.Err(); err != nil {
		log.Fatal(err)
	}
}

var suggests = []prompt.Suggest{
	{Text: "new", Description: "new word|float [INIT]"},
	{Text: "get"}, {Text: "racyget"},
	{Text: "set"}, {Text: "swap"},
	{Text: "cas", Description: "cas OLD NEW"},
	{Text: "casdelta", Description: "casdelta NEW CMP DELTA (float)"},
	{Text: "add"}, {Text: "sub"}, {Text: "mul"}, {Text: "div"},
	{Text: "spin", Description: "wait for value"},
	{Text: "stress", Description: "stress OPS WORKERS"},
	{Text: "help"}, {Text: "quit"},
}

func completer(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}

func (s *session) reset(kind string, init float64) error {
	switch kind {
	case "word":
		cell, err := atomic_value.New(int64(init))
		if err != nil {
			return errors.Trace(err)
		}
		s.word, s.float, s.kind = cell, nil, kind
	case "float":
		s.word, s.float, s.kind = nil, atomic_value.NewF64(init), kind
	default:
		return errors.NotValidf("new kind=%s want word|float", kind)
	}
	return nil
}

func (s *session) execute(line string) {
	if line == "" {
		return
	}
	words := strings.Fields(line)
	if err := s.run(words[0], words[1:]); err != nil {
		log.Errorf("%s: %s", line, err.Error())
	}
}

func (s *session) run(cmd string, args []string) error {
	switch cmd {
	case "help":
		log.Infof(usage)
		return nil
	case "quit", "exit":
		os.Exit(0)
	case "new":
		if len(args) < 1 {
			return errors.NotValidf("new kind is required")
		}
		init := 0.0
		if len(args) >= 2 {
			var err error
			if init, err = strconv.ParseFloat(args[1], 64); err != nil {
				return errors.Trace(err)
			}
		}
		if err := s.reset(args[0], init); err != nil {
			return errors.Trace(err)
		}
		log.Infof("%s cell = %s", s.kind, s.str())
		return nil
	case "get":
		log.Infof("get = %s", s.str())
		return nil
	case "racyget":
		if s.kind == "word" {
			log.Infof("racyget = %d", s.word.RacyLoad())
		} else {
			log.Infof("racyget = %v", s.float.RacyLoad())
		}
		return nil
	case "stress":
		return s.stress(args)
	}

	// the rest take numbers
	nums, err := parseFloats(args)
	if err != nil {
		return errors.Trace(err)
	}
	if s.kind == "word" {
		return s.runWord(cmd, nums)
	}
	return s.runFloat(cmd, nums)
}

func (s *session) str() string {
	if s.kind == "word" {
		return s.word.String()
	}
	return s.float.String()
}

func parseFloats(args []string) ([]float64, error) {
	nums := make([]float64, len(args))
	for i, a := range args {
		var err error
		if nums[i], err = strconv.ParseFloat(a, 64); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return nums, nil
}

func need(nums []float64, n int) error {
	if len(nums) != n {
		return errors.NotValidf("want %d arguments, have %d", n, len(nums))
	}
	return nil
}

func (s *session) runWord(cmd string, nums []float64) error {
	c := s.word
	switch cmd {
	case "set":
		if err := need(nums, 1); err != nil {
			return err
		}
		c.Store(int64(nums[0]))
		log.Infof("set ok")
	case "swap":
		if err := need(nums, 1); err != nil {
			return err
		}
		log.Infof("swap prev=%d", c.Swap(int64(nums[0])))
	case "cas":
		if err := need(nums, 2); err != nil {
			return err
		}
		prev, swapped := c.CompareAndSwap(int64(nums[0]), int64(nums[1]))
		log.Infof("cas swapped=%t prev=%d", swapped, prev)
	case "add", "sub":
		if err := need(nums, 1); err != nil {
			return err
		}
		d := int64(nums[0])
		if cmd == "sub" {
			d = -d
		}
		prev, cur := c.Update(func(v int64) int64 { return v + d })
		log.Infof("%s prev=%d cur=%d", cmd, prev, cur)
	case "spin":
		if err := need(nums, 1); err != nil {
			return err
		}
		log.Infof("spin done value=%d", c.SpinWait(int64(nums[0])))
	case "mul", "div", "casdelta":
		return errors.NotValidf("%s on a word cell, use `new float`", cmd)
	default:
		return errors.NotValidf("unknown command, try `help`")
	}
	return nil
}

func (s *session) runFloat(cmd string, nums []float64) error {
	f := s.float
	report := func(prev, cur float64) { log.Infof("%s prev=%v cur=%v", cmd, prev, cur) }
	switch cmd {
	case "set":
		if err := need(nums, 1); err != nil {
			return err
		}
		f.Store(nums[0])
		log.Infof("set ok")
	case "swap":
		if err := need(nums, 1); err != nil {
			return err
		}
		log.Infof("swap prev=%v", f.Swap(nums[0]))
	case "cas":
		if err := need(nums, 2); err != nil {
			return err
		}
		prev, swapped := f.CompareAndSwap(nums[0], nums[1])
		log.Infof("cas swapped=%t prev=%v", swapped, prev)
	case "casdelta":
		if err := need(nums, 3); err != nil {
			return err
		}
		prev, swapped := f.TrySwapDelta(nums[0], nums[1], nums[2])
		log.Infof("casdelta swapped=%t prev=%v", swapped, prev)
	case "add":
		if err := need(nums, 1); err != nil {
			return err
		}
		prev, cur := f.Add(nums[0])
		report(prev, cur)
	case "sub":
		if err := need(nums, 1); err != nil {
			return err
		}
		prev, cur := f.Sub(nums[0])
		report(prev, cur)
	case "mul":
		if err := need(nums, 1); err != nil {
			return err
		}
		prev, cur := f.Mul(nums[0])
		report(prev, cur)
	case "div":
		if err := need(nums, 1); err != nil {
			return err
		}
		prev, cur := f.Div(nums[0])
		report(prev, cur)
	case "spin":
		if err := need(nums, 1); err != nil {
			return err
		}
		log.Infof("spin done value=%v", f.SpinWait(nums[0]))
	default:
		return errors.NotValidf("unknown command, try `help`")
	}
	return nil
}

// stress is the inline mini-contest: workers hammer the current cell with
// +1 and the final value is checked right here.
func (s *session) stress(args []string) error {
	nums, err := parseFloats(args)
	if err != nil {
		return errors.Trace(err)
	}
	if err = need(nums, 2); err != nil {
		return err
	}
	ops, workers := int(nums[0]), int(nums[1])
	if ops <= 0 || workers <= 0 {
		return errors.NotValidf("stress ops=%d workers=%d", ops, workers)
	}

	before := s.str()
	begin := time.Now()
	wg := sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				if s.kind == "word" {
					s.word.Update(func(v int64) int64 { return v + 1 })
				} else {
					s.float.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	d := time.Since(begin)
	total := ops * workers
	log.Infof("stress ops=%d workers=%d duration=%s ops/sec=%.0f before=%s after=%s",
		ops, workers, d, float64(total)/d.Seconds(), before, s.str())
	return nil
}
