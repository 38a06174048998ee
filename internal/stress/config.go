package stress

import (
	"path/filepath"
	"runtime"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/atomic_value/log2"
)

const (
	KindWordUpdate = "word-update"      // Cell[int64] counter, Update(+1)
	KindFloatAdd   = "float-add"        // F64 accumulator, Add(delta)
	KindFloatRelay = "float-swap-delta" // F64 token ring via TrySwapDelta
	KindRefUpdate  = "ref-update"       // Ref[struct] counter, boxed Update
)

const (
	defaultOps        = 10000
	relayMaxDelta     = 0.5 // tolerance must discriminate neighbor tokens
	defaultRelayDelta = 0.25
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Parallel  int         `hcl:"parallel"` // scenarios running at once, default 1
	Scenarios []*Scenario `hcl:"scenario"`
	Sink      SinkConfig  `hcl:"sink"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

type SinkConfig struct {
	SqlitePath string `hcl:"sqlite_path"` // appends to history table
	JsonPath   string `hcl:"json_path"`   // JSON lines, "-" = stdout
}

// Scenario is one contention experiment: `workers` goroutines hammer a
// single container with `ops` operations each, then the final value is
// checked against the linearizable expectation.
type Scenario struct {
	Name    string  `hcl:"name,key"`
	Kind    string  `hcl:"kind"`
	Workers int     `hcl:"workers"` // default NumCPU
	Ops     int     `hcl:"ops"`     // per worker, default 10000
	Initial float64 `hcl:"initial"` // word kinds truncate; ignored by the relay, its token starts at 0
	Delta   float64 `hcl:"delta"`   // add step or relay tolerance
}

// normalize fills defaults and rejects contradictions. Called by the
// runner before use, so hand-built Scenarios in tests get the same
// treatment as decoded ones.
func (sc *Scenario) normalize() error {
	if sc.Name == "" {
		return errors.NotValidf("scenario without name")
	}
	switch sc.Kind {
	case KindWordUpdate, KindFloatAdd, KindRefUpdate:
		if sc.Delta == 0 {
			sc.Delta = 1
		}
	case KindFloatRelay:
		if sc.Delta == 0 {
			sc.Delta = defaultRelayDelta
		}
		if sc.Delta >= relayMaxDelta {
			return errors.NotValidf("scenario=%s delta=%v relay tolerance must be below %v", sc.Name, sc.Delta, relayMaxDelta)
		}
	case "":
		return errors.NotValidf("scenario=%s kind is required", sc.Name)
	default:
		return errors.NotValidf("scenario=%s kind=%s", sc.Name, sc.Kind)
	}
	if sc.Workers < 0 || sc.Ops < 0 {
		return errors.NotValidf("scenario=%s workers=%d ops=%d", sc.Name, sc.Workers, sc.Ops)
	}
	if sc.Workers == 0 {
		sc.Workers = runtime.NumCPU()
	}
	if sc.Ops == 0 {
		sc.Ops = defaultOps
	}
	return nil
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		log.Fatalf("config duplicate source=%s", source.Name)
	} else {
		log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	}
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
			return
		}
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, foldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
