package stress

import (
	"database/sql"
	"io"
	"os"

	"github.com/juju/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"
)

// Sink records scenario results somewhere durable. Implementations are
// used by one goroutine at a time.
type Sink interface {
	Record(Result) error
	Close() error
}

// Sinks fans one Record out to all members, keeps going past failures
// and folds them into one error.
type Sinks []Sink

func (ss Sinks) Record(r Result) error {
	errs := make([]error, 0, len(ss))
	for _, s := range ss {
		errs = append(errs, s.Record(r))
	}
	return foldErrors(errs)
}

func (ss Sinks) Close() error {
	errs := make([]error, 0, len(ss))
	for _, s := range ss {
		errs = append(errs, s.Close())
	}
	return foldErrors(errs)
}

// Open builds the configured sinks. json_path "-" means stdout, which
// Close then leaves open.
func (sc SinkConfig) Open() (Sinks, error) {
	ss := make(Sinks, 0, 2)
	if sc.SqlitePath != "" {
		s, err := NewSqliteSink(sc.SqlitePath)
		if err != nil {
			return nil, errors.Trace(err)
		}
		ss = append(ss, s)
	}
	switch sc.JsonPath {
	case "":
	case "-":
		ss = append(ss, NewJsonSink(struct{ io.Writer }{os.Stdout}))
	default:
		f, err := os.OpenFile(sc.JsonPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			ss.Close()
			return nil, errors.Annotatef(err, "sink json_path=%s", sc.JsonPath)
		}
		ss = append(ss, NewJsonSink(f))
	}
	return ss, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stress_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	begin_ns INTEGER NOT NULL,
	scenario TEXT NOT NULL,
	kind TEXT NOT NULL,
	workers INTEGER NOT NULL,
	ops INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	ops_per_sec REAL NOT NULL,
	final REAL NOT NULL,
	expect REAL NOT NULL,
	verified INTEGER NOT NULL,
	aborted INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS stress_history_scenario ON stress_history(scenario, begin_ns);`

const sqliteInsert = `INSERT INTO stress_history
(begin_ns, scenario, kind, workers, ops, duration_ns, ops_per_sec, final, expect, verified, aborted)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SqliteSink appends results to a history table, one file per bench box,
// so regressions are diffable across commits.
type SqliteSink struct {
	db *sql.DB
}

func NewSqliteSink(path string) (*SqliteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Annotatef(err, "sqlite open path=%s", path)
	}
	if _, err = db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Annotatef(err, "sqlite schema path=%s", path)
	}
	return &SqliteSink{db: db}, nil
}

func (s *SqliteSink) Record(r Result) error {
	_, err := s.db.Exec(sqliteInsert,
		r.Begin, r.Scenario, r.Kind, r.Workers, r.Ops,
		int64(r.Duration), r.OpsPerSec, r.Final, r.Expect, r.Verified, r.Aborted)
	return errors.Annotatef(err, "sqlite insert scenario=%s", r.Scenario)
}

func (s *SqliteSink) Close() error { return s.db.Close() }

// JsonSink emits one JSON object per line, for jq and friends.
type JsonSink struct {
	w io.Writer
}

func NewJsonSink(w io.Writer) *JsonSink { return &JsonSink{w: w} }

func (s *JsonSink) Record(r Result) error {
	b, err := sonnet.Marshal(r)
	if err != nil {
		return errors.Annotatef(err, "json marshal scenario=%s", r.Scenario)
	}
	b = append(b, '\n')
	_, err = s.w.Write(b)
	return errors.Annotatef(err, "json write scenario=%s", r.Scenario)
}

func (s *JsonSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
