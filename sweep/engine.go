package sweep

import (
	"bytes"
	"context"
	"io"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/learnedindex/skewtools"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// NA marks a results field that does not apply to a run.
const NA = "NA"

// Engine runs one invocation of the index-lookup engine.
type Engine interface {
	Run(ctx context.Context, inv Invocation) (Metrics, error)
}

// Metrics are the four measurements an engine run reports. Raw keeps the
// fields exactly as printed so results rows carry no reformatting.
type Metrics struct {
	ModelSize        float64
	BuildTime        float64
	QueryTime        float64
	LastMileSearches float64
	Raw              [4]string
}

// ParseMetrics parses engine output: exactly one line of four
// tab-separated numbers.
func ParseMetrics(out string) (Metrics, error) {
	line := strings.TrimRight(out, "\r\n")
	if line == "" {
		return Metrics{}, errors.Wrap(skewtools.ErrFormat, "engine printed nothing")
	}
	if strings.ContainsAny(line, "\r\n") {
		return Metrics{}, errors.Wrapf(skewtools.ErrFormat, "engine printed %d lines, expected 1", strings.Count(line, "\n")+1)
	}
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return Metrics{}, errors.Wrapf(skewtools.ErrFormat, "engine printed %d fields, expected 4: %q", len(fields), line)
	}
	m := Metrics{}
	vals := []*float64{&m.ModelSize, &m.BuildTime, &m.QueryTime, &m.LastMileSearches}
	for i, f := range fields {
		f = strings.TrimSpace(f)
		v, err := cast.ToFloat64E(f)
		if err != nil {
			return Metrics{}, errors.Wrapf(skewtools.ErrFormat, "metric %d: %v", i, err)
		}
		*vals[i] = v
		m.Raw[i] = f
	}
	return m, nil
}

// ExecEngine runs engine binaries as child processes.
type ExecEngine struct {
	Dir     string        // binaries are looked up here; empty means PATH
	Timeout time.Duration // per invocation; zero means none
	Stderr  io.Writer     // receives the engine's stderr as well
	Logger  *log.Logger
}

// Run executes inv and parses its stdout. A run that outlives Timeout is
// killed and reported as ErrTimeout; a non-zero exit is ErrExternalProcess.
func (e *ExecEngine) Run(ctx context.Context, inv Invocation) (Metrics, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	bin := inv.Binary
	if e.Dir != "" {
		bin = filepath.Join(e.Dir, inv.Binary)
	}
	com := exec.CommandContext(ctx, bin, inv.Args...)
	com.WaitDelay = time.Second
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	com.Stdout = stdout
	com.Stderr = stderr
	if e.Stderr != nil {
		com.Stderr = io.MultiWriter(stderr, e.Stderr)
	}

	e.logf("running %s %s", bin, strings.Join(inv.Args, " "))
	start := time.Now()
	err := com.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return Metrics{}, errors.Wrapf(skewtools.ErrTimeout, "%s after %v", inv.Binary, e.Timeout)
	}
	if err != nil {
		return Metrics{}, errors.Wrapf(skewtools.ErrExternalProcess, "%s: %v, output: %s", inv.Binary, err, tail(stderr.Bytes(), 512))
	}
	e.logf("%s finished in %v", inv.Binary, time.Since(start))
	m, err := ParseMetrics(stdout.String())
	if err != nil {
		return Metrics{}, errors.Wrapf(err, "output of %s", inv.Binary)
	}
	return m, nil
}

func (e *ExecEngine) logf(format string, v ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, v...)
	}
}

func tail(b []byte, n int) []byte {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		return b[len(b)-n:]
	}
	return b
}
