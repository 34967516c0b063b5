package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

var commandContext = exec.CommandContext

// maxLogTail bounds how much engine stderr is retained for failure reports.
const maxLogTail = 64 * 1024

// Stats is one sample decoded from the engine's machine-readable progress
// stream. ProcessedMs is the cumulative output timestamp; the remaining
// fields are instantaneous values passed through as FFmpeg reports them.
type Stats struct {
	ProcessedMs int64
	Speed       float64
	FPS         float64
	Bitrate     string
}

// RunSpec describes a single engine invocation. Args is the full argument
// list excluding the progress plumbing, which the client owns. Both
// callbacks are optional and are invoked from the reader goroutines until
// Run returns.
type RunSpec struct {
	Args    []string
	OnStats func(Stats)
	OnLog   func(line string)
}

// RunResult reports how an invocation ended. A nonzero ExitCode is a normal
// outcome, not an error; Run returns an error only when the engine could not
// be launched or observed. Cancelled is set when the context ended the run.
type RunResult struct {
	ExitCode  int
	Cancelled bool
	LogTail   string
}

// Client defines conversion engine behaviour.
type Client interface {
	Run(ctx context.Context, spec RunSpec) (RunResult, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line engine.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Binary reports the engine binary the client launches.
func (c *CLI) Binary() string {
	return c.binary
}

// Run launches the engine and blocks until it exits. Progress blocks from
// stdout are decoded into Stats; stderr lines feed OnLog and the retained
// log tail.
func (c *CLI) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	if len(spec.Args) == 0 {
		return RunResult{}, errors.New("engine arguments required")
	}

	args := make([]string, 0, len(spec.Args)+3)
	args = append(args, "-progress", "pipe:1", "-nostats")
	args = append(args, spec.Args...)

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return RunResult{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return RunResult{}, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return RunResult{}, fmt.Errorf("start %s: %w", c.binary, err)
	}

	tail := newTailBuffer(maxLogTail)
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		readProgress(stdout, spec.OnStats)
	}()
	go func() {
		defer readers.Done()
		readLog(stderr, tail, spec.OnLog)
	}()
	readers.Wait()

	waitErr := cmd.Wait()
	result := RunResult{ExitCode: exitCode(waitErr), LogTail: tail.String()}
	if ctx.Err() != nil {
		result.Cancelled = true
		return result, nil
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return result, fmt.Errorf("wait for %s: %w", c.binary, waitErr)
		}
	}
	return result, nil
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func readLog(r io.Reader, tail *tailBuffer, onLog func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail.WriteLine(line)
		if onLog != nil {
			onLog(line)
		}
	}
}

// tailBuffer retains the most recent bytes written to it, discarding the
// oldest whole lines once the cap is exceeded.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) WriteLine(line string) {
	t.buf = append(t.buf, line...)
	t.buf = append(t.buf, '\n')
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
		if idx := bytes.IndexByte(t.buf, '\n'); idx >= 0 && idx+1 < len(t.buf) {
			t.buf = t.buf[idx+1:]
		}
	}
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}

var _ Client = (*CLI)(nil)
