package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"convoke/internal/logging"
)

// Executor materializes scripts to an executor-owned temp directory and
// runs them under the platform interpreter.
type Executor struct {
	dir string
	log *zap.Logger
}

// New creates an executor rooted at dir; an empty dir uses a fresh
// directory under the OS temp root.
func New(dir string) (*Executor, error) {
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "convoke-scripts-")
		if err != nil {
			return nil, fmt.Errorf("create script directory: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create script directory: %w", err)
	}
	return &Executor{dir: dir, log: logging.Named("executor")}, nil
}

// interpreter resolves the command line for a platform's script file.
func interpreter(platform, scriptPath string, extraArgs []string) (string, []string, error) {
	switch platform {
	case "bash":
		return "bash", append([]string{scriptPath}, extraArgs...), nil
	case "powershell":
		bin := "pwsh"
		if _, err := exec.LookPath(bin); err != nil {
			bin = "powershell"
		}
		args := []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File", scriptPath}
		return bin, append(args, extraArgs...), nil
	case "applescript":
		return "osascript", append([]string{scriptPath}, extraArgs...), nil
	default:
		return "", nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

func scriptExtension(platform string) string {
	switch platform {
	case "powershell":
		return ".ps1"
	case "applescript":
		return ".applescript"
	default:
		return ".sh"
	}
}

// Run executes the prepared script. The script file is removed on every
// path out of this function.
func (e *Executor) Run(ctx context.Context, p Prepared) (Result, error) {
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = defaultTimeoutSeconds
	}
	if p.GracePeriod <= 0 {
		p.GracePeriod = defaultGracePeriod
	}
	if p.ResourceSampleInterval <= 0 {
		p.ResourceSampleInterval = defaultSampleInterval
	}
	if p.MaxCapturedBytes <= 0 {
		p.MaxCapturedBytes = defaultMaxCapturedBytes
	}

	scriptPath := filepath.Join(e.dir, uuid.NewString()+scriptExtension(p.Platform))
	if err := os.WriteFile(scriptPath, []byte(p.Script), 0o700); err != nil {
		return Result{}, fmt.Errorf("write script file: %w", err)
	}
	defer os.Remove(scriptPath)

	bin, args, err := interpreter(p.Platform, scriptPath, p.InterpreterArgs)
	if err != nil {
		return Result{ErrorKind: ErrSpawnFailed}, err
	}

	cmd := exec.Command(bin, args...)
	cmd.Dir = p.WorkingDir
	if len(p.Env) > 0 {
		env := os.Environ()
		for k, v := range p.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	setupProcessGroup(cmd)

	stdout := newLimitedWriter(int64(p.MaxCapturedBytes))
	stderr := newLimitedWriter(int64(p.MaxCapturedBytes))
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{ErrorKind: ErrSpawnFailed}, fmt.Errorf("spawn %s: %w", bin, err)
	}
	pid := cmd.Process.Pid
	e.log.Debug("script started",
		zap.String("platform", p.Platform),
		zap.Int("pid", pid),
		zap.Int("timeoutSeconds", p.TimeoutSeconds))

	// Resource sampler runs until the process exits or Run resolves.
	samplerDone := make(chan struct{})
	samplerQuit := make(chan struct{})
	var sampleMu sync.Mutex
	var peak usageSample
	go func() {
		defer close(samplerDone)
		ticker := time.NewTicker(p.ResourceSampleInterval)
		defer ticker.Stop()
		var prev cpuSample
		for {
			select {
			case <-samplerQuit:
				return
			case <-ticker.C:
			}
			s, cpu, ok := sampleUsage(pid, prev, p.ResourceSampleInterval)
			if !ok {
				return
			}
			prev = cpu
			sampleMu.Lock()
			peak.merge(s)
			sampleMu.Unlock()
		}
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	timeout := time.NewTimer(time.Duration(p.TimeoutSeconds) * time.Second)
	defer timeout.Stop()

	var kind ErrorKind
	var waitErr error

	select {
	case waitErr = <-waitDone:
	case <-timeout.C:
		kind = ErrTimedOut
		waitErr = e.terminateAndReap(cmd, waitDone, p.GracePeriod)
	case <-cancelChan(p.Cancel):
		kind = ErrCancelled
		waitErr = e.terminateAndReap(cmd, waitDone, p.GracePeriod)
	case <-ctx.Done():
		kind = ErrCancelled
		waitErr = e.terminateAndReap(cmd, waitDone, p.GracePeriod)
	}

	close(samplerQuit)
	<-samplerDone
	wall := time.Since(start)

	res := Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.Discarded(),
		StderrTruncated: stderr.Discarded(),
		ErrorKind:       kind,
		Metrics:         Metrics{WallTimeMs: wall.Milliseconds()},
	}

	sampleMu.Lock()
	peak.fill(&res.Metrics)
	sampleMu.Unlock()

	switch {
	case kind != ErrNone:
		// timeout or cancel already classified; best-effort exit code
		res.ExitCode = exitCodeOf(waitErr)
		if res.ExitCode == 0 {
			res.ExitCode = -1
		}
	case waitErr == nil:
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.ErrorKind = ErrNonZeroExit
		} else {
			return res, fmt.Errorf("wait: %w", waitErr)
		}
	}

	e.log.Debug("script finished",
		zap.Int("pid", pid),
		zap.Int("exitCode", res.ExitCode),
		zap.String("errorKind", string(res.ErrorKind)),
		zap.Int64("wallTimeMs", res.Metrics.WallTimeMs))
	return res, nil
}

// terminateAndReap sends the graceful termination signal, waits out the
// grace period, then force-kills. Always returns the process wait
// error.
func (e *Executor) terminateAndReap(cmd *exec.Cmd, waitDone <-chan error, grace time.Duration) error {
	terminate(cmd)
	select {
	case err := <-waitDone:
		return err
	case <-time.After(grace):
		kill(cmd)
		return <-waitDone
	}
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 0
}

// cancelChan normalizes a possibly-nil cancel channel; nil blocks
// forever.
func cancelChan(c <-chan struct{}) <-chan struct{} {
	if c != nil {
		return c
	}
	return make(chan struct{})
}
