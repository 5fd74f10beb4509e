package subprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Executor runs an execute effect's child process. Argument substitution
// (replace_args templating) happens before Run is called; this package only
// spawns the process, pipes stdin, and captures stdout.
type Executor struct{}

func NewExecutor() *Executor { return &Executor{} }

// Run spawns cfg.Command with the already-rendered args, feeding stdin to
// the child and returning its stdout on a zero exit status. A non-zero
// status or spawn failure is returned as an error, which terminates the
// chain per the effect's on-error semantics.
func (e *Executor) Run(ctx context.Context, cfg models.ExecuteConfig, args []string, stdin []byte) ([]byte, error) {
	l := logger.L().With("command", cfg.Command)

	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	if len(cfg.Vars) > 0 {
		cmd.Env = cmd.Environ()
		for k, v := range cfg.Vars {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
	cmd.Stdin = bytes.NewReader(stdin)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		l.Error("execute failed", "exit_code", exitCode, "duration", duration.String(), "stderr", stderrBuf.String())
		return nil, fmt.Errorf("command %q exited with code %d: %w", cfg.Command, exitCode, err)
	}

	l.Debug("execute finished", "duration", duration.String(), "stdout_len", stdoutBuf.Len())
	return stdoutBuf.Bytes(), nil
}

// ResolveArgs applies replace_args index substitution to a copy of cfg.Args;
// render renders a single templated value (e.g. via internal/template).
func ResolveArgs(cfg models.ExecuteConfig, render func(tmpl string) (string, error)) ([]string, error) {
	args := append([]string(nil), cfg.Args...)
	for idx, tmpl := range cfg.ReplaceArgs {
		if idx < 0 || idx >= len(args) {
			return nil, fmt.Errorf("replace_args index %d out of range for %d args", idx, len(args))
		}
		rendered, err := render(tmpl)
		if err != nil {
			return nil, fmt.Errorf("replace_args[%d]: %w", idx, err)
		}
		args[idx] = rendered
	}
	return args, nil
}
