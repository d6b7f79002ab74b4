package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor executes git commands
type Executor struct {
	workDir string
}

// NewExecutor creates a new git command executor
func NewExecutor(workDir string) *Executor {
	return &Executor{workDir: workDir}
}

// Execute runs a git command and returns the output
func (e *Executor) Execute(args ...string) (string, error) {
	return e.ExecuteContext(context.Background(), args...)
}

// ExecuteContext runs a git command that is killed when ctx is done
func (e *Executor) ExecuteContext(ctx context.Context, args ...string) (string, error) {
	stdout, stderr, err := e.run(ctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &CommandError{Args: args, Stderr: stderr, Err: err}
	}
	return stdout, nil
}

func (e *Executor) run(ctx context.Context, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if e.workDir != "" {
		cmd.Dir = e.workDir
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	return strings.TrimSpace(outBuf.String()), strings.TrimSpace(errBuf.String()), err
}

// CommandError is returned when git exits unsuccessfully
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("git %s failed: %v\nstderr: %s", strings.Join(e.Args, " "), e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsBareRepo checks if the given directory is a bare git repository
func IsBareRepo(dir string) bool {
	executor := NewExecutor(dir)
	output, err := executor.Execute("rev-parse", "--is-bare-repository")
	if err != nil {
		return false
	}
	return output == "true"
}
