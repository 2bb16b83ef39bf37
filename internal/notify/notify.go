// Package notify tells dependent services that installed extension files
// changed.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Nop ignores notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context) error { return nil }

// Command runs a shell snippet, e.g. "omd reload apache", with an
// in-process POSIX shell.
type Command struct {
	script string
	prog   *syntax.File
	dir    string
	env    []string
	logger *zap.Logger
}

// NewCommand parses script. dir is the working directory, env holds extra
// KEY=VALUE pairs added to the process environment.
func NewCommand(script, dir string, env []string, logger *zap.Logger) (*Command, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "notify_command")
	if err != nil {
		return nil, fmt.Errorf("notify command syntax error: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Command{
		script: script,
		prog:   prog,
		dir:    dir,
		env:    env,
		logger: logger,
	}, nil
}

// Notify runs the command. Its output is logged at debug level and
// included in the error on failure.
func (c *Command) Notify(ctx context.Context) error {
	var out bytes.Buffer
	env := append(os.Environ(), c.env...)

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &out, &out),
	}
	if c.dir != "" {
		opts = append(opts, interp.Dir(c.dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create notify interpreter: %w", err)
	}

	err = runner.Run(ctx, c.prog)
	c.logger.Debug("notify command finished",
		zap.String("command", c.script),
		zap.String("output", strings.TrimSpace(out.String())),
		zap.Error(err))
	if err != nil {
		return fmt.Errorf("notify command %q failed: %w (output: %s)", c.script, err, strings.TrimSpace(out.String()))
	}
	return nil
}
