package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/kiyonya/miocore/internal/java"
	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/maven"
	"github.com/kiyonya/miocore/internal/progress"
	"github.com/kiyonya/miocore/pkg/casstore"
)

// Pipeline runs the processor chain of a modern profile.
type Pipeline struct {
	Loader    string
	Profile   *Profile
	Side      string
	Libraries string
	Template  *Template

	// Sentinel marks processors replaced by a plain download.
	Sentinel string

	Java      java.Resolver
	JavaMajor int
	Runner    ProcessRunner
	Dir       string

	Tracker *progress.Tracker
	Phase   string
}

// Steps returns the processors that run on the pipeline's side, in
// declared order.
func (p *Pipeline) Steps() []Processor {
	var steps []Processor
	for _, proc := range p.Profile.Processors {
		if p.Sentinel != "" && proc.HasArg(p.Sentinel) {
			continue
		}
		if !proc.RunsOn(p.Side) {
			continue
		}
		steps = append(steps, proc)
	}
	return steps
}

// Resolve turns a processor into an invocation without the interpreter.
func (p *Pipeline) Resolve(proc Processor) (Invocation, error) {
	jar, err := maven.LocalPath(p.Libraries, proc.Jar)
	if err != nil {
		return Invocation{}, &UnresolvedProfileError{Loader: p.Loader, Field: "processor jar " + proc.Jar, Err: err}
	}
	classpath := []string{jar}
	for _, entry := range proc.Classpath {
		path, err := maven.LocalPath(p.Libraries, entry)
		if err != nil {
			return Invocation{}, &UnresolvedProfileError{Loader: p.Loader, Field: "classpath " + entry, Err: err}
		}
		classpath = append(classpath, path)
	}
	for _, path := range classpath {
		if _, err := os.Stat(path); err != nil {
			return Invocation{}, &MissingClasspathError{Processor: proc.Jar, Path: path}
		}
	}

	mainClass, err := MainClass(jar)
	if err != nil {
		return Invocation{}, &ProcessError{Processor: proc.Jar, ExitCode: -1, Err: err}
	}
	args, err := p.Template.ExpandAll(proc.Args)
	if err != nil {
		return Invocation{}, fmt.Errorf("processor %s: %w", proc.Jar, err)
	}
	return Invocation{Classpath: classpath, MainClass: mainClass, Args: args, Dir: p.Dir}, nil
}

// Run executes the steps sequentially. Cancellation is observed between
// steps only.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := log.With(logging.KeyLoader, p.Loader)
	steps := p.Steps()
	keys := make([]string, len(steps))
	for i, proc := range steps {
		keys[i] = strconv.Itoa(i) + ":" + proc.Jar
		p.Tracker.Report(progress.Update{Phase: p.Phase, Key: keys[i]})
	}

	var javaPath string
	for i, proc := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		outputs, err := p.outputs(proc)
		if err != nil {
			return fmt.Errorf("processor %s: %w", proc.Jar, err)
		}
		if len(outputs) > 0 && outputsValid(outputs) {
			logger.Info("processor outputs present, skipping", logging.KeyProcessor, proc.Jar)
			p.Tracker.Report(progress.Update{Phase: p.Phase, Key: keys[i], Progress: 1, Done: true})
			continue
		}

		inv, err := p.Resolve(proc)
		if err != nil {
			p.Tracker.Report(progress.Update{Phase: p.Phase, Key: keys[i], Done: true, Failed: true})
			return err
		}
		if javaPath == "" {
			if javaPath, err = p.Java.Resolve(ctx, p.JavaMajor); err != nil {
				return fmt.Errorf("processor %s: %w", proc.Jar, err)
			}
		}
		inv.Java = javaPath

		logger.Info("running processor", logging.KeyProcessor, proc.Jar, "step", i+1, "of", len(steps))
		output, err := p.Runner.Run(ctx, inv)
		if err == nil {
			err = verifyOutputs(outputs)
		}
		if err != nil {
			p.Tracker.Report(progress.Update{Phase: p.Phase, Key: keys[i], Done: true, Failed: true})
			return p.processError(proc, inv, output, err)
		}
		p.Tracker.Report(progress.Update{Phase: p.Phase, Key: keys[i], Progress: 1, Done: true})
	}
	return nil
}

func (p *Pipeline) processError(proc Processor, inv Invocation, output string, err error) error {
	code := -1
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}
	return &ProcessError{Processor: proc.Jar, MainClass: inv.MainClass, ExitCode: code, Output: output, Err: err}
}

// outputs resolves the declared path to hash pairs of proc.
func (p *Pipeline) outputs(proc Processor) (map[string]string, error) {
	if len(proc.Outputs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(proc.Outputs))
	for k, v := range proc.Outputs {
		path, err := p.Template.Expand(k)
		if err != nil {
			return nil, err
		}
		sum, err := p.Template.Expand(v)
		if err != nil {
			return nil, err
		}
		out[path] = sum
	}
	return out, nil
}

func outputsValid(outputs map[string]string) bool {
	return verifyOutputs(outputs) == nil
}

func verifyOutputs(outputs map[string]string) error {
	for path, sum := range outputs {
		ok, err := casstore.FileMatches(path, sum)
		if err != nil {
			return fmt.Errorf("verify output %s: %w", path, err)
		}
		if !ok {
			return fmt.Errorf("output %s does not match %s", path, sum)
		}
	}
	return nil
}
