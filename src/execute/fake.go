package execute

import (
	"context"
	"sync"
)

// FakeRunner records commands and answers them from a script. Tests in
// other packages use it in place of ExecRunner.
type FakeRunner struct {
	mu       sync.Mutex
	Calls    []Command
	results  map[string][]*Result
	OnRun    func(cmd Command) // optional side effect, e.g. creating files
	Fallback *Result
}

// NewFakeRunner returns a runner that succeeds for every unscripted command.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		results:  make(map[string][]*Result),
		Fallback: &Result{Success: true},
	}
}

// Script queues results for commands whose Name equals name. Queued
// results are consumed in order; the last one repeats.
func (f *FakeRunner) Script(name string, results ...*Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = append(f.results[name], results...)
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd Command) *Result {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	queue := f.results[cmd.Name]
	var res *Result
	switch len(queue) {
	case 0:
		res = f.Fallback
	case 1:
		res = queue[0]
	default:
		res = queue[0]
		f.results[cmd.Name] = queue[1:]
	}
	onRun := f.OnRun
	f.mu.Unlock()

	if onRun != nil {
		onRun(cmd)
	}
	copied := *res
	return &copied
}

// Failed builds a Result for a command that exited with code.
func Failed(code int, stderr string) *Result {
	return &Result{ExitCode: code, Stderr: stderr}
}
