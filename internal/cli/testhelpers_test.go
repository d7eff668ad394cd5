package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fmueller/voxscribe/internal/whisper"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	return runAppCommand(t, &appState{}, args)
}

func runAppCommand(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// writeTestConfig keeps command tests away from the user's real config file.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: error\n"+content), 0o644))
	return path
}

func writeMediaFiles(t *testing.T, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("media"), 0o644))
	}
}

type fakeEngine struct {
	mu       sync.Mutex
	requests []whisper.Request
	segments map[string][]string
	failOn   string
}

func (f *fakeEngine) Transcribe(_ context.Context, req whisper.Request) (whisper.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	name := filepath.Base(req.AudioPath)
	if name == f.failOn {
		return whisper.Result{}, errors.New("runtime exploded")
	}

	texts, ok := f.segments[name]
	if !ok {
		texts = []string{" transcript of " + name}
	}

	result := whisper.Result{Language: "en"}
	for i, text := range texts {
		result.Segments = append(result.Segments, whisper.Segment{ID: i, Text: text})
	}
	return result, nil
}

func (f *fakeEngine) audioNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.requests))
	for _, req := range f.requests {
		names = append(names, filepath.Base(req.AudioPath))
	}
	return names
}

func appWithEngine(engine whisper.Engine) *appState {
	return &appState{
		noProgress: true,
		newEngineFn: func(context.Context) (whisper.Engine, error) {
			return engine, nil
		},
	}
}
