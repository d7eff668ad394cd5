package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/voxscribe/internal/whisper"
	"github.com/stretchr/testify/require"
)

func TestSingleFilePrintsTranscriptToStdout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMediaFiles(t, dir, "talk.mp3")
	engine := &fakeEngine{segments: map[string][]string{
		"talk.mp3": {"  Hello there.", "  General Kenobi.  "},
	}}

	stdout, stderr, err := runAppCommand(t, appWithEngine(engine), []string{"--config", writeTestConfig(t, ""), filepath.Join(dir, "talk.mp3")})
	require.NoError(t, err)
	require.Equal(t, "Hello there.  General Kenobi.\n", stdout)
	require.Empty(t, stderr)

	require.Len(t, engine.requests, 1)
	req := engine.requests[0]
	require.Equal(t, filepath.Join(dir, "talk.mp3"), req.AudioPath)
	require.Equal(t, "base.en", req.Model)
	require.Equal(t, "cpu", req.Device)
	require.Equal(t, "int8", req.ComputeType)
	require.Equal(t, 5, req.BeamSize)
	require.Equal(t, "auto", req.Language)
}

func TestSingleFileWritesOutputFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMediaFiles(t, dir, "lecture.MKV")
	target := filepath.Join(dir, "out", "lecture.txt")
	engine := &fakeEngine{segments: map[string][]string{"lecture.MKV": {" Welcome."}}}

	stdout, stderr, err := runAppCommand(t, appWithEngine(engine), []string{
		"--config", writeTestConfig(t, ""),
		"-o", target,
		"--model", "medium",
		"--language", "DE",
		filepath.Join(dir, "lecture.MKV"),
	})
	require.NoError(t, err)
	require.Empty(t, stdout)
	require.Equal(t, "Transcript saved to "+target+"\n", stderr)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "Welcome.", string(content))

	require.Equal(t, "medium", engine.requests[0].Model)
	require.Equal(t, "de", engine.requests[0].Language)
}

func TestConfigFileSuppliesDefaultsAndFlagsWin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMediaFiles(t, dir, "a.wav")
	configPath := writeTestConfig(t, "model: small.en\nengine:\n  beam_size: 2\n  compute_type: float32\n")

	engine := &fakeEngine{}
	_, _, err := runAppCommand(t, appWithEngine(engine), []string{"--config", configPath, filepath.Join(dir, "a.wav")})
	require.NoError(t, err)
	require.Equal(t, "small.en", engine.requests[0].Model)
	require.Equal(t, 2, engine.requests[0].BeamSize)
	require.Equal(t, "float32", engine.requests[0].ComputeType)

	override := &fakeEngine{}
	_, _, err = runAppCommand(t, appWithEngine(override), []string{"--config", configPath, "--model", "tiny.en", filepath.Join(dir, "a.wav")})
	require.NoError(t, err)
	require.Equal(t, "tiny.en", override.requests[0].Model)
}

func TestBlankTranscriptStillPrints(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMediaFiles(t, dir, "silence.wav")
	engine := &fakeEngine{segments: map[string][]string{"silence.wav": {"   "}}}

	stdout, _, err := runAppCommand(t, appWithEngine(engine), []string{"--config", writeTestConfig(t, ""), filepath.Join(dir, "silence.wav")})
	require.NoError(t, err)
	require.Equal(t, "\n", stdout)
}

func TestEngineFailurePropagates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMediaFiles(t, dir, "broken.flac")
	engine := &fakeEngine{failOn: "broken.flac"}

	stdout, _, err := runAppCommand(t, appWithEngine(engine), []string{"--config", writeTestConfig(t, ""), filepath.Join(dir, "broken.flac")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "runtime exploded")
	require.Empty(t, stdout)
}

func TestEngineConstructionFailurePropagates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMediaFiles(t, dir, "a.wav")
	app := &appState{
		noProgress: true,
		newEngineFn: func(context.Context) (whisper.Engine, error) {
			return nil, errors.New("transcription runtime whisper-ctranslate2 not found in PATH")
		},
	}

	_, _, err := runAppCommand(t, app, []string{"--config", writeTestConfig(t, ""), filepath.Join(dir, "a.wav")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found in PATH")
}

func TestBuildEngineSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "whisper-ctranslate2")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv(whisper.EnginePathEnv, exe)

	app := &appState{}
	engine, err := app.buildEngine(context.Background())
	require.NoError(t, err)
	runtimeEngine, ok := engine.(*whisper.RuntimeEngine)
	require.True(t, ok)
	require.Equal(t, exe, runtimeEngine.Executable)

	app = &appState{}
	app.settings().Engine.Backend = "grpc"
	_, err = app.buildEngine(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown backend")
}

func TestBuildEngineHTTPBackendChecksHealth(t *testing.T) {
	t.Parallel()

	app := &appState{}
	app.settings().Engine.Backend = "http"
	app.settings().Engine.URL = "http://127.0.0.1:1"

	_, err := app.buildEngine(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unreachable")
}

func TestEngineIsBuiltOncePerRun(t *testing.T) {
	t.Parallel()

	builds := 0
	engine := &fakeEngine{}
	app := &appState{
		noProgress: true,
		newEngineFn: func(context.Context) (whisper.Engine, error) {
			builds++
			return engine, nil
		},
	}

	for i := 0; i < 3; i++ {
		_, err := app.transcribeAudio(context.Background(), "clip.wav")
		require.NoError(t, err)
	}
	require.Equal(t, 1, builds)
	require.Len(t, engine.requests, 3)
}

func TestWriteTranscript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "out.txt")
	require.NoError(t, writeTranscript(path, "hello there"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello there", string(content))
}
