package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	EnginePathEnv     = "VOXSCRIBE_ENGINE_PATH"
	runtimeBinaryBase = "whisper-ctranslate2"
)

// RuntimeEngine runs the faster-whisper command-line runtime once per file
// and reads back the JSON document it writes.
type RuntimeEngine struct {
	Executable string
	Logger     *zap.Logger
}

func NewRuntimeEngine(configuredPath string, logger *zap.Logger) (*RuntimeEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(EnginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", EnginePathEnv, err)
		}
		return &RuntimeEngine{Executable: override, Logger: logger}, nil
	}

	exe, err := ResolveRuntimePath(configuredPath)
	if err != nil {
		return nil, err
	}
	return &RuntimeEngine{Executable: exe, Logger: logger}, nil
}

// ResolveRuntimePath prefers an explicitly configured executable and falls
// back to a PATH lookup.
func ResolveRuntimePath(configuredPath string) (string, error) {
	if configured := strings.TrimSpace(configuredPath); configured != "" {
		if err := ensureExecutable(configured); err != nil {
			return "", fmt.Errorf("configured engine path is not executable: %w", err)
		}
		return configured, nil
	}

	found, err := exec.LookPath(runtimeBinaryName())
	if err != nil {
		return "", fmt.Errorf("transcription runtime %s not found in PATH; install it with `pip install whisper-ctranslate2` or set %s", runtimeBinaryName(), EnginePathEnv)
	}
	return found, nil
}

// RuntimeArgs builds the argv passed to the runtime, excluding the
// executable itself.
func RuntimeArgs(req Request, outputDir string) []string {
	req = req.withDefaults()

	args := []string{
		req.AudioPath,
		"--model", req.Model,
		"--device", req.Device,
		"--compute_type", req.ComputeType,
		"--beam_size", strconv.Itoa(req.BeamSize),
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if req.wantsLanguage() {
		args = append(args, "--language", req.Language)
	}
	return args
}

func (e *RuntimeEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, errors.New("audio path is required")
	}

	if err := ensureExecutable(e.Executable); err != nil {
		return Result{}, fmt.Errorf("transcription runtime missing or not executable: %w", err)
	}

	outputDir, err := os.MkdirTemp("", "voxscribe-")
	if err != nil {
		return Result{}, fmt.Errorf("create runtime output directory: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := RuntimeArgs(req, outputDir)
	cmd := exec.CommandContext(ctx, e.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	e.log().Debug("running transcription runtime", zap.String("engine", e.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return Result{}, fmt.Errorf("transcription runtime at %s is missing required shared libraries (%s); reinstall CTranslate2 for this platform", e.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return Result{}, fmt.Errorf("transcription runtime crashed with an illegal CPU instruction; " +
				"your CPU may lack required instruction set extensions; " +
				"set " + EnginePathEnv + " to a runtime built for your CPU")
		}
		return Result{}, fmt.Errorf("transcribe %s failed: %w (%s)", req.AudioPath, err, errText)
	}

	return readRuntimeOutput(filepath.Join(outputDir, runtimeOutputName(req.AudioPath)))
}

func (e *RuntimeEngine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func readRuntimeOutput(path string) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read runtime output: %w", err)
	}

	var result Result
	if err := json.Unmarshal(content, &result); err != nil {
		return Result{}, fmt.Errorf("decode runtime output %s: %w", filepath.Base(path), err)
	}
	return result, nil
}

func runtimeOutputName(audioPath string) string {
	base := filepath.Base(audioPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}

func runtimeBinaryName() string {
	if runtime.GOOS == "windows" {
		return runtimeBinaryBase + ".exe"
	}
	return runtimeBinaryBase
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
		"libctranslate2",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
