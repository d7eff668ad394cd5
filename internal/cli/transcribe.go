package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxscribe/internal/config"
	"github.com/fmueller/voxscribe/internal/media"
	"github.com/fmueller/voxscribe/internal/whisper"
	"go.uber.org/zap"
)

// run writes transcripts to out and status lines to status, so stdout only
// ever carries transcript text.
func (a *appState) run(ctx context.Context, out, status io.Writer, input string) error {
	info, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("input not found: %s", input)
		}
		return fmt.Errorf("stat input: %w", err)
	}

	if a.batch {
		if !info.IsDir() {
			return fmt.Errorf("--batch requires a directory: %s", input)
		}
		return a.runBatch(ctx, status, input)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("input is not a file: %s (use --batch for directories)", input)
	}
	if err := media.Validate(input); err != nil {
		return err
	}
	return a.runSingle(ctx, out, status, input)
}

func (a *appState) runSingle(ctx context.Context, out, status io.Writer, input string) error {
	transcript, err := a.transcribe(ctx, input)
	if err != nil {
		return err
	}

	if strings.TrimSpace(a.output) == "" {
		fmt.Fprintln(out, transcript)
		return nil
	}

	if err := writeTranscript(a.output, transcript); err != nil {
		return err
	}
	a.log().Info("transcript written", zap.String("path", a.output))
	fmt.Fprintf(status, "Transcript saved to %s\n", a.output)
	return nil
}

func (a *appState) transcribe(ctx context.Context, audioPath string) (string, error) {
	transcript, err := a.transcribeAudio(ctx, audioPath)
	if err != nil {
		return "", err
	}
	if isBlankTranscript(transcript) {
		a.log().Warn(noSpeechHint(), zap.String("audio", audioPath))
	}
	return transcript, nil
}

func (a *appState) transcribeAudio(ctx context.Context, audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)

	engine, err := a.ensureEngine(ctx)
	if err != nil {
		return "", err
	}

	cfg := a.settings()
	req := whisper.Request{
		AudioPath:   audioPath,
		Model:       cfg.Model,
		Device:      cfg.Engine.Device,
		ComputeType: cfg.Engine.ComputeType,
		BeamSize:    cfg.Engine.BeamSize,
		Language:    a.language,
	}

	a.log().Info("transcribing...",
		zap.String("audio", audioPath),
		zap.String("model", req.Model),
		zap.String("backend", cfg.Engine.Backend),
		zap.String("language", a.language),
	)
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing "+filepath.Base(audioPath))
	started := time.Now()

	result, err := engine.Transcribe(ctx, req)
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.String("audio", audioPath), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	a.log().Info("transcription finished",
		zap.String("audio", audioPath),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("segments", len(result.Segments)),
		zap.String("detected_language", result.Language),
	)

	return result.Text(), nil
}

// ensureEngine builds the engine once per run; batch mode reuses it.
func (a *appState) ensureEngine(ctx context.Context) (whisper.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}

	newEngineFn := a.newEngineFn
	if newEngineFn == nil {
		newEngineFn = a.buildEngine
	}

	engine, err := newEngineFn(ctx)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	return engine, nil
}

func (a *appState) buildEngine(ctx context.Context) (whisper.Engine, error) {
	cfg := a.settings()
	a.warnLanguageMismatch(cfg.Model)

	switch cfg.Engine.Backend {
	case config.BackendHTTP:
		engine := whisper.NewSidecarEngine(cfg.Engine.URL, cfg.Engine.Timeout, a.log())
		if err := engine.Healthy(ctx); err != nil {
			return nil, err
		}
		return engine, nil
	case config.BackendCLI, "":
		return whisper.NewRuntimeEngine(cfg.Engine.Path, a.log())
	default:
		return nil, fmt.Errorf("unknown backend %q (supported: %s, %s)", cfg.Engine.Backend, config.BackendCLI, config.BackendHTTP)
	}
}

func (a *appState) warnLanguageMismatch(modelName string) {
	model, ok := whisper.LookupModel(modelName)
	if !ok || !model.EnglishOnly {
		return
	}
	if a.language == "auto" || a.language == "en" {
		return
	}
	a.log().Warn("model only supports English; language hint may be ignored", zap.String("model", model.Name), zap.String("language", a.language))
}

func writeTranscript(path, transcript string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(transcript), 0o644); err != nil {
		return fmt.Errorf("write transcript %s: %w", path, err)
	}
	return nil
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
