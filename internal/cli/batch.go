package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fmueller/voxscribe/internal/media"
	"go.uber.org/zap"
)

// runBatch transcribes the recognized files of dir one at a time in name
// order and reports progress on status. The first failure aborts the loop;
// transcripts already written stay on disk.
func (a *appState) runBatch(ctx context.Context, status io.Writer, dir string) error {
	files, err := media.List(dir)
	if err != nil {
		return err
	}

	if strings.TrimSpace(a.output) != "" {
		a.log().Warn("--output is ignored in batch mode; transcripts are written next to each source file", zap.String("output", a.output))
	}

	a.log().Info("batch transcription started", zap.String("dir", dir), zap.Int("files", len(files)))
	fmt.Fprintf(status, "Found %d file(s) to transcribe\n", len(files))
	for i, source := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch interrupted after %d of %d file(s): %w", i, len(files), err)
		}

		transcript, err := a.transcribe(ctx, source)
		if err != nil {
			return fmt.Errorf("transcribe %s: %w", filepath.Base(source), err)
		}

		target := media.TranscriptPath(source)
		if err := writeTranscript(target, transcript); err != nil {
			return err
		}
		fmt.Fprintf(status, "[%d/%d] %s -> %s\n", i+1, len(files), filepath.Base(source), filepath.Base(target))
	}

	fmt.Fprintf(status, "Transcribed %d file(s)\n", len(files))
	return nil
}
