// Package media knows which files the transcription engine accepts.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrNoMediaFiles         = errors.New("no files found")
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

var audioExtensions = []string{".m4a", ".mp3", ".wav", ".flac", ".ogg", ".aac", ".wma"}

var videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".flv"}

var kinds = buildKinds()

func buildKinds() map[string]Kind {
	out := make(map[string]Kind, len(audioExtensions)+len(videoExtensions))
	for _, ext := range audioExtensions {
		out[ext] = KindAudio
	}
	for _, ext := range videoExtensions {
		out[ext] = KindVideo
	}
	return out
}

// Extensions returns every recognized extension, audio first.
func Extensions() []string {
	out := make([]string, 0, len(audioExtensions)+len(videoExtensions))
	out = append(out, audioExtensions...)
	return append(out, videoExtensions...)
}

// KindOf reports whether path carries a recognized extension, ignoring case.
func KindOf(path string) (Kind, bool) {
	kind, ok := kinds[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}

func IsSupported(path string) bool {
	_, ok := KindOf(path)
	return ok
}

// Validate returns ErrUnsupportedExtension wrapped with the offending
// extension when path cannot be handed to the engine.
func Validate(path string) error {
	if IsSupported(path) {
		return nil
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Errorf("%w %q for %s (supported: %s)", ErrUnsupportedExtension, ext, path, strings.Join(Extensions(), ", "))
}

// List returns the recognized regular files directly inside dir, sorted by
// file name. Symlinks are followed; subdirectories are not descended into.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !IsSupported(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			// Dangling links and directories named like media are skipped.
			continue
		}
		files = append(files, path)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoMediaFiles, dir)
	}

	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files, nil
}

// TranscriptPath returns the sibling .txt path for a source media file.
func TranscriptPath(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + ".txt"
}
