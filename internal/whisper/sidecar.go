package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultSidecarURL     = "http://localhost:8387"
	defaultSidecarTimeout = 10 * time.Minute
	requestIDHeader       = "X-Request-ID"
)

// SidecarEngine posts audio to a faster-whisper HTTP service that keeps
// the model loaded between calls.
type SidecarEngine struct {
	URL    string
	Client *http.Client
	Logger *zap.Logger
}

type sidecarResponse struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
}

func NewSidecarEngine(url string, timeout time.Duration, logger *zap.Logger) *SidecarEngine {
	if strings.TrimSpace(url) == "" {
		url = DefaultSidecarURL
	}
	if timeout <= 0 {
		timeout = defaultSidecarTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SidecarEngine{
		URL:    strings.TrimRight(url, "/"),
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Healthy reports whether GET /health answers 200.
func (s *SidecarEngine) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("transcription service at %s unreachable: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcription service at %s unhealthy: status %d", s.URL, resp.StatusCode)
	}
	return nil
}

func (s *SidecarEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, errors.New("audio path is required")
	}
	req = req.withDefaults()

	body, contentType, err := buildSidecarForm(req)
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL+"/transcribe", body)
	if err != nil {
		body.Close()
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set(requestIDHeader, requestID)

	s.log().Debug("posting audio to transcription service",
		zap.String("url", s.URL),
		zap.String("request_id", requestID),
		zap.String("audio", req.AudioPath),
		zap.String("model", req.Model),
	)

	resp, err := s.client().Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("transcription service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode transcription response: %w", err)
	}

	result := Result{Segments: decoded.Segments, Language: decoded.Language, Duration: decoded.Duration}
	if len(result.Segments) == 0 && strings.TrimSpace(decoded.Text) != "" {
		// Services that only return the full text still yield one segment.
		result.Segments = []Segment{{Text: decoded.Text, End: decoded.Duration}}
	}
	return result, nil
}

// buildSidecarForm streams the multipart form through a pipe so large
// video files are never held in memory. The transport closes the returned
// reader, which also stops the writer goroutine.
func buildSidecarForm(req Request) (io.ReadCloser, string, error) {
	audio, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}

	fields := [][2]string{
		{"model", req.Model},
		{"device", req.Device},
		{"compute_type", req.ComputeType},
		{"beam_size", strconv.Itoa(req.BeamSize)},
	}
	if req.wantsLanguage() {
		fields = append(fields, [2]string{"language", req.Language})
	}

	reader, pipe := io.Pipe()
	writer := multipart.NewWriter(pipe)
	go func() {
		defer audio.Close()
		pipe.CloseWithError(writeSidecarForm(writer, audio, filepath.Base(req.AudioPath), fields))
	}()

	return reader, writer.FormDataContentType(), nil
}

func writeSidecarForm(writer *multipart.Writer, audio io.Reader, name string, fields [][2]string) error {
	part, err := writer.CreateFormFile("audio", name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("write audio data: %w", err)
	}

	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return fmt.Errorf("write form field %s: %w", field[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}
	return nil
}

func (s *SidecarEngine) client() *http.Client {
	if s.Client == nil {
		return &http.Client{Timeout: defaultSidecarTimeout}
	}
	return s.Client
}

func (s *SidecarEngine) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
