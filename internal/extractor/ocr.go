package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

// TesseractEngine runs the tesseract CLI against uploaded artifacts. The
// binary check (availability + version) happens lazily on first use and at
// most once: concurrent first callers block on the same initialization.
// Each Recognize call spawns its own process with its own temp file, so
// concurrent recognition needs no further serialization.
type TesseractEngine struct {
	binary   string
	language string
	timeout  time.Duration
	logger   *utils.Logger

	initOnce sync.Once
	initErr  error
	initFn   func(ctx context.Context) error
}

func NewTesseractEngine(binary, language string, logger *utils.Logger) *TesseractEngine {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	e := &TesseractEngine{
		binary:   binary,
		language: language,
		timeout:  2 * time.Minute,
		logger:   logger,
	}
	e.initFn = e.checkBinary
	return e
}

func (e *TesseractEngine) checkBinary(ctx context.Context) error {
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return fmt.Errorf("tesseract binary not found (%s): %w", e.binary, err)
	}

	cmd := exec.CommandContext(ctx, path, "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tesseract version check failed: %w", err)
	}
	return nil
}

func (e *TesseractEngine) init(ctx context.Context) error {
	e.initOnce.Do(func() {
		e.initErr = e.initFn(ctx)
		if e.initErr != nil {
			e.logger.Error("OCR engine initialization failed", "error", e.initErr)
		} else {
			e.logger.Info("OCR engine initialized", "binary", e.binary, "language", e.language)
		}
	})
	return e.initErr
}

// Ready reports whether the OCR engine is usable. A false result means
// systemic unavailability, not a per-file failure.
func (e *TesseractEngine) Ready(ctx context.Context) bool {
	return e.init(ctx) == nil
}

// Recognize writes data to a temp file and runs tesseract over it, returning
// the recognized plain text.
func (e *TesseractEngine) Recognize(ctx context.Context, data []byte) (string, error) {
	if err := e.init(ctx); err != nil {
		return "", err
	}

	path, cleanup, err := saveTempArtifact(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer cleanup()

	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// "stdout" makes tesseract print recognized text instead of writing an
	// output file.
	cmd := exec.CommandContext(cmdCtx, e.binary, path, "stdout", "-l", e.language)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w - %s", err, stderr.String())
	}

	return strings.TrimSpace(stdout.String()), nil
}

func saveTempArtifact(r io.Reader) (string, func(), error) {
	tmpFile, err := os.CreateTemp("", "report-ocr-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp artifact: %w", err)
	}

	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}

	if _, err := io.Copy(tmpFile, r); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write temp artifact: %w", err)
	}

	return tmpFile.Name(), cleanup, nil
}
