package assets

import (
	"context"
	"crypto/md5" // #nosec G501 -- the remote index publishes md5 digests
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/fsutil"
	"github.com/dustin/go-humanize"
)

const (
	chunkSize       = 1 << 20
	indexFetchLimit = 30 * time.Second
	maxIndexBytes   = 64 << 20
	tempSuffix      = ".download"
	userAgent       = "tts-capability"
)

var (
	// ErrUnexpectedStatus indicates a non-200 answer from the voice host.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	// ErrChecksumMismatch indicates a downloaded file does not match its digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Options configures an Acquirer.
type Options struct {
	VoiceID    string
	IndexURL   string
	BaseURL    string
	ModelPath  string
	ConfigPath string
	Timeout    time.Duration
	Client     *http.Client
}

// Acquirer downloads the default voice once and records the outcome.
type Acquirer struct {
	opts   Options
	status *Status
	log    *logger.Logger
}

// NewAcquirer creates an acquirer writing to status. A nil Client uses
// http.DefaultClient.
func NewAcquirer(opts Options, status *Status, log *logger.Logger) *Acquirer {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}

	return &Acquirer{
		opts:   opts,
		status: status,
		log:    log,
	}
}

// Run drives the status to a terminal state and returns it. It does nothing
// when the status is already terminal, so calling it twice is harmless.
func (a *Acquirer) Run(ctx context.Context) Snapshot {
	if a.status.Snapshot().State != StateInProgress {
		return a.status.Snapshot()
	}

	if fsutil.FileExists(a.opts.ModelPath) && fsutil.FileExists(a.opts.ConfigPath) {
		a.log.Info("Default voice already present at %s, skipping download", a.opts.ModelPath)
		a.status.finish(StateNotNeeded, nil)

		return a.status.Snapshot()
	}

	started := time.Now()

	err := a.acquire(ctx)
	if err != nil {
		a.log.Error("Default voice '%s' acquisition failed: %v", a.opts.VoiceID, err)
		a.status.finish(StateFailed, err)

		return a.status.Snapshot()
	}

	a.log.Info("Default voice '%s' acquired in %s", a.opts.VoiceID, time.Since(started).Round(time.Millisecond))
	a.status.finish(StateDone, nil)

	return a.status.Snapshot()
}

func (a *Acquirer) acquire(ctx context.Context) error {
	index, err := a.fetchIndex(ctx)
	if err != nil {
		return err
	}

	model, config, err := index.Artifacts(a.opts.VoiceID)
	if err != nil {
		return err
	}

	err = a.download(ctx, config, a.opts.ConfigPath)
	if err != nil {
		return err
	}

	return a.download(ctx, model, a.opts.ModelPath)
}

func (a *Acquirer) fetchIndex(ctx context.Context) (Index, error) {
	ctx, cancel := context.WithTimeout(ctx, indexFetchLimit)
	defer cancel()

	body, err := a.get(ctx, a.opts.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voice index: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxIndexBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read voice index: %w", classifyNetError(ctx, err))
	}

	index, skipped, err := ParseIndex(data)
	if err != nil {
		return nil, err
	}

	if len(skipped) > 0 {
		a.log.Warn("Voice index: ignored %d malformed entries", len(skipped))
	}

	return index, nil
}

// download streams artifact into a temp file next to destination, verifying
// its digest, and renames it into place only when everything succeeded.
func (a *Acquirer) download(ctx context.Context, artifact RemoteArtifact, destination string) error {
	sourceURL, err := url.JoinPath(a.opts.BaseURL, artifact.Path)
	if err != nil {
		return fmt.Errorf("failed to build download url for '%s': %w", artifact.Path, err)
	}

	dir := filepath.Dir(destination)

	err = fsutil.EnsureDir(dir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	a.log.Info("Downloading %s (%s) to %s", sourceURL, humanize.IBytes(uint64(max(artifact.SizeBytes, 0))), destination)

	body, err := a.get(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("failed to download '%s': %w", artifact.Path, err)
	}
	defer body.Close()

	tempFile, err := os.CreateTemp(dir, filepath.Base(destination)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}

	tempPath := tempFile.Name()

	hash := md5.New() // #nosec G401
	buffer := make([]byte, chunkSize)

	written, copyErr := io.CopyBuffer(io.MultiWriter(tempFile, hash), body, buffer)
	closeErr := tempFile.Close()

	if copyErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to write '%s': %w", artifact.Path, classifyNetError(ctx, copyErr))
	}

	if closeErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to close temporary file for '%s': %w", artifact.Path, closeErr)
	}

	actual := hex.EncodeToString(hash.Sum(nil))
	if artifact.MD5Digest != "" && !strings.EqualFold(actual, artifact.MD5Digest) {
		_ = os.Remove(tempPath)

		return fmt.Errorf("%w for '%s': expected %s, got %s", ErrChecksumMismatch, artifact.Path, artifact.MD5Digest, actual)
	}

	err = os.Rename(tempPath, destination)
	if err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to move '%s' into place: %w", artifact.Path, err)
	}

	a.log.Info("Saved %s (%s)", destination, humanize.IBytes(uint64(written)))

	return nil
}

func (a *Acquirer) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := a.opts.Client.Do(req)
	if err != nil {
		return nil, classifyNetError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, fmt.Errorf("%w: %s from %s", ErrUnexpectedStatus, resp.Status, target)
	}

	return resp.Body, nil
}

// classifyNetError marks deadline failures as timeouts.
func classifyNetError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", core.ErrTimeout, err)
	}

	return err
}
