package astgrep

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
)

// DefaultBinaryVersion is the ast-grep release fetched when no system binary
// is available.
const DefaultBinaryVersion = "0.38.7"

const releaseURLBase = "https://github.com/ast-grep/ast-grep/releases/download"

// bundledDirName is created next to the server's own executable; it persists
// across restarts and is the only state this package writes outside the temp
// directory.
const bundledDirName = "bundled_binaries"

// BinarySource records where a resolved binary came from.
type BinarySource string

const (
	SourceBundled    BinarySource = "bundled"
	SourceSystem     BinarySource = "system"
	SourceDownloaded BinarySource = "downloaded"
)

// BinaryHandle is a resolved, ready-to-run ast-grep executable.
type BinaryHandle struct {
	Path   string
	Source BinarySource
}

// BinaryManager locates, downloads, and caches the ast-grep executable for
// the current platform. Resolution happens at most once per process: the
// first caller performs the probe/download and every concurrent or later
// caller shares the result. A failed resolution is not cached, so a later
// call can retry after a transient network error.
type BinaryManager struct {
	version    string
	binaryDir  string
	binaryPath string
	httpClient *http.Client

	group    singleflight.Group
	resolved atomic.Pointer[BinaryHandle] // set once by the singleflight callback, read anywhere
}

// NewBinaryManager creates a manager caching bundled binaries next to the
// running executable.
func NewBinaryManager(version string) (*BinaryManager, error) {
	if version == "" {
		version = DefaultBinaryVersion
	}

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot determine executable path: %w", err)
	}
	binaryDir := filepath.Join(filepath.Dir(exePath), bundledDirName)

	return &BinaryManager{
		version:    version,
		binaryDir:  binaryDir,
		binaryPath: filepath.Join(binaryDir, binaryName()),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// NewBinaryManagerAt pins the bundled directory instead of deriving it from
// os.Executable, for callers that manage the cache location themselves.
func NewBinaryManagerAt(version, binaryDir string) *BinaryManager {
	return &BinaryManager{
		version:    version,
		binaryDir:  binaryDir,
		binaryPath: filepath.Join(binaryDir, binaryName()),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// EnsureBinary guarantees a runnable ast-grep path, preferring the bundled
// cache, then the system PATH, then a fresh platform-matched download.
// Concurrent first callers share a single probe/download.
func (m *BinaryManager) EnsureBinary(ctx context.Context) (string, error) {
	result, err, _ := m.group.Do("ensure", func() (interface{}, error) {
		if handle := m.resolved.Load(); handle != nil {
			return handle, nil
		}
		handle, err := m.resolve(ctx)
		if err != nil {
			return nil, err
		}
		m.resolved.Store(handle)
		return handle, nil
	})
	if err != nil {
		return "", err
	}
	return result.(*BinaryHandle).Path, nil
}

func (m *BinaryManager) resolve(ctx context.Context) (*BinaryHandle, error) {
	if m.bundledExists() {
		logging.Debug("using bundled ast-grep", "path", m.binaryPath)
		return &BinaryHandle{Path: m.binaryPath, Source: SourceBundled}, nil
	}

	if path, err := exec.LookPath(baseBinaryName); err == nil {
		logging.Debug("using system ast-grep", "path", path)
		return &BinaryHandle{Path: path, Source: SourceSystem}, nil
	}

	logging.Info("downloading ast-grep", "version", m.version)
	if err := m.download(ctx); err != nil {
		return nil, err
	}
	return &BinaryHandle{Path: m.binaryPath, Source: SourceDownloaded}, nil
}

// BinaryPath returns a path worth trying without forcing a download. It never
// fails: after the bundled cache, the system PATH, and a fixed set of common
// install locations, it falls back to the bare binary name and lets the
// eventual exec report the real problem.
func (m *BinaryManager) BinaryPath() string {
	if handle := m.resolved.Load(); handle != nil {
		return handle.Path
	}
	if m.bundledExists() {
		return m.binaryPath
	}
	if path, err := exec.LookPath(baseBinaryName); err == nil {
		return path
	}
	for _, candidate := range commonInstallPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return baseBinaryName
}

var commonInstallPaths = []string{
	"/usr/local/bin/ast-grep",
	"/usr/bin/ast-grep",
	"/opt/homebrew/bin/ast-grep",
	"/usr/local/cargo/bin/ast-grep",
}

func (m *BinaryManager) bundledExists() bool {
	info, err := os.Stat(m.binaryPath)
	return err == nil && info.Mode().IsRegular()
}

func (m *BinaryManager) download(ctx context.Context) error {
	url, err := m.downloadURL()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.binaryDir, 0o755); err != nil {
		return fmt.Errorf("cannot create binary directory %s: %w", m.binaryDir, err)
	}

	// Guard against a second server process downloading to the same
	// destination; whoever loses the race finds the file already in place.
	lock := flock.New(filepath.Join(m.binaryDir, ".download.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("cannot lock binary directory: %w", err)
	}
	defer lock.Unlock()

	if m.bundledExists() {
		return nil
	}

	logging.Info("fetching release archive", "url", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d from %s", resp.StatusCode, url)
	}

	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading release archive: %w", err)
	}

	binary, err := extractBinary(archive)
	if err != nil {
		return err
	}

	if err := os.WriteFile(m.binaryPath, binary, 0o755); err != nil {
		return fmt.Errorf("writing bundled binary: %w", err)
	}
	logging.Info("bundled ast-grep installed", "path", m.binaryPath)
	return nil
}

func (m *BinaryManager) downloadURL() (string, error) {
	suffix, err := platformSuffix(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/app-%s.zip", releaseURLBase, m.version, suffix), nil
}

// platformSuffix maps a GOOS/GOARCH pair to the release artifact's target
// triple. Unsupported pairs are fatal, not retried.
func platformSuffix(goos, goarch string) (string, error) {
	switch goos + "/" + goarch {
	case "linux/amd64":
		return "x86_64-unknown-linux-gnu", nil
	case "linux/arm64":
		return "aarch64-unknown-linux-gnu", nil
	case "darwin/amd64":
		return "x86_64-apple-darwin", nil
	case "darwin/arm64":
		return "aarch64-apple-darwin", nil
	case "windows/amd64":
		return "x86_64-pc-windows-msvc", nil
	case "windows/386":
		return "i686-pc-windows-msvc", nil
	default:
		return "", fmt.Errorf("unsupported platform: %s %s", goos, goarch)
	}
}

// extractBinary pulls the single ast-grep executable out of a release
// archive. Release conventions differ per platform, so zip is tried first
// and gzip+tar is the fallback.
func extractBinary(archive []byte) ([]byte, error) {
	binary, zipErr := extractFromZip(archive)
	if zipErr == nil {
		return binary, nil
	}
	logging.Warn("zip extraction failed, trying tar.gz", "err", zipErr)

	binary, tarErr := extractFromTarGz(archive)
	if tarErr == nil {
		return binary, nil
	}
	return nil, fmt.Errorf("cannot extract binary: zip: %v; tar.gz: %v", zipErr, tarErr)
}

func extractFromZip(archive []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, err
	}
	for _, file := range reader.File {
		if !isBinaryMember(file.Name) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found in zip archive", baseBinaryName)
}

func extractFromTarGz(archive []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg || !isBinaryMember(header.Name) {
			continue
		}
		return io.ReadAll(tr)
	}
	return nil, fmt.Errorf("%s not found in tar.gz archive", baseBinaryName)
}

// isBinaryMember matches the expected executable name at any nesting depth,
// tolerating both path separator conventions and the Windows .exe suffix.
func isBinaryMember(name string) bool {
	base := name
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		base = name[idx+1:]
	}
	return base == baseBinaryName || base == baseBinaryName+".exe"
}

const baseBinaryName = "ast-grep"

func binaryName() string {
	if runtime.GOOS == "windows" {
		return baseBinaryName + ".exe"
	}
	return baseBinaryName
}
