// Package bundle builds the hello function for the provided.al2023 runtime
// and packages it as a deployment archive.
package bundle

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// BinaryName is the executable the custom runtime starts.
const BinaryName = "bootstrap"

// DefaultPackage is the main package of the function.
const DefaultPackage = "./cmd/hello"

// Options configures Build.
type Options struct {
	// Dir is the module root the package is built from.
	Dir string
	// Package is the main package, DefaultPackage when empty.
	Package string
	// Arch is the target GOARCH, amd64 or arm64.
	Arch string
	// OutDir receives the binary and the archive.
	OutDir string
	// Run executes the compiler; tests replace it.
	Run RunFunc
	Logger *logrus.Logger
}

// RunFunc runs a command in dir with extra environment variables.
type RunFunc func(ctx context.Context, dir string, env []string, name string, args ...string) error

// Artifact is a built deployment archive.
type Artifact struct {
	Path   string
	SHA256 string
	Size   int64
}

// Key returns the object key of the archive under prefix.
func (a Artifact) Key(prefix string) string {
	return path.Join(prefix, a.SHA256+".zip")
}

func (a Artifact) String() string {
	return fmt.Sprintf("%s (%s, sha256 %s)", a.Path, humanize.Bytes(uint64(a.Size)), a.SHA256[:12])
}

// Build compiles the function and zips it.
func Build(ctx context.Context, opts Options) (Artifact, error) {
	if opts.Package == "" {
		opts.Package = DefaultPackage
	}
	if opts.Arch == "" {
		opts.Arch = "amd64"
	}
	if opts.Arch != "amd64" && opts.Arch != "arm64" {
		return Artifact{}, fmt.Errorf("unsupported architecture %q", opts.Arch)
	}
	if opts.Run == nil {
		opts.Run = execRun
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return Artifact{}, err
	}

	binary, err := filepath.Abs(filepath.Join(opts.OutDir, BinaryName))
	if err != nil {
		return Artifact{}, err
	}

	start := time.Now()
	env := []string{"GOOS=linux", "GOARCH=" + opts.Arch, "CGO_ENABLED=0"}
	args := []string{"build", "-tags", "lambda.norpc", "-trimpath", "-ldflags", "-s -w", "-o", binary, opts.Package}
	if err := opts.Run(ctx, opts.Dir, env, "go", args...); err != nil {
		return Artifact{}, fmt.Errorf("building %s: %w", opts.Package, err)
	}
	opts.Logger.WithFields(logrus.Fields{
		"package":  opts.Package,
		"arch":     opts.Arch,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Debug("built function")

	return Zip(binary, filepath.Join(opts.OutDir, "function.zip"))
}

// Zip writes binary into a new archive at dest as an executable named
// BinaryName.
func Zip(binary, dest string) (Artifact, error) {
	src, err := os.Open(binary)
	if err != nil {
		return Artifact{}, err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return Artifact{}, err
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("%s is a directory", binary)
	}

	out, err := os.Create(dest)
	if err != nil {
		return Artifact{}, err
	}
	defer out.Close()

	hash := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(out, hash))

	header := &zip.FileHeader{
		Name:   BinaryName,
		Method: zip.Deflate,
	}
	// Fixed timestamp so identical binaries give identical archives.
	header.Modified = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	header.SetMode(0o755)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return Artifact{}, err
	}
	if _, err := io.Copy(w, src); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := zw.Close(); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", dest, err)
	}

	stat, err := out.Stat()
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Path:   dest,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
		Size:   stat.Size(),
	}, nil
}

func execRun(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
