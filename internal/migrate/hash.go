package migrate

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

// hasher computes file digests for the verification pass. A tool-backed
// hasher shells out; an argv-less hasher digests in-process with BLAKE3.
type hasher struct {
	name string
	argv []string

	run util.Runner
}

// hashTools lists the PATH candidates in preference order: the xxhash family
// for speed, then the stronger but slower standards.
var hashTools = [][]string{
	{"xxhsum"},
	{"xxh64sum"},
	{"sha256sum"},
	{"md5sum"},
}

// newHasher picks the fastest hash tool present on PATH, falling back to the
// in-process BLAKE3 digest when the system carries none. It never returns
// nil in practice; the nil case is kept for an explicitly disabled hasher.
func (m *FileMigrator) newHasher(ctx context.Context) *hasher {
	for _, argv := range m.hashCandidates {
		if util.ToolOnPath(argv[0]) {
			logrus.WithField("tool", argv[0]).Debug("Selected hash tool for verification")
			return &hasher{name: argv[0], argv: argv, run: m.run}
		}
	}

	logrus.Debug("No hash tool on PATH, using in-process BLAKE3")
	return &hasher{name: "blake3", run: m.run}
}

// compare digests both paths and reports whether they match.
func (h *hasher) compare(ctx context.Context, a, b string) (bool, error) {
	da, err := h.sum(ctx, a)
	if err != nil {
		return false, err
	}
	db, err := h.sum(ctx, b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}

// sum returns the hex digest of one file.
func (h *hasher) sum(ctx context.Context, path string) (string, error) {
	if h.argv == nil {
		return blake3File(path)
	}

	argv := append(append([]string{}, h.argv...), path)
	out, err := h.run.Run(ctx, argv, "")
	if err != nil {
		return "", fmt.Errorf("%s on %s, stderr: [%s]: %w", h.name, path, strings.TrimSpace(out.Stderr), err)
	}

	// tool output is "<digest>  <path>"
	fields := strings.Fields(out.Stdout)
	if len(fields) == 0 {
		return "", fmt.Errorf("%s produced no digest for %s", h.name, path)
	}

	return fields[0], nil
}

// blake3File digests the file in-process.
func blake3File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
