// Package migrate moves file content from the shrinking NTFS source to the
// growing target volume. Nothing is ever deleted from the source until its
// copy on the target has been verified bit-identical and made durable; the
// verified manifest is the single authority for what may be pruned.
package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/blockdev"
	"github.com/ntfs2linux/ntfs2linux/internal/event"
	"github.com/ntfs2linux/ntfs2linux/internal/inspect"
	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

const (
	// maxMissingRatio is the fraction of source files allowed to be absent
	// from the target before the migration is rejected outright.
	maxMissingRatio = 0.10

	// minVerifiedRatio is the fraction of source files that must verify
	// before pruning may proceed without an operator override.
	minVerifiedRatio = 0.90
)

// VerificationError is the acceptance-gate rejection. The source has not
// been modified when this error is returned.
type VerificationError struct {
	Total    uint64
	Verified uint64
	Missing  uint64
	Failed   uint64
	Reason   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification rejected migration (%s): %d/%d verified, %d missing, %d failed",
		e.Reason, e.Verified, e.Total, e.Missing, e.Failed)
}

// Result summarizes one migration step.
type Result struct {
	// FileCount is the number of regular files found on the source before
	// the copy.
	FileCount uint64

	// TotalBytes is their combined size.
	TotalBytes uint64

	// Verified lists, in walk order, the source-relative paths whose target
	// copies passed verification and were handed to source pruning; those
	// whose deletion failed are counted in PruneFailures.
	Verified []string

	// Missing and Failed count the verification outcomes that kept files on
	// the source.
	Missing uint64
	Failed  uint64

	// PruneFailures counts verified files whose source deletion failed.
	// These remain on the source and are reconsidered next iteration.
	PruneFailures uint64
}

// Migrator performs one verified migration step between two unmounted
// partitions.
type Migrator interface {
	Migrate(ctx context.Context, source, target string) (*Result, error)
}

// FileMigrator is the real Migrator: mount both sides, rsync, sync, verify,
// prune, unmount.
type FileMigrator struct {
	run        util.Runner
	block      blockdev.BlockDevice
	insp       inspect.Inspector
	rep        event.Reporter
	instanceID string
	tmpDir     string

	// hashThreshold is the size above which content is hashed during
	// verification.
	hashThreshold int64

	// hashCandidates are the PATH tools probed for hashing, in preference
	// order. Empty means hash in-process.
	hashCandidates [][]string

	// interactive allows the <90%-verified prompt; an automated run treats
	// the shortfall as failure.
	interactive bool
}

var _ Migrator = (*FileMigrator)(nil)

// Option configures a FileMigrator.
type Option func(*FileMigrator)

// WithHashThreshold overrides the verification hash threshold.
func WithHashThreshold(bytes int64) Option {
	return func(m *FileMigrator) { m.hashThreshold = bytes }
}

// WithInteractive enables the operator override prompt on a verified-count
// shortfall.
func WithInteractive() Option {
	return func(m *FileMigrator) { m.interactive = true }
}

// New builds a FileMigrator.
func New(run util.Runner, block blockdev.BlockDevice, insp inspect.Inspector, rep event.Reporter, instanceID string, opts ...Option) *FileMigrator {
	m := &FileMigrator{
		run:            run,
		block:          block,
		insp:           insp,
		rep:            rep,
		instanceID:     instanceID,
		tmpDir:         os.TempDir(),
		hashThreshold:  100 * 1024,
		hashCandidates: hashTools,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Migrate runs one full migration step. Any error before pruning leaves the
// source untouched; pruning errors are reported but not fatal, because the
// verified copies already exist durably on the target.
func (m *FileMigrator) Migrate(ctx context.Context, source, target string) (*Result, error) {
	srcMount, err := m.block.Mount(ctx, source, false)
	if err != nil {
		return nil, fmt.Errorf("mounting migration source %s: %w", source, err)
	}
	dstMount, err := m.block.Mount(ctx, target, false)
	if err != nil {
		// release what succeeded
		if uerr := m.block.Unmount(ctx, srcMount); uerr != nil {
			logrus.WithError(uerr).Warn("Failed to release source mount after target mount failure")
		}
		return nil, fmt.Errorf("mounting migration target %s: %w", target, err)
	}

	result, migrateErr := m.migrateMounted(ctx, srcMount, dstMount)

	var release *multierror.Error
	if err := m.block.Unmount(ctx, srcMount); err != nil {
		release = multierror.Append(release, fmt.Errorf("releasing source mount: %w", err))
	}
	if err := m.block.Unmount(ctx, dstMount); err != nil {
		release = multierror.Append(release, fmt.Errorf("releasing target mount: %w", err))
	}

	if migrateErr != nil {
		return nil, migrateErr
	}
	if err := release.ErrorOrNil(); err != nil {
		return nil, err
	}

	return result, nil
}

// migrateMounted is the mounted-phase body: enumerate, copy, sync, verify,
// prune, sync.
func (m *FileMigrator) migrateMounted(ctx context.Context, src, dst *blockdev.MountHandle) (*Result, error) {
	count, bytes, err := enumerate(src.Path)
	if err != nil {
		return nil, fmt.Errorf("enumerating source files: %w", err)
	}
	m.rep.Log(event.Info, fmt.Sprintf("Migrating %d files (%s)", count, humanize.Bytes(bytes)))

	if err := m.copyTree(ctx, src.Path, dst.Path); err != nil {
		return nil, err
	}

	if err := m.barrier(ctx, src, dst); err != nil {
		return nil, err
	}

	m.rep.Status("Verifying migrated files", event.NoPercent)
	outcome, err := m.verify(ctx, src.Path, dst.Path)
	if err != nil {
		return nil, fmt.Errorf("verification pass: %w", err)
	}

	if err := m.accept(outcome); err != nil {
		return nil, err
	}

	manifest, err := m.writeManifest(outcome.verified)
	if err != nil {
		logrus.WithError(err).Warn("Could not write verification manifest")
	} else {
		logrus.WithField("manifest", manifest).Debug("Wrote verification manifest")
	}

	m.rep.Status("Pruning verified files from source", event.NoPercent)
	pruneFailures := m.prune(src.Path, outcome.verified)

	if err := m.barrier(ctx, src, dst); err != nil {
		return nil, err
	}

	return &Result{
		FileCount:     count,
		TotalBytes:    bytes,
		Verified:      outcome.verified,
		Missing:       outcome.missing,
		Failed:        outcome.failed,
		PruneFailures: pruneFailures,
	}, nil
}

// accept applies the acceptance gate to a verification outcome.
func (m *FileMigrator) accept(o *verifyOutcome) error {
	verr := &VerificationError{
		Total:    o.total,
		Verified: uint64(len(o.verified)),
		Missing:  o.missing,
		Failed:   o.failed,
	}

	if o.failed > 0 {
		verr.Reason = "content mismatches"
		return verr
	}
	if o.total > 0 && float64(o.missing) > maxMissingRatio*float64(o.total) {
		verr.Reason = "too many files missing from target"
		return verr
	}
	if o.total > 0 && float64(len(o.verified)) < minVerifiedRatio*float64(o.total) {
		if !m.interactive {
			verr.Reason = "verified count below threshold"
			return verr
		}
		choice, err := m.rep.Prompt(
			fmt.Sprintf("Only %d of %d files verified. Delete the verified files from the source anyway?", len(o.verified), o.total),
			[]string{"Continue", "Abort"},
		)
		if err != nil || choice != 0 {
			verr.Reason = "verified count below threshold, operator declined override"
			return verr
		}
		m.rep.Log(event.Warning, "Proceeding on operator override with a partial verification")
	}

	return nil
}

// barrier makes completed writes durable: global sync, per-mount sync, then
// the bounded I/O settling wait on the target's device.
func (m *FileMigrator) barrier(ctx context.Context, src, dst *blockdev.MountHandle) error {
	syncAll()
	for _, h := range []*blockdev.MountHandle{src, dst} {
		if err := syncMount(h.Path); err != nil {
			logrus.WithError(err).WithField("mountpoint", h.Path).Warn("Per-mount sync failed")
		}
	}

	return m.insp.WaitIOSettle(ctx, blockdev.DeviceOf(dst.Device))
}

// writeManifest records the verified relative paths in a temp file named
// with the instance id. The file documents exactly what pruning will touch;
// it is never reused across restarts.
func (m *FileMigrator) writeManifest(verified []string) (string, error) {
	path := filepath.Join(m.tmpDir, fmt.Sprintf("ntfs2linux-%s-verified.list", m.instanceID))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, rel := range verified {
		if _, err := fmt.Fprintln(f, rel); err != nil {
			return "", err
		}
	}

	return path, f.Sync()
}

// enumerate counts the regular files under root and sums their sizes.
func enumerate(root string) (count, bytes uint64, err error) {
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		count++
		bytes += uint64(info.Size())
		return nil
	})
	return count, bytes, err
}
