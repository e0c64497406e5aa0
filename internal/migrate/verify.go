package migrate

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/event"
)

// verifyOutcome accumulates the per-file verdicts of one verification pass.
type verifyOutcome struct {
	total    uint64
	verified []string
	missing  uint64
	failed   uint64
}

// verify walks every regular file on the source and decides, per relative
// path, whether the target holds a trustworthy copy. Sizes gate everything;
// content above the hash threshold is additionally hashed. A hash that
// cannot be computed downgrades that file to size-only verification rather
// than failing the migration.
func (m *FileMigrator) verify(ctx context.Context, srcRoot, dstRoot string) (*verifyOutcome, error) {
	h := m.newHasher(ctx)
	if h == nil {
		m.rep.Log(event.Warning, "No hash tool available; verifying by size only")
	}

	outcome := &verifyOutcome{}
	err := filepath.WalkDir(srcRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		outcome.total++

		srcInfo, err := d.Info()
		if err != nil {
			return err
		}

		dstInfo, err := os.Lstat(filepath.Join(dstRoot, rel))
		if err != nil {
			if os.IsNotExist(err) {
				outcome.missing++
				logrus.WithField("path", rel).Debug("Target copy missing")
				return nil
			}
			return err
		}

		if dstInfo.Size() != srcInfo.Size() {
			outcome.failed++
			logrus.WithFields(logrus.Fields{
				"path":        rel,
				"source_size": srcInfo.Size(),
				"target_size": dstInfo.Size(),
			}).Warn("Target copy has wrong size")
			return nil
		}

		if srcInfo.Size() > m.hashThreshold && h != nil {
			match, err := h.compare(ctx, path, filepath.Join(dstRoot, rel))
			if err != nil {
				// hashing failure is not a content mismatch
				logrus.WithError(err).WithField("path", rel).Warn("Hash comparison failed, accepting size-only verification")
			} else if !match {
				outcome.failed++
				logrus.WithField("path", rel).Warn("Target copy content differs")
				return nil
			}
		}

		outcome.verified = append(outcome.verified, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"total":    outcome.total,
		"verified": len(outcome.verified),
		"missing":  outcome.missing,
		"failed":   outcome.failed,
	}).Info("Verification pass complete")

	return outcome, nil
}

// prune deletes exactly the verified files from the source, then removes the
// directories the deletions emptied. Unverified files are left for the next
// iteration. Failures are counted, not fatal: the verified copies are
// already durable on the target.
func (m *FileMigrator) prune(srcRoot string, verified []string) (failures uint64) {
	dirs := map[string]struct{}{}

	for _, rel := range verified {
		path := filepath.Join(srcRoot, rel)
		if err := os.Remove(path); err != nil {
			failures++
			logrus.WithError(err).WithField("path", rel).Warn("Could not delete verified file from source")
			continue
		}
		for dir := filepath.Dir(rel); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
			dirs[dir] = struct{}{}
		}
	}

	// deepest first, so parents empty out as children go
	ordered := make([]string, 0, len(dirs))
	for d := range dirs {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return strings.Count(ordered[i], string(filepath.Separator)) > strings.Count(ordered[j], string(filepath.Separator))
	})

	for _, rel := range ordered {
		// a failure here means the directory still holds unverified files
		os.Remove(filepath.Join(srcRoot, rel))
	}

	return failures
}
