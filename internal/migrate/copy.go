package migrate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/sirupsen/logrus"
)

// rsync exit codes that signal an incomplete but sane transfer. 23 is
// "partial transfer", 24 is "source files vanished" — both are expected when
// copying a live-ish tree and are resolved by the verification pass.
var tolerableRsyncExits = map[int]bool{23: true, 24: true}

// progress2Min is the rsync version that introduced --info=progress2.
var progress2Min = semver.MustParse("3.1.0")

// progressRe matches the percent column of both rsync progress formats.
var progressRe = regexp.MustCompile(`(\d{1,3})%`)

// rsyncVersionRe matches the version line of "rsync --version".
var rsyncVersionRe = regexp.MustCompile(`rsync\s+version\s+(\d+\.\d+(?:\.\d+)?)`)

// copyTree copies the source tree onto the target with rsync, preserving
// mode, ownership, times, hard links, sparse regions, and whatever ACL/xattr
// data rsync itself carries. The trailing slash on the source makes rsync
// copy the tree's contents rather than the tree.
func (m *FileMigrator) copyTree(ctx context.Context, srcRoot, dstRoot string) error {
	argv := []string{"rsync", "-aHAXS", "--numeric-ids"}
	if m.supportsProgress2(ctx) {
		argv = append(argv, "--info=progress2")
	} else {
		logrus.Debug("rsync predates --info=progress2, falling back to per-file progress")
		argv = append(argv, "--progress")
	}
	argv = append(argv, srcRoot+"/", dstRoot+"/")

	m.rep.Status("Copying files to target", 0)
	out, err := m.run.RunStream(ctx, argv, func(line string) {
		if pct, ok := parseProgress(line); ok {
			m.rep.Status("Copying files to target", pct)
		}
	})
	if err != nil {
		if tolerableRsyncExits[out.ExitCode] {
			logrus.WithField("exit_code", out.ExitCode).Warn("rsync reported a partial transfer; verification will sort remaining files")
			return nil
		}
		return fmt.Errorf("rsync failed, stderr: [%s]: %w", strings.TrimSpace(out.Stderr), err)
	}

	m.rep.Status("Copying files to target", 100)
	return nil
}

// supportsProgress2 probes the installed rsync for whole-transfer progress
// support.
func (m *FileMigrator) supportsProgress2(ctx context.Context) bool {
	out, err := m.run.Run(ctx, []string{"rsync", "--version"}, "")
	if err != nil {
		return false
	}

	match := rsyncVersionRe.FindStringSubmatch(out.Stdout)
	if match == nil {
		return false
	}
	v, err := semver.NewVersion(match[1])
	if err != nil {
		return false
	}

	return !v.LessThan(progress2Min)
}

// parseProgress extracts a percentage from an rsync progress line.
func parseProgress(line string) (float64, bool) {
	match := progressRe.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	pct, err := strconv.Atoi(match[1])
	if err != nil || pct > 100 {
		return 0, false
	}
	return float64(pct), true
}
