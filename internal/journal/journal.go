// Package journal persists conversion progress so an interrupted run can be
// resumed. Each source device gets one record file under a per-user hidden
// directory; the record is rewritten at every engine checkpoint.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ntfs2linux/ntfs2linux/internal/fskind"
)

// Operation names the engine checkpoint a record was written at.
type Operation string

const (
	OpIterationStart       Operation = "iteration_start"
	OpShrinkNTFS           Operation = "shrink_ntfs"
	OpCreateTarget         Operation = "create_target"
	OpFormatTarget         Operation = "format_target"
	OpExpandPartitionTable Operation = "expand_partition_table"
	OpMigrateFiles         Operation = "migrate_files"
	OpDeleteSource         Operation = "delete_source"
	OpExpandFinal          Operation = "expand_final"
	OpComplete             Operation = "complete"
)

// valid reports whether op is one of the defined checkpoint names.
func (op Operation) valid() bool {
	switch op {
	case OpIterationStart, OpShrinkNTFS, OpCreateTarget, OpFormatTarget,
		OpExpandPartitionTable, OpMigrateFiles, OpDeleteSource,
		OpExpandFinal, OpComplete:
		return true
	}
	return false
}

// State is the journal payload. Shrink, create, format and expand_partition_table
// are persisted after their operation has completed on disk; iteration_start,
// migrate_files, delete_source and expand_final are persisted as their step
// begins, and resume redoes or re-checks that step.
type State struct {
	Device             string
	TargetKind         fskind.Kind
	SourcePartition    string
	TargetPartition    string
	UseExistingTarget  bool
	Iteration          uint32
	LastOperation      Operation
	FilesMigratedTotal uint64
}

const fileSuffix = ".state"

// Store reads and writes per-device journal records in a single directory.
type Store struct {
	dir string
}

// DefaultDir returns the per-user journal directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".ntfs2linux"), nil
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating journal directory")
	}
	return &Store{dir: dir}, nil
}

// pathFor derives the record path from the device base name, so the device
// path's separators never reach the file name. Devices that share a base name
// (/dev/sda and /dev/mapper/sda) share one record.
func (s *Store) pathFor(device string) string {
	return filepath.Join(s.dir, filepath.Base(device)+fileSuffix)
}

// Save overwrites the record for st.Device. The write goes through a
// temporary file and rename so a crash mid-write cannot leave a torn record.
func (s *Store) Save(st State) error {
	if st.Device == "" {
		return errors.New("journal state has no device")
	}
	if !st.LastOperation.valid() {
		return errors.Errorf("journal state has invalid operation %q", st.LastOperation)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "device=%s\n", st.Device)
	fmt.Fprintf(&b, "target_kind=%s\n", st.TargetKind)
	fmt.Fprintf(&b, "source_partition=%s\n", st.SourcePartition)
	fmt.Fprintf(&b, "target_partition=%s\n", st.TargetPartition)
	fmt.Fprintf(&b, "use_existing_target=%t\n", st.UseExistingTarget)
	fmt.Fprintf(&b, "iteration=%d\n", st.Iteration)
	fmt.Fprintf(&b, "last_operation=%s\n", st.LastOperation)
	fmt.Fprintf(&b, "files_migrated_total=%d\n", st.FilesMigratedTotal)

	path := s.pathFor(st.Device)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating journal temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing journal record")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing journal record")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing journal temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "replacing journal record")
	}

	return nil
}

// Load reads the record for the given device.
func (s *Store) Load(device string) (State, error) {
	return parseFile(s.pathFor(device))
}

// List returns every record in the store, ordered by device name. A store
// with no records returns an empty slice.
func (s *Store) List() ([]State, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "listing journal directory")
	}

	var states []State
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		st, err := parseFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing journal record %q", e.Name())
		}
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Device < states[j].Device })

	return states, nil
}

// Delete removes the record for the given device. Missing records are not an
// error.
func (s *Store) Delete(device string) error {
	err := os.Remove(s.pathFor(device))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing journal record")
	}
	return nil
}

func parseFile(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, errors.Wrap(err, "reading journal record")
	}

	var st State
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return State{}, errors.Errorf("malformed journal line %q", line)
		}

		switch key {
		case "device":
			st.Device = value
		case "target_kind":
			kind, err := fskind.Parse(value)
			if err != nil {
				return State{}, errors.Wrap(err, "parsing target_kind")
			}
			st.TargetKind = kind
		case "source_partition":
			st.SourcePartition = value
		case "target_partition":
			st.TargetPartition = value
		case "use_existing_target":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return State{}, errors.Wrap(err, "parsing use_existing_target")
			}
			st.UseExistingTarget = b
		case "iteration":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return State{}, errors.Wrap(err, "parsing iteration")
			}
			st.Iteration = uint32(n)
		case "last_operation":
			op := Operation(value)
			if !op.valid() {
				return State{}, errors.Errorf("unknown last_operation %q", value)
			}
			st.LastOperation = op
		case "files_migrated_total":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return State{}, errors.Wrap(err, "parsing files_migrated_total")
			}
			st.FilesMigratedTotal = n
		default:
			return State{}, errors.Errorf("unknown journal key %q", key)
		}
	}

	if st.Device == "" {
		return State{}, errors.New("journal record missing device")
	}
	if !st.LastOperation.valid() {
		return State{}, errors.New("journal record missing last_operation")
	}

	return st, nil
}
