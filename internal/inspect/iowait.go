package inspect

import (
	"context"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"
)

const (
	// settleInterval is how often the device's I/O counters are sampled.
	settleInterval = 1 * time.Second

	// settleOpsThreshold is the per-interval completed-operation count below
	// which the device counts as settled.
	settleOpsThreshold = 10

	// defaultSettleCap bounds the whole wait unless overridden.
	defaultSettleCap = 30 * time.Second
)

// WaitIOSettle polls the device's I/O counters until activity drops below
// the settling threshold or the cap elapses. The cap is not an error: the
// caller has already synced, this wait only gives in-flight writeback a
// chance to quiesce before sizes are re-measured.
func (s *SysInspector) WaitIOSettle(ctx context.Context, device string) error {
	name := filepath.Base(device)

	prev, err := ioOps(name)
	if err != nil {
		logrus.WithError(err).WithField("device", device).Warn("Cannot read I/O counters, skipping settle wait")
		return nil
	}

	deadline := time.Now().Add(s.settleCap)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settleInterval):
		}

		cur, err := ioOps(name)
		if err != nil {
			logrus.WithError(err).WithField("device", device).Warn("Cannot read I/O counters, ending settle wait")
			return nil
		}

		delta := cur - prev
		logrus.WithFields(logrus.Fields{"device": device, "ops": delta}).Debug("I/O settle sample")
		if delta < settleOpsThreshold {
			return nil
		}
		prev = cur

		if time.Now().After(deadline) {
			logrus.WithField("device", device).Debug("I/O settle wait hit its cap")
			return nil
		}
	}
}

// ioOps returns the device's completed read+write operation count.
func ioOps(name string) (uint64, error) {
	counters, err := disk.IOCounters(name)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, c := range counters {
		total += c.ReadCount + c.WriteCount
	}

	return total, nil
}
