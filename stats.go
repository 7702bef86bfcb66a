// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var statsPrometheusOnce sync.Once

var (
	collectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copygc",
			Name:      "collections_total",
			Help:      "Number of collections run, by kind.",
		},
		[]string{"kind"})

	bytesCopiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copygc",
			Name:      "bytes_copied_total",
			Help:      "Bytes evacuated into a destination space, by kind.",
		},
		[]string{"kind"})

	pauseSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copygc",
			Name:      "pause_seconds",
			Help:      "Stop-the-world pause duration, by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2.0, 16),
		},
		[]string{"kind"})

	rememberedSetSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "copygc",
			Name:      "remembered_set_size",
			Help:      "Remembered set entry count observed at the end of a collection.",
		},
		[]string{"kind"})
)

// registerPrometheusStats registers copygc's collectors exactly once
// per process, mirroring the package-level sync.Once + MustRegister
// pattern Buildbarn's blobstore package uses for its own metrics.
func registerPrometheusStats() {
	statsPrometheusOnce.Do(func() {
		prometheus.MustRegister(collectionsTotal, bytesCopiedTotal, pauseSeconds, rememberedSetSize)
	})
}

// Stats is the per-heaplet accumulator of fixed-width collection
// counters. All of them are always maintained; ExpensiveStats gates
// only the per-collection debug log line in recordStats.
type Stats struct {
	CollectionsByKind  map[Kind]uint64
	BytesCopiedByKind  map[Kind]uint64
	PauseTotalByKind   map[Kind]time.Duration
	LastRememberedSize int
	SSBFlushCount      uint64
	SSBTotalQueued     uint64
}

func newStats() *Stats {
	registerPrometheusStats()
	return &Stats{
		CollectionsByKind: make(map[Kind]uint64),
		BytesCopiedByKind: make(map[Kind]uint64),
		PauseTotalByKind:  make(map[Kind]time.Duration),
	}
}

// recordStats updates per-kind collection count, copy totals, pause
// times, and remembered-set size.
func recordStats(hl *Heaplet, kind Kind, c *Collection, finalUsed map[*Space]uint64) {
	pause := time.Since(c.start)

	hl.stats.CollectionsByKind[kind]++
	hl.stats.PauseTotalByKind[kind] += pause

	var copied uint64
	for _, s := range uniqueSpaces(c.tospaces) {
		copied += finalUsed[s] - c.initialUsed[s]
	}
	hl.stats.BytesCopiedByKind[kind] += copied

	hl.stats.LastRememberedSize = hl.rememberedSet.Len()
	hl.stats.SSBFlushCount = hl.ssb.flushCount
	hl.stats.SSBTotalQueued = hl.ssb.totalQueued

	collectionsTotal.WithLabelValues(kind.String()).Inc()
	bytesCopiedTotal.WithLabelValues(kind.String()).Add(float64(copied))
	pauseSeconds.WithLabelValues(kind.String()).Observe(pause.Seconds())
	rememberedSetSize.WithLabelValues(kind.String()).Set(float64(hl.rememberedSet.Len()))

	if hl.cfg.ExpensiveStats {
		hl.log.Debug("collection complete",
			zap.Stringer("kind", kind), zap.Duration("pause", pause), zap.Uint64("bytes_copied", copied))
	}
}

// HeapletDump is a human-readable snapshot of every space's
// occupancy, written to sink.
func HeapletDump(hl *Heaplet, sink io.Writer) {
	fmt.Fprintf(sink, "heaplet dump:\n")
	for _, s := range hl.allSpaces() {
		fmt.Fprintf(sink, "  %-14s gen=%-9s used=%d allocated=%d blocks=%d\n",
			s.name, s.generation, s.usedSizeInBytes(), s.allocatedSize, countBlocks(s))
	}
	fmt.Fprintf(sink, "  remembered_set=%d ssb_flushes=%d\n", hl.rememberedSet.Len(), hl.ssb.flushCount)
}

func countBlocks(s *Space) int {
	n := 0
	for b := s.head; b != nil; b = b.next {
		n++
	}
	return n
}

// PrintStatistics writes per-kind counters to a file-like sink.
func PrintStatistics(hl *Heaplet, sink io.Writer) {
	for _, k := range []Kind{KindMinor, KindMajor, KindGlobal, KindShare} {
		fmt.Fprintf(sink, "%-7s collections=%d bytes_copied=%d pause_total=%s\n",
			k, hl.stats.CollectionsByKind[k], hl.stats.BytesCopiedByKind[k], hl.stats.PauseTotalByKind[k])
	}
	fmt.Fprintf(sink, "ssb     flushes=%d total_queued=%d\n", hl.stats.SSBFlushCount, hl.stats.SSBTotalQueued)
	fmt.Fprintf(sink, "nursery_threshold=%d oldspace_threshold=%d\n", hl.nurseryThreshold, hl.oldspaceThreshold)
}
