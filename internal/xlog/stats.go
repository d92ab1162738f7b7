package xlog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// Stats is a process-wide traffic/connection counter, generalized from the
// teacher's DataChannel byte counters to any TCP/UDP service.
var Stats = &counters{}

type counters struct {
	TotalConns  atomic.Int64
	ClosedConns atomic.Int64
	BytesIn     atomic.Int64
	BytesOut    atomic.Int64
}

func (c *counters) AddConn()     { c.TotalConns.Add(1) }
func (c *counters) RemoveConn()  { c.ClosedConns.Add(1) }
func (c *counters) AddIn(n int)  { c.BytesIn.Add(int64(n)) }
func (c *counters) AddOut(n int) { c.BytesOut.Add(int64(n)) }

// StartStatsReporter logs throughput and connection counts every interval
// until ctx is cancelled, matching the teacher's StartStatsReporter cadence.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prevIn, prevOut, prevTotal, prevClosed int64
		for {
			select {
			case <-ticker.C:
				total := Stats.TotalConns.Load()
				closed := Stats.ClosedConns.Load()
				in := Stats.BytesIn.Load()
				out := Stats.BytesOut.Load()

				secs := interval.Seconds()
				inRate := float64(in-prevIn) / secs
				outRate := float64(out-prevOut) / secs
				newConns := total - prevTotal
				endedConns := closed - prevClosed

				if newConns > 0 || endedConns > 0 || inRate > 10 || outRate > 10 {
					pterm.DefaultLogger.Info(formatStats(inRate, outRate, newConns, endedConns))
				}

				prevIn, prevOut, prevTotal, prevClosed = in, out, total, closed

			case <-ctx.Done():
				return
			}
		}
	}()
}

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

func formatBytes(b float64) string {
	unitIdx := 0
	for b > 99 && unitIdx < len(byteUnits)-1 {
		b /= 1024
		unitIdx++
	}
	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

func formatStats(inRate, outRate float64, newConns, endedConns int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Conn: %2d↑ %2d↓",
		formatBytes(inRate), formatBytes(outRate), newConns, endedConns)
}
