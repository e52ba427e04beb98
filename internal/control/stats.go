// ABOUTME: Stats collection for the control stats push
// ABOUTME: Flattens sender and receiver session counters into the wire form
package control

import (
	"time"

	"github.com/vbancast/vbancast-go/internal/protocol"
	"github.com/vbancast/vbancast-go/pkg/vbancast"
)

// CollectStats returns a Stats func reading rx and tx. Either may be nil.
func CollectStats(rx *vbancast.Receiver, tx *vbancast.Sender) func() protocol.Stats {
	return func() protocol.Stats {
		stats := protocol.Stats{Time: time.Now().UnixMilli()}

		if rx != nil {
			rs := rx.Stats()
			stats.Gain = rs.Gain
			for _, l := range rs.Listeners {
				stats.Listeners = append(stats.Listeners, protocol.ListenerStats{
					Port:      l.Port,
					Endpoints: l.Endpoints,
					Packets:   l.Packets,
					Rejected:  l.Rejected,
					Matched:   l.Matched,
				})
			}
			for _, st := range rs.Streams {
				stats.Streams = append(stats.Streams, protocol.StreamStats{
					ID:         st.ID,
					Name:       st.Name,
					BufferedMs: st.BufferedMs,
					Capacity:   st.Capacity,
					Dropped:    st.Dropped,
					Underruns:  st.Underruns,
				})
			}
		}

		if tx != nil {
			for _, t := range tx.Stats() {
				stats.Targets = append(stats.Targets, protocol.TargetStats{
					ID:           t.ID,
					Name:         t.Name,
					Addr:         t.Addr,
					Packets:      t.Packets,
					Errors:       t.Errors,
					Bytes:        t.Bytes,
					FrameCounter: t.FrameCounter,
				})
			}
		}
		return stats
	}
}
