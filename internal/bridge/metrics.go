package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/mausbridge/internal/metrics"
)

// RegisterMetrics exposes every component counter on reg.
func (b *Bridge) RegisterMetrics(reg prometheus.Registerer) error {
	for _, r := range b.readers() {
		reader := r.reader
		labels := prometheus.Labels{"channel": string(r.device)}
		if err := metrics.RegisterCounters(reg, "reader", labels,
			metrics.Counter{Name: "chunks", Help: "Reads that returned data.", Value: &reader.Stats.Chunks},
			metrics.Counter{Name: "bytes_read", Help: "Bytes read from the port.", Value: &reader.Stats.BytesRead},
			metrics.Counter{Name: "bytes_sent", Help: "Bytes written to the port.", Value: &reader.Stats.BytesSent},
			metrics.Counter{Name: "starts", Help: "Successful reader starts.", Value: &reader.Stats.Starts},
		); err != nil {
			return err
		}
		if err := metrics.RegisterGauge(reg, "reader", "running", "1 if the read loop is active.", labels, func() float64 {
			if reader.Running() {
				return 1
			}
			return 0
		}); err != nil {
			return err
		}
	}

	ls := &b.Link.Stats
	if err := metrics.RegisterCounters(reg, "link", nil,
		metrics.Counter{Name: "bytes_in", Help: "Bytes fed to the frame scanner.", Value: &ls.BytesIn},
		metrics.Counter{Name: "delivered", Help: "Packets delivered.", Value: &ls.Delivered},
		metrics.Counter{Name: "crc_errors", Help: "Frames with a payload CRC mismatch.", Value: &ls.CRCErrors},
		metrics.Counter{Name: "ack_frames", Help: "Acknowledgement frames seen.", Value: &ls.AckFrames},
		metrics.Counter{Name: "passes", Help: "Scan passes over the ring.", Value: &ls.Passes},
	); err != nil {
		return err
	}

	sender := b.Board.Sender()
	bs := &b.Board.Stats
	if err := metrics.RegisterCounters(reg, "board", nil,
		metrics.Counter{Name: "packets_sent", Help: "Packets written to the board.", Value: &sender.Sent},
		metrics.Counter{Name: "send_failures", Help: "Packets that failed to send.", Value: &sender.Failed},
		metrics.Counter{Name: "packets", Help: "Packets received from the board.", Value: &bs.Packets},
		metrics.Counter{Name: "imu_samples", Help: "IMU dumps decoded.", Value: &bs.IMUSamples},
		metrics.Counter{Name: "esc_frames", Help: "ESC telemetry dumps decoded.", Value: &bs.ESCFrames},
		metrics.Counter{Name: "echo_requests", Help: "Echo requests answered.", Value: &bs.EchoRequests},
		metrics.Counter{Name: "echo_responses", Help: "Echo responses received.", Value: &bs.EchoResponses},
		metrics.Counter{Name: "short_payloads", Help: "Dumps too short to decode.", Value: &bs.ShortPayloads},
		metrics.Counter{Name: "ignored", Help: "Empty or unknown packets.", Value: &bs.Ignored},
	); err != nil {
		return err
	}

	st := b.Lidar.Stats
	if err := metrics.RegisterCounters(reg, "lidar", nil,
		metrics.Counter{Name: "bytes", Help: "Bytes fed to the decoder.", Value: &st.Bytes},
		metrics.Counter{Name: "frames", Help: "Frames decoded.", Value: &st.Frames},
		metrics.Counter{Name: "points", Help: "Points decoded.", Value: &st.Points},
		metrics.Counter{Name: "scans", Help: "Scans delivered.", Value: &st.Scans},
		metrics.Counter{Name: "crc_errors", Help: "Frames with a CRC mismatch.", Value: &st.CRCErrors},
		metrics.Counter{Name: "skipped_bytes", Help: "Bytes skipped while searching for a header.", Value: &st.SkippedBytes},
		metrics.Counter{Name: "dropped_bytes", Help: "Carry-over bytes dropped at the bound.", Value: &st.DroppedBytes},
		metrics.Counter{Name: "dropped_points", Help: "Points dropped at the accumulator bound.", Value: &st.DroppedPoints},
	); err != nil {
		return err
	}

	es := &b.ESC.Stats
	if err := metrics.RegisterCounters(reg, "esc", nil,
		metrics.Counter{Name: "bytes", Help: "Bytes fed to the window scanner.", Value: &es.Bytes},
		metrics.Counter{Name: "frames", Help: "Telemetry frames accepted.", Value: &es.Frames},
		metrics.Counter{Name: "zero_frames", Help: "All-zero windows rejected.", Value: &es.ZeroFrames},
	); err != nil {
		return err
	}

	if err := metrics.RegisterCounters(reg, "bridge", nil,
		metrics.Counter{Name: "record_errors", Help: "Recorder writes that failed.", Value: &b.RecordErrors},
		metrics.Counter{Name: "record_dropped", Help: "Recorder writes dropped on a full queue.", Value: &b.RecordDropped},
		metrics.Counter{Name: "events_published", Help: "Events published to subscribers.", Value: &b.Events.Published},
		metrics.Counter{Name: "events_dropped", Help: "Events missed by slow subscribers.", Value: &b.Events.Dropped},
	); err != nil {
		return err
	}
	return metrics.RegisterGauge(reg, "bridge", "subscribers", "Connected event subscribers.", nil, func() float64 {
		return float64(b.Events.Len())
	})
}
