package bridge

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/mausbridge/internal/board"
	"github.com/banshee-data/mausbridge/internal/config"
	"github.com/banshee-data/mausbridge/internal/esc"
	"github.com/banshee-data/mausbridge/internal/lidar"
	"github.com/banshee-data/mausbridge/internal/lidar/scanplot"
	"github.com/banshee-data/mausbridge/internal/link"
	"github.com/banshee-data/mausbridge/internal/serialport"
	"github.com/banshee-data/mausbridge/internal/version"
)

type readerStatus struct {
	Path      string `json:"path"`
	Enabled   bool   `json:"enabled"`
	Running   bool   `json:"running"`
	Error     string `json:"error,omitempty"`
	Chunks    uint64 `json:"chunks"`
	BytesRead uint64 `json:"bytes_read"`
	BytesSent uint64 `json:"bytes_sent"`
	Starts    uint64 `json:"starts"`
}

func (b *Bridge) readerStatus(r *serialport.Reader, enabled bool) readerStatus {
	s := readerStatus{
		Path:      r.Path,
		Enabled:   enabled,
		Running:   r.Running(),
		Chunks:    r.Stats.Chunks.Load(),
		BytesRead: r.Stats.BytesRead.Load(),
		BytesSent: r.Stats.BytesSent.Load(),
		Starts:    r.Stats.Starts.Load(),
	}
	if err := r.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}

type linkStats struct {
	Reader    readerStatus      `json:"reader"`
	BytesIn   uint64            `json:"bytes_in"`
	Delivered uint64            `json:"delivered"`
	CRCErrors uint64            `json:"crc_errors"`
	AckFrames uint64            `json:"ack_frames"`
	Passes    uint64            `json:"passes"`
	Sent      uint64            `json:"sent"`
	SendFails uint64            `json:"send_failures"`
	NextSeq   uint8             `json:"next_seq"`
	Board     map[string]uint64 `json:"board"`
	LatestIMU *board.IMUSample  `json:"latest_imu,omitempty"`
}

func (b *Bridge) linkStats() linkStats {
	bs := &b.Board.Stats
	sender := b.Board.Sender()
	s := linkStats{
		Reader:    b.readerStatus(b.BoardReader, b.cfg.GetEnabled(config.DeviceBoard)),
		BytesIn:   b.Link.Stats.BytesIn.Load(),
		Delivered: b.Link.Stats.Delivered.Load(),
		CRCErrors: b.Link.Stats.CRCErrors.Load(),
		AckFrames: b.Link.Stats.AckFrames.Load(),
		Passes:    b.Link.Stats.Passes.Load(),
		Sent:      sender.Sent.Load(),
		SendFails: sender.Failed.Load(),
		NextSeq:   sender.NextSeq(),
		Board: map[string]uint64{
			"packets":        bs.Packets.Load(),
			"imu_samples":    bs.IMUSamples.Load(),
			"esc_frames":     bs.ESCFrames.Load(),
			"echo_requests":  bs.EchoRequests.Load(),
			"echo_responses": bs.EchoResponses.Load(),
			"short_payloads": bs.ShortPayloads.Load(),
			"ignored":        bs.Ignored.Load(),
			"send_errors":    bs.SendErrors.Load(),
		},
	}
	if imu, ok := b.LatestIMU(); ok {
		s.LatestIMU = &imu
	}
	return s
}

type lidarStats struct {
	Reader    readerStatus    `json:"reader"`
	Counters  lidar.Snapshot  `json:"counters"`
	Remainder int             `json:"remainder_bytes"`
	Scans     []lidar.Summary `json:"recent_scans"`
}

type escStats struct {
	Reader     readerStatus   `json:"reader"`
	Bytes      uint64         `json:"bytes"`
	Frames     uint64         `json:"frames"`
	ZeroFrames uint64         `json:"zero_frames"`
	Latest     *esc.Telemetry `json:"latest,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode: %v", err), http.StatusInternalServerError)
	}
}

// AttachAdminRoutes mounts the bridge debug pages under /debug/ on mux.
func (b *Bridge) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KV("Version", version.Get().String())
	debug.KVFunc("Session", func() any { return b.SessionID })
	debug.KVFunc("Readers running", func() any {
		var running []string
		for _, r := range b.readers() {
			if r.reader.Running() {
				running = append(running, string(r.device))
			}
		}
		return strings.Join(running, ", ")
	})

	debug.HandleFunc("version", "Build information", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, version.Get())
	})

	debug.HandleFunc("link-stats", "Board link and command counters", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, b.linkStats())
	})

	debug.HandleFunc("lidar-stats", "Lidar decoder counters and recent scans", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, lidarStats{
			Reader:    b.readerStatus(b.LidarReader, b.cfg.GetEnabled(config.DeviceLidar)),
			Counters:  b.Lidar.Stats.Snapshot(),
			Remainder: b.Lidar.Remainder(),
			Scans:     b.ScanHistory(),
		})
	})

	debug.HandleFunc("esc-stats", "ESC telemetry counters", func(w http.ResponseWriter, r *http.Request) {
		s := escStats{
			Reader:     b.readerStatus(b.ESCReader, b.cfg.GetEnabled(config.DeviceESC)),
			Bytes:      b.ESC.Stats.Bytes.Load(),
			Frames:     b.ESC.Stats.Frames.Load(),
			ZeroFrames: b.ESC.Stats.ZeroFrames.Load(),
		}
		if t, ok := b.LatestESC(); ok {
			s.Latest = &t
		}
		writeJSON(w, s)
	})

	debug.HandleFunc("scan.png", "Latest lidar scan", b.handleScanPNG)

	// POST payload=<hex>; the first byte is the command id.
	debug.HandleSilentFunc("send-packet-api", b.handleSendPacket)

	debug.HandleFunc("tail", "Live decoded events (server-sent events)", b.handleTail)
}

func (b *Bridge) handleScanPNG(w http.ResponseWriter, r *http.Request) {
	scan := b.LatestScan()
	if scan == nil {
		http.Error(w, "no scan yet", http.StatusNotFound)
		return
	}
	var opts scanplot.Options
	if v := r.URL.Query().Get("range"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			http.Error(w, "invalid range", http.StatusBadRequest)
			return
		}
		opts.MaxRange = f
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := scanplot.Render(scan, w, opts); err != nil {
		if errors.Is(err, scanplot.ErrEmptyScan) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (b *Bridge) handleSendPacket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := strings.Join(strings.Fields(r.FormValue("payload")), "")
	if raw == "" {
		http.Error(w, "Missing payload", http.StatusBadRequest)
		return
	}
	payload, err := hex.DecodeString(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid hex payload: %v", err), http.StatusBadRequest)
		return
	}
	seq := b.Board.Sender().NextSeq()
	if err := b.Board.Send(payload); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, serialport.ErrNotRunning) {
			status = http.StatusServiceUnavailable
		} else if errors.Is(err, link.ErrPayloadTooLarge) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Failed to send packet: %v", err), status)
		return
	}
	fmt.Fprintf(w, "Sent %d byte payload with seq %d\n", len(payload), seq)
}

func (b *Bridge) handleTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	kinds := map[string]bool{}
	for _, k := range r.URL.Query()["kind"] {
		kinds[k] = true
	}

	id, events := b.Events.Subscribe()
	defer b.Events.Unsubscribe(id)

	io.WriteString(w, ": ping\n\n")
	flusher.Flush()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if len(kinds) > 0 && !kinds[e.Kind] {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
