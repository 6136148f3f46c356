// Package bridge connects the board, lidar and ESC serial channels to their
// decoders, the recorder and the debug surfaces.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mausbridge/internal/board"
	"github.com/banshee-data/mausbridge/internal/config"
	"github.com/banshee-data/mausbridge/internal/esc"
	"github.com/banshee-data/mausbridge/internal/lidar"
	"github.com/banshee-data/mausbridge/internal/link"
	"github.com/banshee-data/mausbridge/internal/monitoring"
	"github.com/banshee-data/mausbridge/internal/serialport"
	"github.com/banshee-data/mausbridge/internal/timeutil"
)

// Event sources.
const (
	SourceBoard = "board"
	SourceESC   = "esc"
	SourceLidar = "lidar"
)

// hubBuffer is the per-subscriber event buffer.
const hubBuffer = 64

// Recorder persists decoded data. *db.DB satisfies it.
type Recorder interface {
	RecordIMU(board.IMUSample) error
	RecordESC(esc.Telemetry) error
	RecordScan(lidar.Summary) error
}

// Options customise New. The zero value opens real serial ports, uses the
// wall clock and records nothing.
type Options struct {
	Clock    timeutil.Clock
	Opener   serialport.Opener
	Recorder Recorder
}

// Bridge owns one reader per channel. Readers exist for every channel even
// when disabled so that writes fail with serialport.ErrNotRunning rather
// than on a nil pointer.
type Bridge struct {
	SessionID string

	BoardReader *serialport.Reader
	LidarReader *serialport.Reader
	ESCReader   *serialport.Reader

	Board *board.Board
	Link  *link.Scanner
	Lidar *lidar.Decoder
	ESC   *esc.Scanner

	Events *Hub

	RecordErrors  atomic.Uint64
	RecordDropped atomic.Uint64

	cfg      *config.Config
	clock    timeutil.Clock
	recorder Recorder
	records  *recordQueue // nil without a recorder

	mu         sync.Mutex
	latestScan *lidar.Scan
	history    []lidar.Summary // ring of the last cfg.GetScanHistory() summaries
	historyPos int
	latestIMU  *board.IMUSample
	latestESC  *esc.Telemetry
}

// New builds a bridge from cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts Options) *Bridge {
	if cfg == nil {
		cfg = config.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	b := &Bridge{
		SessionID: uuid.NewString(),
		Events:    NewHub(hubBuffer),
		cfg:       cfg,
		clock:     clock,
		recorder:  opts.Recorder,
		history:   make([]lidar.Summary, 0, max(cfg.GetScanHistory(), 0)),
	}
	if b.recorder != nil {
		b.records = newRecordQueue(b, recordQueueSize)
	}

	b.BoardReader = b.newReader(config.DeviceBoard, opts.Opener)
	b.Board = board.New(b.BoardReader, clock)
	b.Board.IMUHandler = board.IMUHandlerFunc(b.handleIMU)
	b.Board.ESCHandler = esc.HandlerFunc(func(t esc.Telemetry) { b.handleESC(SourceBoard, t) })
	b.Board.EchoHandler = board.EchoHandlerFunc(b.handleEcho)
	b.Link = link.NewScanner(b.Board)
	b.BoardReader.Parser = b.Link

	b.Lidar = lidar.NewDecoder(lidar.ScanHandlerFunc(b.handleScan), clock)
	b.LidarReader = b.newReader(config.DeviceLidar, opts.Opener)
	b.LidarReader.Parser = b.Lidar

	b.ESC = esc.NewScanner(esc.HandlerFunc(func(t esc.Telemetry) { b.handleESC(SourceESC, t) }), clock)
	b.ESCReader = b.newReader(config.DeviceESC, opts.Opener)
	b.ESCReader.Parser = b.ESC

	return b
}

func (b *Bridge) newReader(d config.Device, open serialport.Opener) *serialport.Reader {
	r := serialport.NewReader(string(d), b.cfg.GetPath(d), b.cfg.PortOptions(d), nil)
	if open != nil {
		r.Open = open
	}
	return r
}

// readers pairs each reader with its device for iteration.
func (b *Bridge) readers() []struct {
	device config.Device
	reader *serialport.Reader
} {
	return []struct {
		device config.Device
		reader *serialport.Reader
	}{
		{config.DeviceBoard, b.BoardReader},
		{config.DeviceLidar, b.LidarReader},
		{config.DeviceESC, b.ESCReader},
	}
}

// Start starts every enabled reader. A reader that cannot start does not
// stop the others; the returned error names each one that failed.
func (b *Bridge) Start() error {
	var errs []error
	for _, r := range b.readers() {
		if !b.cfg.GetEnabled(r.device) {
			monitoring.Logf("bridge: %s disabled", r.device)
			continue
		}
		if !r.reader.Start() {
			errs = append(errs, fmt.Errorf("%s: start failed on %s", r.device, r.reader.Path))
			continue
		}
		monitoring.Logf("bridge: %s reading %s", r.device, r.reader.Path)
	}
	return errors.Join(errs...)
}

// Stop stops all running readers, waits for queued recorder writes and
// closes the event hub. The bridge cannot be restarted.
func (b *Bridge) Stop() {
	for _, r := range b.readers() {
		r.reader.Stop()
	}
	if b.records != nil {
		b.records.close()
	}
	b.Events.Close()
}

// Run logs throughput every stats period until ctx is done, then stops the
// readers.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.Stop()

	period := b.cfg.GetStatsPeriod()
	if period <= 0 {
		period = config.DefaultStatsPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.LogStats()
		}
	}
}

// LogStats logs a line per active channel.
func (b *Bridge) LogStats() {
	b.Lidar.Stats.LogStats()

	if n := b.BoardReader.Stats.BytesRead.Load(); n > 0 {
		monitoring.Logf("board stats: %s bytes, %d packets, %d crc errors, %d imu, %d esc, %d send errors",
			lidar.FormatWithCommas(int64(n)),
			b.Link.Stats.Delivered.Load(), b.Link.Stats.CRCErrors.Load(),
			b.Board.Stats.IMUSamples.Load(), b.Board.Stats.ESCFrames.Load(),
			b.Board.Stats.SendErrors.Load())
	}
	if n := b.ESC.Stats.Bytes.Load(); n > 0 {
		monitoring.Logf("esc stats: %s bytes, %d frames", lidar.FormatWithCommas(int64(n)), b.ESC.Stats.Frames.Load())
	}
	if n, d := b.RecordErrors.Load(), b.RecordDropped.Load(); n > 0 || d > 0 {
		monitoring.Logf("recorder: %d errors, %d dropped", n, d)
	}
}

func (b *Bridge) record(what string, err error) {
	if err == nil {
		return
	}
	// Only the first few failures are logged; the counter keeps the total.
	if b.RecordErrors.Add(1) <= 10 {
		monitoring.Logf("bridge: record %s: %v", what, err)
	}
}

func (b *Bridge) handleIMU(s board.IMUSample) {
	b.mu.Lock()
	b.latestIMU = &s
	b.mu.Unlock()

	if b.records != nil {
		b.records.enqueue("imu", func() error { return b.recorder.RecordIMU(s) })
	}
	b.Events.Publish(Event{Kind: KindIMU, Source: SourceBoard, Time: s.Time, Data: s})
}

func (b *Bridge) handleESC(source string, t esc.Telemetry) {
	b.mu.Lock()
	b.latestESC = &t
	b.mu.Unlock()

	if b.records != nil {
		b.records.enqueue("esc", func() error { return b.recorder.RecordESC(t) })
	}
	b.Events.Publish(Event{Kind: KindESC, Source: source, Time: t.Time, Data: t})
}

func (b *Bridge) handleEcho(data []byte) {
	monitoring.Debugf("board: echo response % x", data)
	b.Events.Publish(Event{
		Kind:   KindEcho,
		Source: SourceBoard,
		Time:   b.clock.Now(),
		Data:   append([]byte(nil), data...),
	})
}

func (b *Bridge) handleScan(s *lidar.Scan) {
	sum := lidar.Summarize(s)

	b.mu.Lock()
	b.latestScan = s
	if limit := cap(b.history); limit > 0 {
		if len(b.history) < limit {
			b.history = append(b.history, sum)
		} else {
			b.history[b.historyPos] = sum
		}
		b.historyPos = (b.historyPos + 1) % limit
	}
	b.mu.Unlock()

	if b.records != nil {
		b.records.enqueue("scan", func() error { return b.recorder.RecordScan(sum) })
	}
	b.Events.Publish(Event{Kind: KindScan, Source: SourceLidar, Time: sum.End, Data: sum})
}

// LatestScan returns the most recent complete scan, or nil.
func (b *Bridge) LatestScan() *lidar.Scan {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latestScan
}

// ScanHistory returns the retained scan summaries, newest first.
func (b *Bridge) ScanHistory() []lidar.Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.history)
	out := make([]lidar.Summary, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, b.history[(b.historyPos-i+n)%n])
	}
	return out
}

// LatestIMU returns the last IMU sample, if any.
func (b *Bridge) LatestIMU() (board.IMUSample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latestIMU == nil {
		return board.IMUSample{}, false
	}
	return *b.latestIMU, true
}

// LatestESC returns the last ESC telemetry from either source, if any.
func (b *Bridge) LatestESC() (esc.Telemetry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latestESC == nil {
		return esc.Telemetry{}, false
	}
	return *b.latestESC, true
}
