package session

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/internal/transform"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureExporter struct {
	mu      sync.Mutex
	exports []Export
	err     error
}

func (c *captureExporter) Export(_ context.Context, exp Export) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exports = append(c.exports, exp)
	return c.err
}

func newTestRecorder(exp Exporter) (*Recorder, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRecorder(exp, nil)
	r.now = clock.Now
	return r, clock
}

func TestRecorderStartSeedsLog(t *testing.T) {
	r, _ := newTestRecorder(nil)

	if !r.Start("7", transform.SizeChange) {
		t.Fatal("expected Start to succeed")
	}

	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 seed entry, got %d", len(entries))
	}
	seed := entries[0]
	if seed.StartTime != 0 || seed.EndTime != 0 || seed.Theta != 0 {
		t.Errorf("expected zero seed entry, got %+v", seed)
	}
	if seed.ParticipantID != "7" || seed.Condition != transform.SizeChange {
		t.Errorf("expected seed to carry participant and condition, got %+v", seed)
	}

	if r.Summary().SessionID == "" {
		t.Error("expected session ID to be assigned")
	}
}

func TestRecorderStartWhileActiveIsNoop(t *testing.T) {
	r, clock := newTestRecorder(nil)

	r.Start("1", transform.Baseline)
	id := r.Summary().SessionID
	clock.Advance(time.Second)
	r.Record(transform.WindowTransform{Theta: 90}, nil)

	if r.Start("2", transform.FrameChange) {
		t.Error("expected second Start to be a no-op")
	}
	if got := r.Summary().SessionID; got != id {
		t.Errorf("expected session ID %s to be kept, got %s", id, got)
	}
	if len(r.Entries()) != 2 {
		t.Errorf("expected log to be preserved, got %d entries", len(r.Entries()))
	}
}

func TestRecorderTimeline(t *testing.T) {
	r, clock := newTestRecorder(nil)
	r.Start("1", transform.SizeChange)

	clock.Advance(500 * time.Millisecond)
	r.Record(transform.WindowTransform{Theta: 45, WidthInCaseOfChange: 900}, nil)
	clock.Advance(250 * time.Millisecond)
	r.Record(transform.WindowTransform{Theta: 270}, nil)

	entries := r.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[1].StartTime != 0 || entries[1].EndTime != 0.5 {
		t.Errorf("expected [0, 0.5], got [%v, %v]", entries[1].StartTime, entries[1].EndTime)
	}
	if entries[2].StartTime != 0.5 || entries[2].EndTime != 0.75 {
		t.Errorf("expected [0.5, 0.75], got [%v, %v]", entries[2].StartTime, entries[2].EndTime)
	}
	if entries[1].Direction != "LeftDown" {
		t.Errorf("expected direction LeftDown, got %q", entries[1].Direction)
	}
	if entries[1].WindowWidth != 900 {
		t.Errorf("expected window width 900, got %v", entries[1].WindowWidth)
	}
}

func TestRecorderRecordWhileIdle(t *testing.T) {
	r, _ := newTestRecorder(nil)

	if r.Record(transform.WindowTransform{}, nil) {
		t.Error("expected Record to be ignored while idle")
	}
	if len(r.Entries()) != 0 {
		t.Errorf("expected empty log, got %d entries", len(r.Entries()))
	}
}

func TestRecorderStopTwice(t *testing.T) {
	exp := &captureExporter{}
	r, clock := newTestRecorder(exp)

	r.Start("3", transform.PositionChange)
	clock.Advance(time.Second)
	r.Record(transform.WindowTransform{Theta: 10}, nil)

	if !r.Stop(context.Background()) {
		t.Fatal("expected first Stop to succeed")
	}
	if r.Stop(context.Background()) {
		t.Error("expected second Stop to be a no-op")
	}
	if len(exp.exports) != 1 {
		t.Fatalf("expected 1 export, got %d", len(exp.exports))
	}
	if len(exp.exports[0].Entries) != 2 {
		t.Errorf("expected 2 exported entries, got %d", len(exp.exports[0].Entries))
	}

	// log is frozen after stop
	r.Record(transform.WindowTransform{Theta: 20}, nil)
	if len(r.Entries()) != 2 {
		t.Errorf("expected frozen log of 2 entries, got %d", len(r.Entries()))
	}

	last, ok := r.LastExport()
	if !ok || last.SessionID != exp.exports[0].SessionID {
		t.Error("expected last export to be kept")
	}
}

func TestRecorderExportErrorDoesNotFailStop(t *testing.T) {
	exp := &captureExporter{err: errors.New("disk full")}
	r, _ := newTestRecorder(exp)

	r.Start("1", transform.Baseline)
	if !r.Stop(context.Background()) {
		t.Error("expected Stop to report success even if export fails")
	}
	if r.Active() {
		t.Error("expected recorder to be idle")
	}
}

func TestRecorderRemotesAreCopied(t *testing.T) {
	r, clock := newTestRecorder(nil)
	r.Start("1", transform.SizeChange)

	remotes := []RemoteSnapshot{{ID: "2", Transform: transform.WindowTransform{Theta: 180}}}
	clock.Advance(time.Second)
	r.Record(transform.WindowTransform{}, remotes)
	remotes[0].ID = "mutated"

	if got := r.Entries()[1].Remotes[0].ID; got != "2" {
		t.Errorf("expected remote ID 2, got %s", got)
	}
}

func TestWriteCSVHeader(t *testing.T) {
	entries := []Entry{
		{ParticipantID: "1", Condition: transform.SizeChange},
		{
			ParticipantID: "1",
			Condition:     transform.SizeChange,
			EndTime:       0.5,
			Theta:         270,
			Direction:     "Up",
			WindowWidth:   1000,
			SmoothedWidth: 950,
			GazeStatus:    transform.GazeMutual,
			IsSpeaking:    true,
			Transcript:    "hello, world",
			Remotes: []RemoteSnapshot{
				{ID: "2", Transform: transform.WindowTransform{Theta: 90, WidthInCaseOfChange: 800, GazeStatus: transform.GazeAversion}},
				{ID: "3"},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	header := records[0]
	if len(header) != len(baseColumns)+2*len(remoteColumns) {
		t.Errorf("expected %d columns, got %d", len(baseColumns)+2*len(remoteColumns), len(header))
	}
	if header[0] != "ID" || header[10] != "myTranscript" {
		t.Errorf("unexpected base header: %v", header[:11])
	}
	if header[11] != "otherUser1_ID" || header[len(header)-1] != "otherUser2_Transcript" {
		t.Errorf("unexpected remote header: %v", header[11:])
	}

	seed := records[1]
	if len(seed) != len(header) {
		t.Errorf("expected seed row padded to %d fields, got %d", len(header), len(seed))
	}
	if seed[5] != "" {
		t.Errorf("expected empty seed direction, got %q", seed[5])
	}

	row := records[2]
	if row[1] != "3" || row[3] != "0.5" || row[4] != "270" || row[5] != "Up" {
		t.Errorf("unexpected row: %v", row[:6])
	}
	if row[8] != "mutual gaze" || row[9] != "true" || row[10] != "hello, world" {
		t.Errorf("unexpected row: %v", row[8:11])
	}
	if row[11] != "2" || row[13] != "Down" || row[14] != "800" || row[15] != "gaze aversion" {
		t.Errorf("unexpected remote columns: %v", row[11:18])
	}
}

func TestWriteCSVNoRemotes(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []Entry{{ParticipantID: "1", Condition: transform.Baseline}}); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if strings.Contains(lines[0], "otherUser") {
		t.Errorf("expected no remote columns, got %s", lines[0])
	}
}

func TestFileExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	exp := &FileExporter{Dir: dir}

	export := Export{
		SessionID:     "abc",
		ParticipantID: "12",
		Condition:     transform.FrameChange,
		Entries:       []Entry{{ParticipantID: "12", Condition: transform.FrameChange}},
	}

	if err := exp.Export(context.Background(), export); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	path := filepath.Join(dir, "C2_ID12_headDirectionResults.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected export file at %s: %v", path, err)
	}
	if !strings.HasPrefix(string(data), "ID,condition,startTime") {
		t.Errorf("unexpected file contents: %s", data)
	}

	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Errorf("expected temp file to be cleaned up, got %d files", len(files))
	}
}

func TestFileExporterCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exp := &FileExporter{Dir: t.TempDir()}
	if err := exp.Export(ctx, Export{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
