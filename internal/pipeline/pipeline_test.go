package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/render"
	"clipforge/internal/services"
	"clipforge/internal/testsupport"
)

const probeJSONWithAudio = `{"streams":[{"codec_type":"video","width":640,"height":360,"duration":"2.0"},{"codec_type":"audio","channels":2}],"format":{"duration":"2.0"}}`

const probeJSONVideoOnly = `{"streams":[{"codec_type":"video","width":640,"height":360,"duration":"2.0"}],"format":{"duration":"2.0"}}`

// ffmpegStub builds a scripted ffmpeg: capability probes succeed only for
// libx264, every other invocation is logged to argsLog and emits one
// progress line before touching its final (output) argument.
func ffmpegStub(argsLog string) string {
	return fmt.Sprintf(`for last; do :; done
case "$*" in
  *"-i nullsrc"*libx264*) exit 0 ;;
  *"-i nullsrc"*) exit 1 ;;
esac
printf '%%s\n' "$@" >> %q
echo '====' >> %q
case "$*" in
  *fps=30*)
    dir=$(dirname "$last")
    i=1
    while [ $i -le 6 ]; do
      printf x > "$dir/frame_00000$i.png"
      i=$((i+1))
    done
    exit 0
    ;;
esac
echo "out_time_us=1000000"
: > "$last"`, argsLog, argsLog)
}

func newTestService(t *testing.T, opts ...testsupport.ConfigOption) (*Service, *config.Config, string) {
	t.Helper()
	argsLog := filepath.Join(t.TempDir(), "ffmpeg-args.log")
	base := []testsupport.ConfigOption{
		testsupport.WithScriptedBinary("ffmpeg", ffmpegStub(argsLog)),
		testsupport.WithScriptedBinary("ffprobe", "cat <<'EOF'\n"+probeJSONWithAudio+"\nEOF"),
	}
	cfg := testsupport.NewConfig(t, append(base, opts...)...)

	svc, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, cfg, argsLog
}

// invocations parses the args log into one argv per recorded call.
func invocations(t *testing.T, argsLog string) [][]string {
	t.Helper()
	data, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	var calls [][]string
	for _, chunk := range strings.Split(string(data), "====\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		calls = append(calls, strings.Split(chunk, "\n"))
	}
	return calls
}

func containsPair(argv []string, flag, value string) bool {
	for i := 0; i+1 < len(argv); i++ {
		if argv[i] == flag && argv[i+1] == value {
			return true
		}
	}
	return false
}

// waitForFile polls until path exists, failing the test after 5 seconds.
func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSelectScale(t *testing.T) {
	cases := []struct {
		width, height, want int
	}{
		{480, 270, 4},
		{640, 360, 3},
		{960, 540, 2},
		{1280, 720, 1},
		{1920, 1080, 1},
		{800, 600, 1},
		{4000, 2000, 1},
	}
	for _, tc := range cases {
		if got := SelectScale(tc.width, tc.height); got != tc.want {
			t.Errorf("SelectScale(%d, %d) = %d, want %d", tc.width, tc.height, got, tc.want)
		}
	}
}

func TestThroughputEvent(t *testing.T) {
	event := throughputEvent(50, 100, 10*time.Second)
	if event.Percent != 50 || event.FramesDone != 50 || event.TotalFrames != 100 {
		t.Fatalf("unexpected counters: %+v", event)
	}
	if event.FPS != "5.0" {
		t.Fatalf("expected 5.0 fps, got %q", event.FPS)
	}
	if event.ETA != "10s" {
		t.Fatalf("expected 10s eta, got %q", event.ETA)
	}

	if zero := throughputEvent(0, 100, 0); zero.ETA != "" || zero.FPS != "" {
		t.Fatalf("no throughput without completed work: %+v", zero)
	}
}

func TestExportTrim(t *testing.T) {
	svc, _, argsLog := newTestService(t)
	outputPath := filepath.Join(t.TempDir(), "clip.mp4")

	req := render.Trim{
		Segment: render.Segment{SourcePath: "/media/in.mp4", StartSeconds: 1, EndSeconds: 3},
		Options: render.Options{Resolution: render.Res720p, Quality: render.QualityMedium},
	}
	var events []jobs.Event
	got, err := svc.Export(context.Background(), req, outputPath, func(e jobs.Event) { events = append(events, e) })
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got != outputPath {
		t.Fatalf("expected %s, got %s", outputPath, got)
	}

	calls := invocations(t, argsLog)
	if len(calls) != 1 {
		t.Fatalf("expected one encode invocation, got %d", len(calls))
	}
	argv := calls[0]
	for _, want := range [][2]string{
		{"-ss", "1.000"},
		{"-t", "2.000"},
		{"-i", "/media/in.mp4"},
		{"-vf", "scale=-2:720,format=yuv420p"},
		{"-c:v", "libx264"},
		{"-crf", "23"},
		{"-c:a", "aac"},
		{"-movflags", "+faststart"},
	} {
		if !containsPair(argv, want[0], want[1]) {
			t.Errorf("missing %s %s in %v", want[0], want[1], argv)
		}
	}

	if len(events) == 0 || events[len(events)-1].Percent != 100 {
		t.Fatalf("expected terminal 100%% event, got %v", events)
	}
	// 1s of 2s reported by the stub.
	if events[0].Percent != 50 {
		t.Fatalf("expected 50%% first event, got %v", events[0])
	}
}

func TestExportRefusesUnvalidatedRequest(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := render.Trim{Segment: render.Segment{SourcePath: "", StartSeconds: 0, EndSeconds: 1}}
	if _, err := svc.Export(context.Background(), req, "/tmp/out.mp4", nil); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestExportPipUsesMainAudio(t *testing.T) {
	svc, _, argsLog := newTestService(t)

	req := render.PipSingle{
		Main:    render.Segment{SourcePath: "/media/main.mp4", StartSeconds: 0, EndSeconds: 4},
		Overlay: "/media/cam.mp4",
		Options: render.Options{Resolution: render.Res1080p, Quality: render.QualityMedium},
	}
	if _, err := svc.Export(context.Background(), req, filepath.Join(t.TempDir(), "pip.mp4"), nil); err != nil {
		t.Fatalf("export: %v", err)
	}

	calls := invocations(t, argsLog)
	argv := calls[len(calls)-1]
	if !containsPair(argv, "-map", "0:a:0") {
		t.Fatalf("expected main audio mapping in %v", argv)
	}
	if slices.Contains(argv, "-shortest") {
		t.Fatal("silence bound must not apply when real audio exists")
	}
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "scale2ref") || !strings.Contains(joined, "overlay=x='(W-w)/2':y='(H-h)/2'") {
		t.Fatalf("expected centered compositing graph, got %s", joined)
	}
}

func TestExportPipFallsBackToSilence(t *testing.T) {
	svc, _, argsLog := newTestService(t,
		testsupport.WithScriptedBinary("ffprobe", "cat <<'EOF'\n"+probeJSONVideoOnly+"\nEOF"))

	req := render.PipSingle{
		Main:    render.Segment{SourcePath: "/media/main.mp4", StartSeconds: 0, EndSeconds: 4},
		Overlay: "/media/cam.mp4",
		Options: render.Options{Resolution: render.Res720p, Quality: render.QualityFast},
	}
	if _, err := svc.Export(context.Background(), req, filepath.Join(t.TempDir(), "pip.mp4"), nil); err != nil {
		t.Fatalf("export: %v", err)
	}

	calls := invocations(t, argsLog)
	argv := calls[len(calls)-1]
	if !containsPair(argv, "-map", "2:a:0") {
		t.Fatalf("expected silence input mapping in %v", argv)
	}
	if !slices.Contains(argv, "-shortest") {
		t.Fatal("generated silence must be bounded by -shortest")
	}
	if !strings.Contains(strings.Join(argv, " "), "anullsrc") {
		t.Fatalf("expected anullsrc input in %v", argv)
	}
}

func TestConcatTwoPhase(t *testing.T) {
	svc, _, argsLog := newTestService(t)

	req := render.Concat{
		Segments: []render.Segment{
			{SourcePath: "/media/a.mp4", StartSeconds: 0, EndSeconds: 2},
			{SourcePath: "/media/b.mp4", StartSeconds: 1, EndSeconds: 4},
		},
		Options: render.Options{Resolution: render.Res720p, Quality: render.QualityMedium},
	}

	var stages []string
	_, err := svc.Export(context.Background(), req, filepath.Join(t.TempDir(), "joined.mp4"), func(e jobs.Event) {
		stages = append(stages, e.Stage)
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	calls := invocations(t, argsLog)
	if len(calls) != 3 {
		t.Fatalf("expected two normalize passes plus one copy, got %d", len(calls))
	}
	for _, argv := range calls[:2] {
		if !containsPair(argv, "-vf", "scale=-2:720,format=yuv420p") {
			t.Fatalf("normalize pass missing filter: %v", argv)
		}
	}
	final := calls[2]
	if !containsPair(final, "-f", "concat") || !containsPair(final, "-c", "copy") || !containsPair(final, "-safe", "0") {
		t.Fatalf("final pass must be a manifest stream copy: %v", final)
	}
	if slices.Contains(final, "-vf") {
		t.Fatal("stream copy must not re-filter")
	}

	if !slices.Contains(stages, "normalizing") || !slices.Contains(stages, "concatenating") {
		t.Fatalf("expected both phases reported, got %v", stages)
	}
}

func TestConcatCleansTempDir(t *testing.T) {
	svc, cfg, _ := newTestService(t)

	req := render.Concat{
		Segments: []render.Segment{{SourcePath: "/media/a.mp4", StartSeconds: 0, EndSeconds: 2}},
		Options:  render.Options{Resolution: render.ResSource, Quality: render.QualityMedium},
	}
	if _, err := svc.Export(context.Background(), req, filepath.Join(t.TempDir(), "one.mp4"), nil); err != nil {
		t.Fatalf("export: %v", err)
	}

	entries, err := os.ReadDir(cfg.StagingDir())
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			t.Fatalf("job temp dir left behind: %s", entry.Name())
		}
	}
}

func TestUpscalePipeline(t *testing.T) {
	svc, _, argsLog := newTestService(t,
		testsupport.WithScriptedBinary("upscaler", `cp "$2" "$4"`))

	var events []jobs.Event
	got, err := svc.Upscale(context.Background(), "/media/in.mp4", filepath.Join(t.TempDir(), "up.mp4"), func(e jobs.Event) {
		events = append(events, e)
	})
	if err != nil {
		t.Fatalf("upscale: %v", err)
	}
	if got == "" {
		t.Fatal("expected output path")
	}

	// 640x360 source selects 3x, so reassembly must force 1920x1080.
	calls := invocations(t, argsLog)
	final := calls[len(calls)-1]
	if !containsPair(final, "-vf", "scale=1920:1080,format=yuv420p") {
		t.Fatalf("expected forced target resolution, got %v", final)
	}
	if !containsPair(final, "-framerate", "30") {
		t.Fatalf("expected fixed reassembly framerate, got %v", final)
	}
	if !containsPair(final, "-map", "1:a:0") || !containsPair(final, "-c:a", "copy") {
		t.Fatalf("expected original-source audio passthrough, got %v", final)
	}

	if events[0].Stage != "extracting" || events[0].Percent != -1 {
		t.Fatalf("extraction must report indeterminate first: %+v", events[0])
	}
	var batches []jobs.Event
	for _, event := range events {
		if event.Stage == "upscaling" {
			batches = append(batches, event)
		}
	}
	// 6 frames in batches of 4: one full batch, one remainder.
	if len(batches) != 2 {
		t.Fatalf("expected 2 batch events, got %v", batches)
	}
	if batches[0].FramesDone != 4 || batches[1].FramesDone != 6 || batches[1].TotalFrames != 6 {
		t.Fatalf("unexpected batch counters: %v", batches)
	}
	if batches[0].ETA == "" || batches[0].FPS == "" {
		t.Fatalf("batch events must carry throughput: %+v", batches[0])
	}
	if last := events[len(events)-1]; last.Stage != "assembling" || last.Percent != 100 {
		t.Fatalf("expected terminal assembling event, got %+v", last)
	}
}

func TestUpscaleFrameFailureFailsJob(t *testing.T) {
	svc, cfg, _ := newTestService(t,
		testsupport.WithScriptedBinary("upscaler", `echo "vulkan device lost" >&2; exit 1`))

	_, err := svc.Upscale(context.Background(), "/media/in.mp4", filepath.Join(t.TempDir(), "up.mp4"), nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "vulkan device lost") {
		t.Fatalf("expected upscaler stderr in error, got %v", err)
	}

	entries, readErr := os.ReadDir(cfg.StagingDir())
	if readErr != nil {
		t.Fatalf("read staging dir: %v", readErr)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			t.Fatal("failed upscale must remove its temp dir")
		}
	}
}

func TestExportBusyAndCancel(t *testing.T) {
	sentinel := filepath.Join(t.TempDir(), "encode-started")
	slowStub := `case "$*" in
  *nullsrc*libx264*) exit 0 ;;
  *nullsrc*) exit 1 ;;
esac
touch ` + sentinel + `
sleep 30`
	cfg := testsupport.NewConfig(t,
		testsupport.WithScriptedBinary("ffmpeg", slowStub),
		testsupport.WithScriptedBinary("ffprobe", "cat <<'EOF'\n"+probeJSONWithAudio+"\nEOF"))

	svc, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	req := render.Trim{
		Segment: render.Segment{SourcePath: "/media/in.mp4", StartSeconds: 0, EndSeconds: 2},
		Options: render.Options{Resolution: render.ResSource, Quality: render.QualityMedium},
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Export(context.Background(), req, filepath.Join(t.TempDir(), "a.mp4"), nil)
		done <- err
	}()

	// Wait for the background export to actually hold the slot before
	// probing it; racing two Exports could hand the slot to either one.
	waitForFile(t, sentinel)

	if _, busyErr := svc.Export(context.Background(), req, filepath.Join(t.TempDir(), "b.mp4"), nil); !errors.Is(busyErr, services.ErrBusy) {
		t.Fatalf("expected busy slot, got %v", busyErr)
	}

	if !svc.Cancel(jobs.CategoryExport) {
		t.Fatal("expected cancel to find the running export")
	}
	select {
	case err := <-done:
		if !services.IsCancelled(err) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the export")
	}

	if svc.Cancel(jobs.CategoryExport) {
		t.Fatal("second cancel must report nothing in flight")
	}
}

func TestThumbnail(t *testing.T) {
	svc, _, argsLog := newTestService(t)

	if _, err := svc.Thumbnail(context.Background(), "/media/in.mp4", "/tmp/poster.jpg", -1); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("negative timestamp must be rejected, got %v", err)
	}

	outputPath := filepath.Join(t.TempDir(), "poster.jpg")
	got, err := svc.Thumbnail(context.Background(), "/media/in.mp4", outputPath, 12.5)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if got != outputPath {
		t.Fatalf("expected %s, got %s", outputPath, got)
	}

	calls := invocations(t, argsLog)
	argv := calls[len(calls)-1]
	if !containsPair(argv, "-ss", "12.500") || !containsPair(argv, "-frames:v", "1") {
		t.Fatalf("unexpected thumbnail invocation: %v", argv)
	}
}

func TestHistoryRecordsTerminalJobs(t *testing.T) {
	svc, _, _ := newTestService(t, testsupport.WithHistory())
	if svc.History() == nil {
		t.Fatal("history should be enabled")
	}

	req := render.Trim{
		Segment: render.Segment{SourcePath: "/media/in.mp4", StartSeconds: 0, EndSeconds: 2},
		Options: render.Options{Resolution: render.Res720p, Quality: render.QualitySlow},
	}
	if _, err := svc.Export(context.Background(), req, filepath.Join(t.TempDir(), "c.mp4"), nil); err != nil {
		t.Fatalf("export: %v", err)
	}

	records, err := svc.History().Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].Kind != "trim" || records[0].State != "completed" || records[0].Category != "export" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}
