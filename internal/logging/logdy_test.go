package logging

import (
	"bytes"
	"strings"
	"testing"
)

type recordingLineLogger struct {
	lines []string
}

func (r *recordingLineLogger) LogString(msg string) error {
	r.lines = append(r.lines, msg)
	return nil
}

func TestLogdyWriterForwardsLines(t *testing.T) {
	rec := &recordingLineLogger{}
	w := &logdyWriter{logger: rec}

	line := `{"level":"info","message":"hello"}` + "\n"
	n, err := w.Write([]byte(line))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(line) {
		t.Errorf("Write returned %d, want %d", n, len(line))
	}
	if len(rec.lines) != 1 || rec.lines[0] != line {
		t.Errorf("forwarded lines = %q, want the raw line", rec.lines)
	}
}

func TestTeeWritesToAllSinks(t *testing.T) {
	var a, b bytes.Buffer
	logger := Tee(&a, &b)

	logger.Info().Str("camera_id", "cam-a").Msg("tee check")

	for name, buf := range map[string]*bytes.Buffer{"first": &a, "second": &b} {
		if !strings.Contains(buf.String(), "tee check") {
			t.Errorf("%s sink missing log line: %q", name, buf.String())
		}
		if !strings.Contains(buf.String(), `"camera_id":"cam-a"`) {
			t.Errorf("%s sink missing structured field: %q", name, buf.String())
		}
	}
}
