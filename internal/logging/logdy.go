package logging

import (
	"fmt"
	"io"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog"
)

// lineLogger is the slice of the Logdy API the writer needs.
type lineLogger interface {
	LogString(msg string) error
}

// logdyWriter adapts a line logger to io.Writer so zerolog can tee into it.
type logdyWriter struct {
	logger lineLogger
}

func (w *logdyWriter) Write(p []byte) (int, error) {
	w.logger.LogString(string(p))
	return len(p), nil
}

// StartLogdy starts the embedded Logdy web UI and returns a writer that
// forwards log lines to it, plus the UI URL.
func StartLogdy(host string, port int) (io.Writer, string, error) {
	portStr := strconv.Itoa(port)
	ld := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   host,
		ServerPort: portStr,
	}, nil)
	return &logdyWriter{logger: ld}, fmt.Sprintf("http://%s:%s", host, portStr), nil
}

// Tee builds the root logger writing to every sink at once. The entrypoint
// uses it to combine the console writer with the Logdy UI writer; component
// loggers derive from the result via NewServiceLogger and WithCamera.
func Tee(sinks ...io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.MultiLevelWriter(sinks...)).With().Timestamp().Logger()
}
