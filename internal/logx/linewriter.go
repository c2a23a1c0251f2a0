package logx

import (
	"bufio"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LineWriter turns stream output into per-line zerolog events at a given level.
// Used to fold yt-dlp and ffmpeg stderr into the structured log.
type LineWriter struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func NewLineWriter(fields map[string]string, level zerolog.Level) *LineWriter {
	l := log.Logger
	w := l.With()
	for k, v := range fields {
		w = w.Str(k, v)
	}
	return &LineWriter{logger: w.Logger(), level: level}
}

func (lw *LineWriter) Pipe(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		switch lw.level {
		case zerolog.DebugLevel:
			lw.logger.Debug().Msg(sc.Text())
		case zerolog.ErrorLevel:
			lw.logger.Error().Msg(sc.Text())
		default:
			lw.logger.Info().Msg(sc.Text())
		}
	}
}

// Write lets a LineWriter stand in for an io.Writer on exec.Cmd stderr.
// Partial lines are logged as received; subprocess output is line-buffered
// in practice.
func (lw *LineWriter) Write(p []byte) (int, error) {
	for _, line := range splitLines(p) {
		if line == "" {
			continue
		}
		switch lw.level {
		case zerolog.DebugLevel:
			lw.logger.Debug().Msg(line)
		case zerolog.ErrorLevel:
			lw.logger.Error().Msg(line)
		default:
			lw.logger.Info().Msg(line)
		}
	}
	return len(p), nil
}

func splitLines(p []byte) []string {
	var out []string
	start := 0
	for i, b := range p {
		if b == '\n' || b == '\r' {
			out = append(out, string(p[start:i]))
			start = i + 1
		}
	}
	if start < len(p) {
		out = append(out, string(p[start:]))
	}
	return out
}
