package stream

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"pettracker/internal/logger"
)

// CommandFunc builds the decoder process for one stream. The process must
// write raw bgr24 frames of width x height to stdout.
type CommandFunc func(ctx context.Context, url string, width, height int) *exec.Cmd

// DecoderArgs returns the ffmpeg arguments that read url over TCP and emit
// scaled raw bgr24 frames on stdout, logging only errors to stderr.
func DecoderArgs(url string, width, height int) []string {
	return ffmpeg.
		Input(url, ffmpeg.KwArgs{"rtsp_transport": "tcp"}).
		Output("pipe:", ffmpeg.KwArgs{
			"vf":       fmt.Sprintf("scale=%d:%d", width, height),
			"pix_fmt":  "bgr24",
			"f":        "rawvideo",
			"loglevel": "error",
		}).
		GetArgs()
}

// FFmpegCommand returns a CommandFunc running the ffmpeg binary at path.
func FFmpegCommand(path string) CommandFunc {
	return func(ctx context.Context, url string, width, height int) *exec.Cmd {
		return exec.CommandContext(ctx, path, DecoderArgs(url, width, height)...)
	}
}

// stderrLogger forwards decoder diagnostics line by line.
type stderrLogger struct {
	log *logger.Logger
	buf []byte
}

const maxDiagnosticLine = 4096

func (w *stderrLogger) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxDiagnosticLine {
		w.emit(w.buf)
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

func (w *stderrLogger) emit(line []byte) {
	if line = bytes.TrimSpace(line); len(line) > 0 {
		w.log.Warning("decoder: %s", line)
	}
}
