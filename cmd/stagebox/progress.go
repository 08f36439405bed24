package main

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/stagebox/service/internal/upload"
)

// progressReporter renders aggregate upload progress, as a bar on terminals
// and as log lines otherwise.
type progressReporter struct {
	bar    *progressbar.ProgressBar
	logger *log.Logger
	last   int
	busy   bool
}

func newProgressReporter(w io.Writer, logger *log.Logger, total int) *progressReporter {
	r := &progressReporter{logger: logger, last: -1}
	if isTerminal(w) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("uploading"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
		)
	}
	if logger != nil {
		logger.Info("uploading", "files", total)
	}
	return r
}

// Report receives events from upload.Coordinator; calls are serialized.
func (r *progressReporter) Report(p upload.Progress) {
	if r.bar != nil {
		if !p.Determinate && !r.busy {
			r.bar.Describe("uploading (waiting for server)")
			r.busy = true
		} else if p.Determinate && r.busy {
			r.bar.Describe("uploading")
			r.busy = false
		}
		_ = r.bar.Set(p.Percent)
		return
	}
	if p.Percent == r.last && !p.Done() {
		return
	}
	r.last = p.Percent
	if r.logger != nil {
		r.logger.Info("progress", "percent", p.Percent, "settled", p.Settled, "total", p.Total, "determinate", p.Determinate)
	}
}

// Close leaves the bar where the commit ended.
func (r *progressReporter) Close() {
	if r.bar != nil && !r.bar.IsFinished() {
		_ = r.bar.Exit()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
