// Package ui renders engine events on a plain terminal. It is a passive
// consumer: the only information flowing back into the engine is prompt
// answers.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/ntfs2linux/ntfs2linux/internal/event"
)

// Plain is the line-oriented terminal Reporter.
type Plain struct {
	in  *bufio.Reader
	out io.Writer
}

var _ event.Reporter = (*Plain)(nil)

// NewPlain builds a Plain reporter reading prompt answers from stdin.
func NewPlain() *Plain {
	return &Plain{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stderr,
	}
}

// Log forwards engine log events through logrus at the matching level.
func (p *Plain) Log(level event.Level, text string) {
	switch level {
	case event.Success:
		logrus.WithField("result", "ok").Info(text)
	case event.Warning:
		logrus.Warn(text)
	case event.Error:
		logrus.Error(text)
	default:
		logrus.Info(text)
	}
}

// Status renders the current activity, with its percentage when one exists.
func (p *Plain) Status(text string, percent float64) {
	if percent < 0 {
		logrus.Info(text)
		return
	}
	logrus.WithField("percent", fmt.Sprintf("%.0f%%", percent)).Info(text)
}

// Panel renders the conversion snapshot as one structured line.
func (p *Plain) Panel(panel event.Panel) {
	logrus.WithFields(logrus.Fields{
		"source":         panel.Source,
		"target":         panel.Target,
		"iteration":      panel.Iteration,
		"files_migrated": humanize.Comma(int64(panel.FilesMigrated)),
		"operation":      panel.CurrentOp,
	}).Info("Conversion progress")
}

// Prompt prints the options and reads a 1-based selection. An unreadable or
// empty answer counts as cancellation.
func (p *Plain) Prompt(title string, options []string) (int, error) {
	fmt.Fprintf(p.out, "\n%s\n", title)
	for i, opt := range options {
		fmt.Fprintf(p.out, "  [%d] %s\n", i+1, opt)
	}
	fmt.Fprintf(p.out, "Select [1-%d]: ", len(options))

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return 0, event.ErrCancelled
	}

	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(options) {
		return 0, event.ErrCancelled
	}

	return choice - 1, nil
}
