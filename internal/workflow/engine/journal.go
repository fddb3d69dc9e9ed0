package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/storyforge/internal/stage"
)

type journalLevel int

const (
	levelInfo journalLevel = iota
	levelWarn
	levelError
)

func (e *Engine) journalf(level journalLevel, format string, args ...any) {
	if e.journal == nil {
		return
	}
	switch level {
	case levelWarn:
		e.journal.Warn(format, args...)
	case levelError:
		e.journal.Error(format, args...)
	default:
		e.journal.Info(format, args...)
	}
}

// journalReport writes the one-line outcome the CLI also prints.
func (e *Engine) journalReport(report stage.Report, runErr error) {
	prefix := ""
	if report.DryRun {
		prefix = "[dry run] "
	}
	summary := Summary(report)
	switch {
	case runErr != nil:
		e.journalf(levelError, "%s%s; aborted: %v", prefix, summary, runErr)
	case !report.OK():
		e.journalf(levelWarn, "%s%s; failed ids: %s", prefix, summary, strings.Join(report.FailedIDs(), ", "))
	default:
		e.journalf(levelInfo, "%s%s", prefix, summary)
	}
}

// Summary renders the processed, skipped and failed counts of a report.
func Summary(report stage.Report) string {
	return fmt.Sprintf("stage %s (%s): %d processed, %d skipped, %d failed of %d in %s",
		report.Stage, report.Mode, report.Processed, report.Skipped, len(report.Failed), report.Total,
		report.Duration().Round(time.Millisecond))
}
