package search

import (
	"log/slog"

	"github.com/poiesic/rankit/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	RuleStarted(rule string, depth int, universe uint64)
	Bucket(rule string, depth int, size uint64)
	Finish(documents []core.DocumentID, total uint64)
	Abort(err error)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                        {}
func (n *noopMonitor) RuleStarted(_ string, _ int, _ uint64) {}
func (n *noopMonitor) Bucket(_ string, _ int, _ uint64)      {}
func (n *noopMonitor) Finish(_ []core.DocumentID, _ uint64)  {}
func (n *noopMonitor) Abort(_ error)                         {}

// LoggingMonitor logs every step of a search at debug level.
type LoggingMonitor struct {
	logger *slog.Logger
}

var _ SearchMonitor = (*LoggingMonitor)(nil)

// NewLoggingMonitor creates a monitor logging to logger, or slog.Default() if nil.
func NewLoggingMonitor(logger *slog.Logger) *LoggingMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMonitor{logger: logger}
}

func (m *LoggingMonitor) Start(query string) {
	m.logger.Debug("search started", "query", query)
}

func (m *LoggingMonitor) RuleStarted(rule string, depth int, universe uint64) {
	m.logger.Debug("rule started", "rule", rule, "depth", depth, "universe", universe)
}

func (m *LoggingMonitor) Bucket(rule string, depth int, size uint64) {
	m.logger.Debug("bucket", "rule", rule, "depth", depth, "size", size)
}

func (m *LoggingMonitor) Finish(documents []core.DocumentID, total uint64) {
	m.logger.Debug("search finished", "returned", len(documents), "total", total)
}

func (m *LoggingMonitor) Abort(err error) {
	m.logger.Warn("search aborted", "err", err)
}

// multiMonitor fans events out to several monitors.
type multiMonitor []SearchMonitor

// Monitors combines monitors into one; nil monitors are skipped.
func Monitors(monitors ...SearchMonitor) SearchMonitor {
	var out multiMonitor
	for _, m := range monitors {
		if m != nil {
			out = append(out, m)
		}
	}
	switch len(out) {
	case 0:
		return &noopMonitor{}
	case 1:
		return out[0]
	}
	return out
}

func (mm multiMonitor) Start(query string) {
	for _, m := range mm {
		m.Start(query)
	}
}

func (mm multiMonitor) RuleStarted(rule string, depth int, universe uint64) {
	for _, m := range mm {
		m.RuleStarted(rule, depth, universe)
	}
}

func (mm multiMonitor) Bucket(rule string, depth int, size uint64) {
	for _, m := range mm {
		m.Bucket(rule, depth, size)
	}
}

func (mm multiMonitor) Finish(documents []core.DocumentID, total uint64) {
	for _, m := range mm {
		m.Finish(documents, total)
	}
}

func (mm multiMonitor) Abort(err error) {
	for _, m := range mm {
		m.Abort(err)
	}
}
