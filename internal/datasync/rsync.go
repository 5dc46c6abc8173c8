package datasync

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"relocate/internal/cmdexec"
	"relocate/internal/config"
	"relocate/internal/logging"
)

// baseArgs preserve ownership, hard links, ACLs and xattrs, keep partially
// transferred files for the next attempt, and report whole-transfer progress.
// No deletion flag is ever passed.
var baseArgs = []string{"-aHAX", "--numeric-ids", "--partial", "--info=progress2"}

// progressHeartbeat keeps a slow copy visible in the log between buckets.
const progressHeartbeat = 5 * time.Minute

// Progress is one parsed progress line.
type Progress struct {
	Bytes   int64
	Percent float64
	Rate    string
	ETA     string
}

// Syncer copies directory trees with rsync.
type Syncer struct {
	binary    string
	extraArgs []string
	runner    cmdexec.Runner
	logger    *slog.Logger
}

// New returns a Syncer using the configured binary and arguments.
func New(cfg config.Sync, runner cmdexec.Runner, logger *slog.Logger) *Syncer {
	return &Syncer{
		binary:    cfg.Binary,
		extraArgs: append([]string(nil), cfg.ExtraArgs...),
		runner:    runner,
		logger:    logging.NewComponentLogger(logger, "sync"),
	}
}

// Binary returns the copy tool executable.
func (s *Syncer) Binary() string {
	return s.binary
}

// Args returns the full argument list for copying the contents of src into dst.
func (s *Syncer) Args(src, dst string) []string {
	args := append([]string(nil), baseArgs...)
	args = append(args, s.extraArgs...)
	return append(args, withSlash(src), withSlash(dst))
}

// Sync copies the contents of src into dst. Files already present at dst are
// updated in place and nothing at dst is removed, so the call can be repeated
// after an interruption. label tags progress log lines.
func (s *Syncer) Sync(ctx context.Context, label, src, dst string) error {
	sampler := logging.NewProgressSampler(10, logging.WithHeartbeat(progressHeartbeat))
	var last Progress
	err := s.runner.Run(ctx, s.binary, s.Args(src, dst), func(line string) {
		p, ok := ParseProgress(line)
		if !ok {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				s.logger.Debug("rsync output", logging.String("copy", label), logging.String("line", trimmed))
			}
			return
		}
		last = p
		if sampler.ShouldLog(p.Percent, label) {
			s.logger.Info("copy progress",
				logging.String("copy", label),
				logging.Int("percent", int(p.Percent)),
				logging.Bytes("transferred", p.Bytes),
				logging.String("rate", p.Rate),
				logging.String("eta", p.ETA),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	s.logger.Info("copy finished",
		logging.String("copy", label),
		logging.Bytes("transferred", last.Bytes),
	)
	return nil
}

var progressPattern = regexp.MustCompile(`^\s*([\d,]+)\s+(\d{1,3})%\s+(\S+)\s+(\d+:\d{2}:\d{2})`)

// ParseProgress parses an rsync --info=progress2 line such as
// "  1,234,567  45%   12.34MB/s    0:01:23 (xfr#12, to-chk=34/567)".
func ParseProgress(line string) (Progress, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	bytes, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return Progress{}, false
	}
	percent, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Progress{}, false
	}
	return Progress{Bytes: bytes, Percent: percent, Rate: m[3], ETA: m[4]}, true
}

func withSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}
