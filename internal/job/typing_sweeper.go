package job

import (
	"context"
	"time"

	"Parley/internal/service"

	"go.uber.org/zap"
)

// TypingSweeper removes typing indicator rows that expired long ago.
// Expiry itself is enforced at read time; the sweeper only keeps the
// collection from accumulating stale rows.
type TypingSweeper struct {
	typing service.TypingService
	logger *zap.Logger
}

func NewTypingSweeper(typing service.TypingService, logger *zap.Logger) *TypingSweeper {
	return &TypingSweeper{typing: typing, logger: logger}
}

func (s *TypingSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.typing.SweepStale(ctx)
	if err != nil {
		s.logger.Warn("typing sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Debug("typing sweep removed stale indicators", zap.Int64("removed", removed))
	}
}
