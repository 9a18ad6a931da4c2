package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/logistics-id/crud/common"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ZapQueryHook logs every bun query with its duration and request id.
type ZapQueryHook struct {
	Logger *zap.Logger
}

var _ bun.QueryHook = (*ZapQueryHook)(nil)

func (h *ZapQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *ZapQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	log := h.Logger.With(
		zap.String("event", event.Operation()),
		zap.String("query", strings.ReplaceAll(event.Query, "\"", "")),
		zap.String("request_id", common.GetContextRequestID(ctx)),
		zap.Duration("duration", time.Since(event.StartTime)),
	)

	if event.Err != nil && !isNoRows(event.Err) {
		log.Error("PG/QUERY", zap.Error(event.Err))
	} else {
		log.Debug("PG/QUERY")
	}
}
