package main

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/BearBump/ClaimBox/internal/broker/messages"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/BearBump/ClaimBox/internal/services/pool"
)

type canceller interface {
	Cancel(ctx context.Context, tokens []string) ([]outcome.Outcome, error)
	Stats() pool.Stats
}

// outcomeHandler cancels the original claim once its copy is accepted.
type outcomeHandler struct {
	cancel          canceller
	cancelOriginals bool

	seen      atomic.Int64
	cancelled atomic.Int64
	failed    atomic.Int64
}

type handlerStats struct {
	Seen      int64      `json:"seen"`
	Cancelled int64      `json:"cancelled"`
	Failed    int64      `json:"failed"`
	Pool      pool.Stats `json:"pool"`
}

func (h *outcomeHandler) Stats() handlerStats {
	return handlerStats{
		Seen:      h.seen.Load(),
		Cancelled: h.cancelled.Load(),
		Failed:    h.failed.Load(),
		Pool:      h.cancel.Stats(),
	}
}

func (h *outcomeHandler) Handle(ctx context.Context, m messages.ClaimOutcome) error {
	h.seen.Add(1)
	if !h.cancelOriginals || m.Op != string(outcome.OpAccept) || !m.OK || m.Source == "" {
		return nil
	}

	outs, err := h.cancel.Cancel(ctx, []string{m.Source})
	if err != nil {
		return err
	}
	for _, o := range outs {
		if o.OK {
			h.cancelled.Add(1)
			slog.Info("original claim cancelled", "run_id", m.RunID, "source", m.Source, "replacement", m.ClaimID, "status", o.Status)
			continue
		}
		// Ошибка отмены уже ушла в репортёр; сообщение коммитим, повтор не поможет.
		h.failed.Add(1)
		slog.Error("cancel original claim", "run_id", m.RunID, "source", m.Source, "kind", string(o.Kind), "error", o.Message)
	}
	return nil
}
