package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geoharvest/extentd/internal/cache/extentstore"
	"github.com/geoharvest/extentd/internal/cache/keys"
	"github.com/geoharvest/extentd/internal/cells"
	"github.com/geoharvest/extentd/internal/config"
	"github.com/geoharvest/extentd/internal/extent"
	"github.com/geoharvest/extentd/internal/logger"
	"github.com/geoharvest/extentd/internal/model"
	"github.com/geoharvest/extentd/internal/router"
	"github.com/geoharvest/extentd/internal/selection"
)

type Handler struct {
	logger *slog.Logger
	merger *extent.Merger
	store  extentstore.Store // nil when caching is disabled
	cfg    config.Config
}

func NewHandler(log *slog.Logger, merger *extent.Merger, store extentstore.Store, cfg config.Config) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{logger: log, merger: merger, store: store, cfg: cfg}
}

type mergeResponse struct {
	model.MergedExtent
	TBox  []string    `json:"tbox,omitempty"`
	Cells model.Cells `json:"cells,omitempty"`
}

func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	req, mode, payload, err := router.ParseMergeRequest(r, h.cfg.MaxBodyBytes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := logger.WithSource(r.Context(), req.Source)

	cellsRes := -1
	if req.CellsRes != nil {
		cellsRes = *req.CellsRes
	}

	var key string
	if h.store != nil && req.Source != "" {
		key = keys.MergeKey(req.Source, string(mode), cellsRes, payload)
		if body, ok := h.cacheGet(ctx, key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(body)
			return
		}
	}

	resp := mergeResponse{
		MergedExtent: h.merger.Merge(req.Records, mode),
		TBox:         extent.MergeTemporal(req.Records),
	}
	if cellsRes >= 0 {
		cl, err := cells.ForExtent(resp.MergedExtent, cellsRes)
		if err != nil {
			h.logger.WarnContext(ctx, "cell cover failed", "res", cellsRes, "err", err)
		} else {
			resp.Cells = cl
		}
	}

	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal merge response", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)

	if key != "" {
		h.cachePut(ctx, key, body)
	}
}

func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	defaults := selection.Options{
		Policy:        selection.Policy(h.cfg.DefaultPolicy),
		Seed:          h.cfg.DefaultSeed,
		CompositeExts: h.cfg.CompositeExts,
	}
	files, opts, err := router.ParseSelectRequest(r, h.cfg.MaxBodyBytes, defaults)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := logger.WithSource(r.Context(), opts.Source)

	result, err := selection.Select(files, opts)
	if err != nil {
		var exceeded *selection.SizeExceededError
		if errors.As(err, &exceeded) {
			h.logger.InfoContext(ctx, "selection exceeded hard limit",
				"estimated_bytes", exceeded.EstimatedBytes, "limit_bytes", exceeded.LimitBytes)
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
				"error":           "size_exceeded",
				"estimated_bytes": exceeded.EstimatedBytes,
				"limit_bytes":     exceeded.LimitBytes,
				"source":          exceeded.Source,
			})
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// stable JSON shape: arrays, never null
	if result.Selected == nil {
		result.Selected = []model.CandidateFile{}
	}
	if result.Skipped == nil {
		result.Skipped = []model.CandidateFile{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	opCtx, cancel := context.WithTimeout(ctx, h.cfg.CacheOpTimeout)
	defer cancel()
	body, ok, err := h.store.Get(opCtx, key)
	if err != nil {
		// cache trouble never fails a merge
		h.logger.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		return nil, false
	}
	return body, ok
}

func (h *Handler) cachePut(ctx context.Context, key string, body []byte) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.CacheOpTimeout)
	defer cancel()
	if err := h.store.Put(opCtx, key, body, h.cfg.CacheTTL); err != nil {
		h.logger.WarnContext(ctx, "cache put failed", "key", key, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
