// Package router validates the service's request bodies and normalizes
// them into core inputs.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/geoharvest/extentd/internal/extent"
	"github.com/geoharvest/extentd/internal/model"
	"github.com/geoharvest/extentd/internal/selection"
)

const maxRecords = 100000

type MergeRequest struct {
	Records  []model.ExtentRecord `json:"records"`
	Mode     string               `json:"mode,omitempty"`
	CellsRes *int                 `json:"cells_res,omitempty"`
	Source   string               `json:"source,omitempty"`
}

type SelectRequest struct {
	Files       []model.CandidateFile `json:"files"`
	BudgetBytes *int64                `json:"budget_bytes"`
	Policy      string                `json:"policy,omitempty"`
	Seed        *int64                `json:"seed,omitempty"`
	HardLimit   bool                  `json:"hard_limit,omitempty"`
	Source      string                `json:"source,omitempty"`
}

// ParseMergeRequest decodes and validates a merge body. The returned raw
// bytes are the canonical payload used for cache keying.
func ParseMergeRequest(r *http.Request, maxBody int64) (MergeRequest, extent.Mode, []byte, error) {
	body, err := readBody(r, maxBody)
	if err != nil {
		return MergeRequest{}, "", nil, err
	}

	var req MergeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return MergeRequest{}, "", nil, fmt.Errorf("parse body: %w", err)
	}
	mode, err := extent.ParseMode(req.Mode)
	if err != nil {
		return MergeRequest{}, "", nil, err
	}
	if len(req.Records) > maxRecords {
		return MergeRequest{}, "", nil, fmt.Errorf("too many records (%d, max %d)", len(req.Records), maxRecords)
	}
	if req.CellsRes != nil && (*req.CellsRes < 0 || *req.CellsRes > 15) {
		return MergeRequest{}, "", nil, fmt.Errorf("cells_res must be 0..15 (got %d)", *req.CellsRes)
	}
	req.Source = strings.TrimSpace(req.Source)
	return req, mode, body, nil
}

// ParseSelectRequest decodes and validates a select body into selector
// options.
func ParseSelectRequest(r *http.Request, maxBody int64, defaults selection.Options) ([]model.CandidateFile, selection.Options, error) {
	body, err := readBody(r, maxBody)
	if err != nil {
		return nil, selection.Options{}, err
	}

	var req SelectRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, selection.Options{}, fmt.Errorf("parse body: %w", err)
	}

	for i, f := range req.Files {
		if strings.TrimSpace(f.Name) == "" {
			return nil, selection.Options{}, fmt.Errorf("files[%d]: name is required", i)
		}
		if f.Size < 0 {
			return nil, selection.Options{}, fmt.Errorf("files[%d]: size must be >= 0", i)
		}
	}
	if req.BudgetBytes != nil && *req.BudgetBytes < 0 {
		return nil, selection.Options{}, errors.New("budget_bytes must be >= 0 or null")
	}

	policy := defaults.Policy
	if req.Policy != "" {
		policy, err = selection.ParsePolicy(req.Policy)
		if err != nil {
			return nil, selection.Options{}, err
		}
	}

	opts := selection.Options{
		BudgetBytes:   req.BudgetBytes,
		Policy:        policy,
		Seed:          defaults.Seed,
		HardLimit:     req.HardLimit,
		Source:        strings.TrimSpace(req.Source),
		CompositeExts: defaults.CompositeExts,
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	return req.Files, opts, nil
}

func readBody(r *http.Request, maxBody int64) ([]byte, error) {
	if maxBody <= 0 {
		maxBody = 16 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBody)
	}
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return body, nil
}
