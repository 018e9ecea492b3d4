// Package selection decides, under a byte budget, which candidate files a
// download executor should fetch. It performs no I/O.
package selection

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/geoharvest/extentd/internal/model"
	"github.com/geoharvest/extentd/internal/observability"
)

type Policy string

const (
	PolicyOrdered  Policy = "ordered"
	PolicyRandom   Policy = "random"
	PolicySmallest Policy = "smallest"
	PolicyLargest  Policy = "largest"
)

// ParsePolicy accepts ordered|random|smallest|largest; the empty string
// means ordered.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyOrdered:
		return PolicyOrdered, nil
	case PolicyRandom, PolicySmallest, PolicyLargest:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("invalid policy %q (want ordered|random|smallest|largest)", s)
	}
}

// DefaultSeed drives the random policy when the caller supplies none. An
// explicit parameter, never ambient state, so concurrent selections stay
// reproducible.
const DefaultSeed int64 = 42

type Options struct {
	// BudgetBytes caps the total known size of selected files; nil means
	// unlimited.
	BudgetBytes *int64
	Policy      Policy
	Seed        int64 // DefaultSeed when 0
	// HardLimit turns a truncated selection into a SizeExceededError
	// instead of a silently shortened result.
	HardLimit bool
	// Source labels errors and logs, e.g. the repository identifier.
	Source string
	// CompositeExts overrides DefaultCompositeExts for atomic grouping.
	CompositeExts []string
}

// SizeExceededError reports a hard-limit violation. EstimatedBytes is the
// total size of every sized candidate, not just the skipped remainder.
type SizeExceededError struct {
	EstimatedBytes int64
	LimitBytes     int64
	Source         string
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("candidate files for %q total %d bytes, exceeding the %d byte limit",
		e.Source, e.EstimatedBytes, e.LimitBytes)
}

// Select walks the policy-ordered units greedily and stops at the first
// unit that would overrun the budget; later units are skipped even when
// they would individually fit. Files of unknown size cannot be
// budget-checked and are always selected without counting toward the
// total.
func Select(files []model.CandidateFile, opts Options) (model.SelectionResult, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyOrdered
	}
	exts := opts.CompositeExts
	if exts == nil {
		exts = DefaultCompositeExts
	}

	var sized, unsized []model.CandidateFile
	for _, f := range files {
		if f.Size > 0 {
			sized = append(sized, f)
		} else {
			unsized = append(unsized, f)
		}
	}

	if opts.BudgetBytes == nil {
		var total int64
		for _, f := range sized {
			total += f.Size
		}
		out := model.SelectionResult{Selected: append([]model.CandidateFile{}, files...), TotalBytes: total}
		observability.ObserveSelection(string(policy), "ok", total)
		return out, nil
	}
	budget := *opts.BudgetBytes

	units := buildUnits(sized, exts)
	orderUnits(units, policy, opts.Seed)

	var (
		selected []model.CandidateFile
		skipped  []model.CandidateFile
		running  int64
		stopped  bool
	)
	for _, u := range units {
		if !stopped && running+u.size <= budget {
			selected = append(selected, u.files...)
			running += u.size
			continue
		}
		// greedy stop: the first rejection ends the walk for good
		stopped = true
		skipped = append(skipped, u.files...)
	}

	if opts.HardLimit && stopped {
		var estimated int64
		for _, u := range units {
			estimated += u.size
		}
		observability.ObserveSelection(string(policy), "size_exceeded", 0)
		return model.SelectionResult{}, &SizeExceededError{
			EstimatedBytes: estimated,
			LimitBytes:     budget,
			Source:         opts.Source,
		}
	}

	selected = append(selected, unsized...)
	observability.ObserveSelection(string(policy), "ok", running)
	return model.SelectionResult{Selected: selected, TotalBytes: running, Skipped: skipped}, nil
}

func orderUnits(units []unit, policy Policy, seed int64) {
	switch policy {
	case PolicyRandom:
		if seed == 0 {
			seed = DefaultSeed
		}
		r := rand.New(rand.NewSource(seed))
		r.Shuffle(len(units), func(i, j int) { units[i], units[j] = units[j], units[i] })
	case PolicySmallest:
		sort.SliceStable(units, func(i, j int) bool { return units[i].size < units[j].size })
	case PolicyLargest:
		sort.SliceStable(units, func(i, j int) bool { return units[i].size > units[j].size })
	}
}
