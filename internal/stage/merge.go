package stage

import (
	"context"
	"errors"
	"strings"

	"github.com/kingrea/storyforge/internal/artifact"
	"github.com/kingrea/storyforge/internal/hierarchy"
)

type mergeGroup struct {
	parent  hierarchy.ID
	output  string
	members []artifact.Entry
}

// merge joins every sibling group into its parent. All groups are checked for
// gaps before anything is written.
func (r *Runner) merge(ctx context.Context, def Definition, opts RunOptions, t *tally) error {
	entries, err := r.match(def)
	if err != nil {
		return err
	}
	t.report.Matched = len(entries)
	groups := groupByParent(entries)
	var gaps []error
	for _, group := range groups {
		if err := checkContiguous(def.Name, group); err != nil {
			gaps = append(gaps, err)
		}
	}
	if len(gaps) > 0 {
		return errors.Join(gaps...)
	}
	codec := def.Codec()
	for i := range groups {
		name, err := codec.Encode(def.OutputPrefix, groups[i].parent)
		if err != nil {
			return err
		}
		groups[i].output = name
	}
	r.started(def, t, len(groups))
	joiner := def.JoinerOrDefault()
	return forEach(ctx, workerCount(def, opts), len(groups), func(_ context.Context, i int) error {
		r.mergeOne(def, opts, groups[i], joiner, t)
		return nil
	})
}

func (r *Runner) mergeOne(def Definition, opts RunOptions, group mergeGroup, joiner string, t *tally) {
	if !opts.Force {
		exists, err := r.store.Exists(def.DestDir, group.output)
		if err != nil {
			r.failed(def, t, group.parent, group.output, err)
			return
		}
		if exists {
			t.skip(group.parent)
			return
		}
	}
	parts := make([]string, 0, len(group.members))
	for _, member := range group.members {
		in, err := r.read(def, member)
		if err != nil {
			r.failed(def, t, group.parent, member.Name, err)
			return
		}
		parts = append(parts, in.Content)
	}
	merged := artifact.New(def.OutputPrefix, group.parent, strings.Join(parts, joiner))
	if err := r.write(def, t, group.output, merged); err != nil {
		r.failed(def, t, group.parent, group.output, err)
		return
	}
	t.done(group.parent)
}

// groupByParent relies on entries arriving in id order, which keeps every
// group contiguous and its members sorted by last component.
func groupByParent(entries []artifact.Entry) []mergeGroup {
	var groups []mergeGroup
	for _, entry := range entries {
		parent := entry.ID.Parent()
		if n := len(groups); n > 0 && groups[n-1].parent.Equal(parent) {
			groups[n-1].members = append(groups[n-1].members, entry)
			continue
		}
		groups = append(groups, mergeGroup{parent: parent, members: []artifact.Entry{entry}})
	}
	return groups
}

func checkContiguous(stageName string, group mergeGroup) error {
	present := make([]int, len(group.members))
	for i, member := range group.members {
		present[i] = member.ID.Last()
	}
	complete := true
	seen := make(map[int]bool, len(present))
	highest := 0
	for i, idx := range present {
		if idx != i+1 {
			complete = false
		}
		seen[idx] = true
		highest = max(highest, idx)
	}
	if complete {
		return nil
	}
	var missing []int
	for idx := 1; idx <= highest; idx++ {
		if !seen[idx] {
			missing = append(missing, idx)
		}
	}
	return &IncompleteGroupError{Stage: stageName, Parent: group.parent.Clone(), Present: present, Missing: missing}
}
