package stage

import (
	"context"

	"github.com/kingrea/storyforge/internal/artifact"
	"github.com/kingrea/storyforge/internal/generate"
)

// split writes the chunks of every input as children 1..N one level deeper.
// Children are written last to first, so an existing first child means the
// whole split landed; that is the skip rule on rerun.
func (r *Runner) split(ctx context.Context, def Definition, collab Collaborators, opts RunOptions, t *tally) error {
	entries, err := r.match(def)
	if err != nil {
		return err
	}
	t.report.Matched = len(entries)
	codec := def.Codec()
	firstChildren := make([]string, len(entries))
	for i, entry := range entries {
		name, err := codec.Encode(def.OutputPrefix, entry.ID.Child(1))
		if err != nil {
			return err
		}
		firstChildren[i] = name
	}
	r.started(def, t, len(entries))
	return forEach(ctx, workerCount(def, opts), len(entries), func(ctx context.Context, i int) error {
		return r.splitOne(ctx, def, collab, opts, entries[i], firstChildren[i], t)
	})
}

func (r *Runner) splitOne(ctx context.Context, def Definition, collab Collaborators, opts RunOptions, entry artifact.Entry, firstChild string, t *tally) error {
	if !opts.Force {
		exists, err := r.store.Exists(def.DestDir, firstChild)
		if err != nil {
			r.failed(def, t, entry.ID, firstChild, err)
			return nil
		}
		if exists {
			t.skip(entry.ID)
			return nil
		}
	}
	in, err := r.read(def, entry)
	if err != nil {
		r.failed(def, t, entry.ID, entry.Name, err)
		return nil
	}
	chunks, err := collab.Splitter.Split(ctx, in.Content, generate.Request{
		Stage:  def.Name,
		ID:     in.ID.String(),
		Prompt: collab.Prompt,
	})
	if err != nil {
		r.failed(def, t, entry.ID, entry.Name, err)
		return nil
	}
	if len(chunks) == 0 {
		if in.Blank() {
			t.done(entry.ID)
			return nil
		}
		r.failed(def, t, entry.ID, entry.Name, &EmptySplitError{Stage: def.Name, ID: entry.ID.Clone()})
		return nil
	}
	codec := def.Codec()
	parent := artifact.New(def.OutputPrefix, in.ID, "")
	children := make([]artifact.Artifact, len(chunks))
	names := make([]string, len(chunks))
	for i, chunk := range chunks {
		children[i] = parent.WithID(in.ID.Child(i + 1)).WithContent(chunk)
		name, err := codec.Encode(def.OutputPrefix, children[i].ID)
		if err != nil {
			return err
		}
		names[i] = name
	}
	for i := len(children) - 1; i >= 0; i-- {
		if err := r.write(def, t, names[i], children[i]); err != nil {
			r.failed(def, t, entry.ID, names[i], err)
			return nil
		}
	}
	t.done(entry.ID)
	return nil
}
