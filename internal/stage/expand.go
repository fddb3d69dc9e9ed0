package stage

import (
	"context"

	"github.com/kingrea/storyforge/internal/artifact"
	"github.com/kingrea/storyforge/internal/generate"
)

type expandJob struct {
	input  artifact.Entry
	output string
}

// expand writes one output per input under the same id. Outputs that already
// exist are skipped, which makes reruns resume where a previous run stopped.
func (r *Runner) expand(ctx context.Context, def Definition, collab Collaborators, opts RunOptions, t *tally) error {
	entries, err := r.match(def)
	if err != nil {
		return err
	}
	t.report.Matched = len(entries)
	codec := def.Codec()
	jobs := make([]expandJob, 0, len(entries))
	for _, entry := range entries {
		name, err := codec.Encode(def.OutputPrefix, entry.ID)
		if err != nil {
			return err
		}
		jobs = append(jobs, expandJob{input: entry, output: name})
	}
	r.started(def, t, len(jobs))
	return forEach(ctx, workerCount(def, opts), len(jobs), func(ctx context.Context, i int) error {
		r.expandOne(ctx, def, collab, opts, jobs[i], t)
		return nil
	})
}

func (r *Runner) expandOne(ctx context.Context, def Definition, collab Collaborators, opts RunOptions, job expandJob, t *tally) {
	id := job.input.ID
	if !opts.Force {
		exists, err := r.store.Exists(def.DestDir, job.output)
		if err != nil {
			r.failed(def, t, id, job.output, err)
			return
		}
		if exists {
			t.skip(id)
			return
		}
	}
	in, err := r.read(def, job.input)
	if err != nil {
		r.failed(def, t, id, job.input.Name, err)
		return
	}
	generated, err := collab.Generator.Generate(ctx, in.Content, generate.Request{
		Stage:  def.Name,
		ID:     in.ID.String(),
		Prompt: collab.Prompt,
	})
	if err != nil {
		r.failed(def, t, id, job.input.Name, err)
		return
	}
	out := artifact.New(def.OutputPrefix, in.ID, generated)
	if err := r.write(def, t, job.output, out); err != nil {
		r.failed(def, t, id, job.output, err)
		return
	}
	t.done(id)
}
