package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/storyforge/internal/config"
	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/stage"
)

const pipelineINI = `
[DEFAULT]
backend = echo

[SPLIT PATTERN]
scene = (?m)^SCENE \d+$

[scenes]
source = rundown
destination = scenes
pattern = rundown_*.txt
output_pattern = scenes_*_*.txt
split = scene

[description]
source = scenes
destination = description
pattern = scenes_*_*.txt
output_pattern = description_*_*.txt

[draft]
source = description
destination = draft
pattern = description_*_*.txt
output_pattern = draft_*.txt
joiner = |
`

func loadPipeline(t *testing.T, body string) (*config.Config, Pipeline) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "storyforge.ini")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(body)), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, pipeline, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return cfg, pipeline
}

func TestFromConfigInfersModes(t *testing.T) {
	_, pipeline := loadPipeline(t, pipelineINI)
	if got := strings.Join(pipeline.Names(), ","); got != "scenes,description,draft" {
		t.Fatalf("stage order = %s", got)
	}
	want := map[string]stage.Mode{
		"scenes":      stage.ModeSplit,
		"description": stage.ModeExpand,
		"draft":       stage.ModeMerge,
	}
	for name, mode := range want {
		ref, ok := pipeline.Lookup(name)
		if !ok {
			t.Fatalf("missing stage %s", name)
		}
		if ref.Definition.Mode != mode {
			t.Fatalf("%s mode = %s, want %s", name, ref.Definition.Mode, mode)
		}
	}
	draft, _ := pipeline.Lookup("DRAFT")
	if draft.Definition.InputDepth != 2 || draft.Definition.OutputDepth() != 1 || draft.Definition.Joiner != "|" {
		t.Fatalf("draft definition = %+v", draft.Definition)
	}
	if draft.Definition.PromptPath != "" {
		t.Fatalf("missing conventional prompt should be dropped, got %s", draft.Definition.PromptPath)
	}
}

func TestResolveMode(t *testing.T) {
	cases := []struct {
		name    string
		stage   config.StageConfig
		want    stage.Mode
		wantErr string
	}{
		{name: "default expand", stage: config.StageConfig{}, want: stage.ModeExpand},
		{name: "splitter implies split", stage: config.StageConfig{Split: "sentences"}, want: stage.ModeSplit},
		{name: "explicit", stage: config.StageConfig{Mode: "merge"}, want: stage.ModeMerge},
		{name: "arity", stage: config.StageConfig{Pattern: "a_*_*.txt", OutputPattern: "b_*.txt"}, want: stage.ModeMerge},
		{name: "contradiction", stage: config.StageConfig{Pattern: "a_*.txt", OutputPattern: "b_*.txt", Mode: "split"}, wantErr: "contradicts"},
		{name: "two levels", stage: config.StageConfig{Pattern: "a_*.txt", OutputPattern: "b_*_*_*.txt"}, wantErr: "depth"},
	}
	for _, tc := range cases {
		got, err := ResolveMode(tc.stage)
		if tc.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: mode = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestPipelineSlice(t *testing.T) {
	_, pipeline := loadPipeline(t, pipelineINI)
	refs, err := pipeline.Slice("description", "")
	if err != nil {
		t.Fatalf("Slice returned error: %v", err)
	}
	if len(refs) != 2 || refs[0].Name() != "description" || refs[1].Name() != "draft" {
		t.Fatalf("unexpected slice: %v", refs)
	}
	if _, err := pipeline.Slice("draft", "scenes"); err == nil {
		t.Fatalf("expected reversed bounds to fail")
	}
	if _, err := pipeline.Slice("missing", ""); err == nil || !strings.Contains(err.Error(), "unknown stage") {
		t.Fatalf("expected unknown stage error, got %v", err)
	}
}

func TestPipelineValidateRejectsDuplicates(t *testing.T) {
	ref := StageRef{Definition: stage.Definition{
		Name: "a", SourceDir: "in", DestDir: "out", InputPrefix: "x", InputDepth: 1, OutputPrefix: "y", Mode: stage.ModeExpand,
	}}
	second := ref.Clone()
	second.Definition.Name = "A"
	err := Pipeline{Stages: []StageRef{ref, second}}.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate stage") {
		t.Fatalf("expected duplicate stage error, got %v", err)
	}
	if err := (Pipeline{}).Validate(); err == nil {
		t.Fatalf("expected empty pipeline to fail")
	}
}

func TestCollaborators(t *testing.T) {
	cfg, pipeline := loadPipeline(t, pipelineINI)
	ctx := context.Background()
	reg := generate.DefaultRegistry()

	scenes, _ := pipeline.Lookup("scenes")
	collab, err := pipeline.Collaborators(ctx, reg, scenes)
	if err != nil {
		t.Fatalf("Collaborators returned error: %v", err)
	}
	chunks, err := collab.Splitter.Split(ctx, "SCENE 1\nopen\nSCENE 2\nclose", generate.Request{})
	if err != nil || len(chunks) != 2 || chunks[1] != "close" {
		t.Fatalf("split = %v (%v)", chunks, err)
	}

	description, _ := pipeline.Lookup("description")
	prompt := filepath.Join(cfg.BaseDir, "custom_prompt.txt")
	if err := os.WriteFile(prompt, []byte("Describe: "), 0o644); err != nil {
		t.Fatal(err)
	}
	description.Definition.PromptPath = prompt
	collab, err = pipeline.Collaborators(ctx, reg, description)
	if err != nil {
		t.Fatalf("Collaborators returned error: %v", err)
	}
	if collab.Prompt != "Describe: " || collab.Generator == nil {
		t.Fatalf("unexpected collaborators: %+v", collab)
	}

	description.Definition.PromptPath = filepath.Join(cfg.BaseDir, "missing.txt")
	if _, err := pipeline.Collaborators(ctx, reg, description); err == nil {
		t.Fatalf("expected missing explicit prompt to fail")
	}

	draft, _ := pipeline.Lookup("draft")
	collab, err = pipeline.Collaborators(ctx, reg, draft)
	if err != nil || collab.Generator != nil || collab.Splitter != nil {
		t.Fatalf("merge should need no collaborators: %+v (%v)", collab, err)
	}
}

func TestSplitBackendWrapsSplitter(t *testing.T) {
	_, pipeline := loadPipeline(t, `
[sentences]
source = paragraph
destination = sentences
find = paragraph
replace = sentence
split = sentences
split_backend = echo
`)
	ref, _ := pipeline.Lookup("sentences")
	if ref.Definition.Mode != stage.ModeSplit || ref.SplitBackend == nil || ref.SplitBackend.Backend != "echo" {
		t.Fatalf("unexpected split stage: %+v", ref)
	}
	collab, err := pipeline.Collaborators(context.Background(), nil, ref)
	if err != nil {
		t.Fatalf("Collaborators returned error: %v", err)
	}
	if _, ok := collab.Splitter.(generate.GeneratedSplitter); !ok {
		t.Fatalf("expected generated splitter, got %T", collab.Splitter)
	}
	chunks, err := collab.Splitter.Split(context.Background(), "One. Two!", generate.Request{})
	if err != nil || len(chunks) != 2 {
		t.Fatalf("split = %v (%v)", chunks, err)
	}
}
