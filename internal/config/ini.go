package config

import (
	"fmt"
	"strings"

	"github.com/go-ini/ini"
)

// SplitPatternSection holds named regular expressions for split stages.
const SplitPatternSection = "SPLIT PATTERN"

// parseINI reads the section-based format: [DEFAULT] values are inherited,
// [SPLIT PATTERN] names regular expressions and every other section is one
// stage, in file order. Stage keys in [DEFAULT] (source, pattern, find, ...)
// apply to every stage section before the section's own keys.
func parseINI(data []byte) (File, error) {
	src, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		AllowBooleanKeys:    true,
	}, data)
	if err != nil {
		return File{}, err
	}
	parsed := File{SplitPatterns: map[string]string{}}
	var shared []*ini.Key
	for _, section := range src.Sections() {
		name := strings.TrimSpace(section.Name())
		switch {
		case strings.EqualFold(name, ini.DefaultSection):
			for _, key := range section.Keys() {
				if isStageKey(key.Name()) {
					shared = append(shared, key)
					continue
				}
				if err := parsed.Defaults.Set(key.Name(), key.String()); err != nil {
					return File{}, fmt.Errorf("[%s] %w", name, err)
				}
			}
		case strings.EqualFold(name, SplitPatternSection):
			for _, key := range section.Keys() {
				parsed.SplitPatterns[strings.TrimSpace(key.Name())] = key.Value()
			}
		default:
			stage := StageConfig{Name: name}
			for _, key := range shared {
				if err := stage.Set(key.Name(), key.String()); err != nil {
					return File{}, fmt.Errorf("[%s] %w", ini.DefaultSection, err)
				}
			}
			for _, key := range section.Keys() {
				if err := stage.Set(key.Name(), key.String()); err != nil {
					return File{}, fmt.Errorf("[%s] %w", name, err)
				}
			}
			parsed.Stages = append(parsed.Stages, stage)
		}
	}
	return parsed, nil
}
