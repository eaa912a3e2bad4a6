// Package skills loads workspace skill definitions, grounded on pyclaw skills.py: one directory per skill
// under the recipes (or legacy skills) directory, each containing a
// SKILL.md with YAML frontmatter (name, description, keywords) and a body
// appended to the system prompt when the user's message matches one of the
// skill's keywords.
package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is one loaded skill definition.
type Skill struct {
	Name        string
	Description string
	Keywords    []string
	Body        string
	SourcePath  string
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

// PickDir returns workspace/recipes if it exists, else workspace/skills — for
// compatibility with workspaces created under the legacy directory name.
func PickDir(workspace string) string {
	recipes := filepath.Join(workspace, "recipes")
	if info, err := os.Stat(recipes); err == nil && info.IsDir() {
		return recipes
	}
	return filepath.Join(workspace, "skills")
}

// Load reads every SKILL.md under skillDir's immediate subdirectories.
// A missing or non-directory skillDir yields an empty, non-error result.
func Load(skillDir string) []Skill {
	entries, err := os.ReadDir(skillDir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var skills []Skill
	for _, name := range names {
		path := filepath.Join(skillDir, name, "SKILL.md")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if skill, ok := parseSkillFile(path); ok {
			skills = append(skills, skill)
		}
	}
	return skills
}

func parseSkillFile(path string) (Skill, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, false
	}
	meta, body, ok := parseFrontmatter(string(raw))
	if !ok || strings.TrimSpace(meta.Name) == "" {
		return Skill{}, false
	}

	keywordSet := make(map[string]struct{}, len(meta.Keywords))
	for _, k := range meta.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywordSet[k] = struct{}{}
		}
	}
	keywords := make([]string, 0, len(keywordSet))
	for k := range keywordSet {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	return Skill{
		Name:        strings.TrimSpace(meta.Name),
		Description: strings.TrimSpace(meta.Description),
		Keywords:    keywords,
		Body:        strings.TrimSpace(body),
		SourcePath:  path,
	}, true
}

// parseFrontmatter splits a "---\n...yaml...\n---\nbody" document.
func parseFrontmatter(text string) (frontmatter, string, bool) {
	if !strings.HasPrefix(text, "---") {
		return frontmatter{}, text, false
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return frontmatter{}, text, false
	}
	endIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			endIdx = i
			break
		}
	}
	if endIdx == -1 {
		return frontmatter{}, text, false
	}

	front := strings.Join(lines[1:endIdx], "\n")
	body := strings.Join(lines[endIdx+1:], "\n")

	var meta frontmatter
	if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
		return frontmatter{}, body, false
	}
	return meta, body, true
}

// Match returns every skill with at least one keyword appearing in
// message (case-insensitive substring match).
func Match(all []Skill, message string) []Skill {
	msg := strings.ToLower(message)
	var matched []Skill
	for _, s := range all {
		if len(s.Keywords) == 0 {
			continue
		}
		for _, k := range s.Keywords {
			if strings.Contains(msg, k) {
				matched = append(matched, s)
				break
			}
		}
	}
	return matched
}
