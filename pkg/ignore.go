package checkfiledups

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// regexRulePrefix marks a skip rule as a regular expression over the slash path
const regexRulePrefix = "re:"

// SkipRules decides which paths the enumerator must not visit.
//
// A rule without a slash matches a path component exactly (".git" skips every
// directory or file named .git). A rule containing a slash matches anywhere in
// the forward-slash path relative to the root ("build/tmp"). A rule starting
// with "re:" is a regular expression matched against that same relative path.
type SkipRules struct {
	names     map[string]struct{}
	fragments []string
	patterns  []*regexp.Regexp
}

// NewSkipRules compiles rules; empty and whitespace-only rules are ignored
func NewSkipRules(rules []string) (*SkipRules, error) {
	sr := &SkipRules{names: make(map[string]struct{})}
	for _, rule := range rules {
		if err := sr.Add(rule); err != nil {
			return nil, err
		}
	}
	return sr, nil
}

// Add compiles and appends one rule
func (sr *SkipRules) Add(rule string) error {
	rule = strings.TrimSpace(rule)
	switch {
	case rule == "":
		return nil
	case strings.HasPrefix(rule, regexRulePrefix):
		pattern, err := regexp.Compile(strings.TrimPrefix(rule, regexRulePrefix))
		if err != nil {
			return fmt.Errorf("invalid skip pattern %q: %w", rule, err)
		}
		sr.patterns = append(sr.patterns, pattern)
	case strings.Contains(rule, "/"):
		sr.fragments = append(sr.fragments, strings.Trim(rule, "/"))
	default:
		sr.names[rule] = struct{}{}
	}
	return nil
}

// LoadFile adds one rule per line from path; blank lines and # comments are skipped
func (sr *SkipRules) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open skip file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := sr.Add(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading skip file: %w", err)
	}
	return nil
}

// Empty reports whether no rules are configured
func (sr *SkipRules) Empty() bool {
	return sr == nil || (len(sr.names) == 0 && len(sr.fragments) == 0 && len(sr.patterns) == 0)
}

// ShouldSkip reports whether relativePath (relative to the scan root) matches a rule
func (sr *SkipRules) ShouldSkip(relativePath string) bool {
	if sr.Empty() {
		return false
	}

	slashPath := filepath.ToSlash(relativePath)

	if len(sr.names) > 0 {
		for _, component := range strings.Split(slashPath, "/") {
			if _, ok := sr.names[component]; ok {
				return true
			}
		}
	}

	// Fragments match on component boundaries: "a/b" matches "x/a/b/y" but not "xa/b"
	bounded := "/" + slashPath + "/"
	for _, fragment := range sr.fragments {
		if strings.Contains(bounded, "/"+fragment+"/") {
			return true
		}
	}

	for _, pattern := range sr.patterns {
		if pattern.MatchString(slashPath) {
			return true
		}
	}
	return false
}
