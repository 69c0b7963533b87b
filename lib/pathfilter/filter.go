// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package pathfilter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnoreRegex is the ignore expression applied when the regex
// form is used without an explicit ignore pattern. It covers the same
// classes as DefaultIgnoreRules: VCS metadata directories and
// backup/editor artifacts.
const DefaultIgnoreRegex = `(^|/)\.(git|hg|svn|vessel)($|/)|~$|\.bak$|\.orig$|^#.*#$`

// DefaultIgnoreRules are the built-in glob exclusions prepended to
// user rules unless RuleSet.NoDefaultRules is set.
var DefaultIgnoreRules = []string{
	"!.git/",
	"!.hg/",
	"!.svn/",
	"!.vessel/",
	"!*.bak",
	"!*.orig",
	"!*~",
	"!#*#",
	"!.#*",
}

// RuleSet is the validated filter configuration of a build step. At
// most one of the two forms (Rules, or IgnoreRegex/IncludeRegex) may
// be populated.
type RuleSet struct {
	// Rules are glob rules: "!pattern" exclusions or "/pattern"
	// anchored inclusions.
	Rules []string

	// NoDefaultRules suppresses DefaultIgnoreRules and selects the
	// glob form even when Rules is empty; set alone it means no
	// filtering at all.
	NoDefaultRules bool

	// IgnoreRegex excludes matching paths. Empty means
	// DefaultIgnoreRegex.
	IgnoreRegex string

	// IncludeRegex, when non-empty, restricts the result to matching
	// paths (that also pass IgnoreRegex).
	IncludeRegex string
}

// ConfigError reports a rule set that cannot be compiled:
// contradictory forms, a relative inclusion, or a malformed pattern.
// It is always detected before any filesystem access.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid filter rules: " + e.Reason
}

// globRule is one compiled glob rule.
type globRule struct {
	pattern  string // doublestar pattern, no leading "/" or "!"
	exclude  bool
	dirOnly  bool // trailing "/" in the source rule
	anchored bool // matched against the full relative path, not the basename
}

// Filter matches paths relative to a walk root. Compile once, walk
// many times: a Filter is immutable and safe for concurrent use.
type Filter struct {
	globs     []globRule
	hasIncl   bool // at least one glob inclusion rule
	ignoreRe  *regexp.Regexp
	includeRe *regexp.Regexp
}

// Compile builds a Filter from a rule set.
//
// The glob form is selected when Rules is non-empty or NoDefaultRules
// is set; the regex form otherwise. Specifying glob rules together
// with either regex is a *ConfigError.
func Compile(rules RuleSet) (*Filter, error) {
	globForm := len(rules.Rules) > 0 || rules.NoDefaultRules
	regexForm := rules.IgnoreRegex != "" || rules.IncludeRegex != ""

	if globForm && regexForm {
		return nil, &ConfigError{
			Reason: "specify either glob rules or regular expressions, not both",
		}
	}

	if globForm {
		return compileGlobs(rules)
	}
	return compileRegexes(rules)
}

func compileGlobs(rules RuleSet) (*Filter, error) {
	var all []string
	if !rules.NoDefaultRules {
		all = append(all, DefaultIgnoreRules...)
	}
	all = append(all, rules.Rules...)

	filter := &Filter{}
	for _, rule := range all {
		compiled, err := compileGlobRule(rule)
		if err != nil {
			return nil, err
		}
		filter.globs = append(filter.globs, compiled)
		if !compiled.exclude {
			filter.hasIncl = true
		}
	}
	return filter, nil
}

func compileGlobRule(rule string) (globRule, error) {
	var compiled globRule

	switch {
	case strings.HasPrefix(rule, "!"):
		compiled.exclude = true
		compiled.pattern = rule[1:]
	case strings.HasPrefix(rule, "/"):
		compiled.pattern = rule[1:]
	default:
		return globRule{}, &ConfigError{
			Reason: fmt.Sprintf("rule %q: relative paths are allowed only for exclusion rules", rule),
		}
	}

	if strings.HasSuffix(compiled.pattern, "/") {
		compiled.dirOnly = true
		compiled.pattern = strings.TrimSuffix(compiled.pattern, "/")
	}
	// Exclusions without a slash match any basename in the tree
	// (gitignore convention); everything else is anchored at the
	// walk root. Inclusions are always anchored: the leading "/" is
	// mandatory in their source form.
	if strings.HasPrefix(compiled.pattern, "/") {
		compiled.anchored = true
		compiled.pattern = strings.TrimPrefix(compiled.pattern, "/")
	} else {
		compiled.anchored = !compiled.exclude || strings.Contains(compiled.pattern, "/")
	}

	if compiled.pattern == "" {
		return globRule{}, &ConfigError{
			Reason: fmt.Sprintf("rule %q has an empty pattern", rule),
		}
	}
	if !doublestar.ValidatePattern(compiled.pattern) {
		return globRule{}, &ConfigError{
			Reason: fmt.Sprintf("rule %q: malformed glob pattern", rule),
		}
	}
	return compiled, nil
}

func compileRegexes(rules RuleSet) (*Filter, error) {
	ignore := rules.IgnoreRegex
	if ignore == "" {
		ignore = DefaultIgnoreRegex
	}

	ignoreRe, err := regexp.Compile(ignore)
	if err != nil {
		return nil, &ConfigError{
			Reason: fmt.Sprintf("ignore regex: %v", err),
		}
	}

	filter := &Filter{ignoreRe: ignoreRe}
	if rules.IncludeRegex != "" {
		includeRe, err := regexp.Compile(rules.IncludeRegex)
		if err != nil {
			return nil, &ConfigError{
				Reason: fmt.Sprintf("include regex: %v", err),
			}
		}
		filter.includeRe = includeRe
	}
	return filter, nil
}

// matchGlob reports whether the rule matches the given relative path.
func (r globRule) matchGlob(rel string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	subject := rel
	if !r.anchored {
		if slash := strings.LastIndexByte(rel, '/'); slash >= 0 {
			subject = rel[slash+1:]
		}
	}
	matched, err := doublestar.Match(r.pattern, subject)
	// Patterns are validated at compile time; Match only errors on
	// malformed patterns.
	return err == nil && matched
}

// decide classifies one walked entry. yield means the entry is part of
// the filtered result; descend means the walk enters the directory.
// ancestorIncluded is true when a parent directory already matched an
// inclusion rule, which includes the whole subtree minus exclusions.
func (f *Filter) decide(rel string, isDir, ancestorIncluded bool) (yield, descend bool) {
	if f.ignoreRe != nil {
		// Regex form.
		if f.ignoreRe.MatchString(rel) {
			return false, false
		}
		if f.includeRe != nil && !f.includeRe.MatchString(rel) {
			// Non-matching directories are still traversed: a
			// deeper entry may match the include expression.
			return false, isDir
		}
		return true, isDir
	}

	// Glob form. The last matching exclusion wins over nothing — an
	// excluded directory's subtree is never entered.
	for _, rule := range f.globs {
		if rule.exclude && rule.matchGlob(rel, isDir) {
			return false, false
		}
	}
	if !f.hasIncl || ancestorIncluded {
		return true, isDir
	}
	for _, rule := range f.globs {
		if !rule.exclude && rule.matchGlob(rel, isDir) {
			return true, isDir
		}
	}
	// Not (yet) included; keep descending so anchored inclusions
	// deeper in the tree can still match.
	return false, isDir
}
