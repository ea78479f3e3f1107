// Package branch reads the source branch out of an installer filename.
package branch

import (
	"fmt"
	"regexp"
	"strings"

	"sikuli-bot/src/failure"
)

// Info is what an installer filename encodes. Only Branch is guaranteed;
// the other fields are empty when the pattern has no group for them.
type Info struct {
	Product   string
	Version   string
	Arch      string
	Branch    string
	Timestamp string
}

// Parser extracts Info from installer filenames.
type Parser struct {
	re     *regexp.Regexp
	prefix string
	suffix string
}

// NewPatternParser compiles a pattern with named groups. The pattern must
// have a "branch" group.
func NewPatternParser(pattern string) (*Parser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: branch pattern: %v", failure.ErrConfig, err)
	}
	if re.SubexpIndex("branch") < 0 {
		return nil, fmt.Errorf("%w: branch pattern has no (?P<branch>...) group", failure.ErrConfig)
	}
	return &Parser{re: re}, nil
}

// NewLiteralParser strips a fixed prefix and suffix, the way installers
// were named when the bot was first deployed.
func NewLiteralParser(prefix, suffix string) *Parser {
	return &Parser{prefix: prefix, suffix: suffix}
}

// New picks the pattern parser when pattern is set and the literal parser
// otherwise.
func New(pattern, prefix, suffix string) (*Parser, error) {
	if pattern != "" {
		return NewPatternParser(pattern)
	}
	return NewLiteralParser(prefix, suffix), nil
}

// Parse returns the fields encoded in filename, or an error wrapping
// failure.ErrMalformedInstallerName.
func (p *Parser) Parse(filename string) (Info, error) {
	if p.re == nil {
		return p.parseLiteral(filename)
	}

	m := p.re.FindStringSubmatch(filename)
	if m == nil {
		return Info{}, fmt.Errorf("%w: %q does not match %s", failure.ErrMalformedInstallerName, filename, p.re)
	}
	group := func(name string) string {
		if i := p.re.SubexpIndex(name); i >= 0 {
			return m[i]
		}
		return ""
	}
	info := Info{
		Product:   group("product"),
		Version:   group("version"),
		Arch:      group("arch"),
		Branch:    group("branch"),
		Timestamp: group("timestamp"),
	}
	if info.Branch == "" {
		return Info{}, fmt.Errorf("%w: %q has an empty branch", failure.ErrMalformedInstallerName, filename)
	}
	return info, nil
}

// parseLiteral matches prefix and suffix case-insensitively but slices the
// original string, so the branch keeps its case.
func (p *Parser) parseLiteral(filename string) (Info, error) {
	lower := strings.ToLower(filename)
	if len(filename) <= len(p.prefix)+len(p.suffix) ||
		!strings.HasPrefix(lower, strings.ToLower(p.prefix)) ||
		!strings.HasSuffix(lower, strings.ToLower(p.suffix)) {
		return Info{}, fmt.Errorf("%w: %q is not %q<branch>%q",
			failure.ErrMalformedInstallerName, filename, p.prefix, p.suffix)
	}
	return Info{Branch: filename[len(p.prefix) : len(filename)-len(p.suffix)]}, nil
}

// Branch is Parse reduced to the branch name.
func (p *Parser) Branch(filename string) (string, error) {
	info, err := p.Parse(filename)
	if err != nil {
		return "", err
	}
	return info.Branch, nil
}
