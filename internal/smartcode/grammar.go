package smartcode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prefix is the fixed first token of every smart code.
const Prefix = "HERA"

// CanonicalPattern is the full-code regular expression for the canonical family.
const CanonicalPattern = `^HERA\.[A-Z0-9]{2,15}(\.[A-Z0-9_]{2,30}){3,8}\.v[1-9][0-9]*$`

// Human-readable grammars quoted in every syntax error.
const (
	Grammar        = "HERA.<MODULE [A-Z0-9]{2,15}>.<SEGMENT [A-Z0-9_]{2,30}>{3,8}.v<N>"
	CompactGrammar = "HERA.<MODULE [A-Z0-9]{2,15}>.<SEGMENT [A-Z0-9_]{2,30}>{2,8}.v<N>"
)

// Code families.
const (
	FamilyCanonical = "canonical"
	FamilyCompact   = "compact"
)

var (
	canonicalRe = regexp.MustCompile(CanonicalPattern)
	moduleRe    = regexp.MustCompile(`^[A-Z0-9]{2,15}$`)
	segmentRe   = regexp.MustCompile(`^[A-Z0-9_]{2,30}$`)
	versionRe   = regexp.MustCompile(`^v[1-9][0-9]*$`)
)

// segmentBounds returns the allowed segment count for a family.
func segmentBounds(family string) (int, int) {
	if family == FamilyCompact {
		return 2, 8
	}
	return 3, 8
}

func grammarFor(family string) string {
	if family == FamilyCompact {
		return CompactGrammar
	}
	return Grammar
}

// Parsed is a smart code split into its tokens.
type Parsed struct {
	Code     string   `json:"code"`
	Module   string   `json:"module"`
	Segments []string `json:"segments"`
	Version  int      `json:"version"`
	Family   string   `json:"family"`
}

// SubModule is the first segment after the module.
func (p *Parsed) SubModule() string {
	return p.Segments[0]
}

// Function is the second to last segment.
func (p *Parsed) Function() string {
	return p.Segments[len(p.Segments)-2]
}

// EntityType is the last segment before the version.
func (p *Parsed) EntityType() string {
	return p.Segments[len(p.Segments)-1]
}

// Body is the code without its version suffix. Versions of the same code
// share a body.
func (p *Parsed) Body() string {
	return Prefix + "." + p.Module + "." + strings.Join(p.Segments, ".")
}

// WithVersion returns the code for another version of the same body.
func (p *Parsed) WithVersion(v int) string {
	return p.Body() + ".v" + strconv.Itoa(v)
}

// ParseError names the first token that violates the grammar.
type ParseError struct {
	Code    string
	Token   string // prefix, module, segment[i], version or segment_count
	Value   string
	Message string
	Family  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("smart code %q: %s; expected %s", e.Code, e.Message, grammarFor(e.Family))
}

// Expected returns the grammar the code was checked against.
func (e *ParseError) Expected() string {
	return grammarFor(e.Family)
}

// Parse checks code against the canonical family.
func Parse(code string) (*Parsed, error) {
	return ParseWith(code, nil)
}

// ParseWith checks code, selecting the compact family when compact reports
// true for the code's module. Tokens are checked left to right and the
// first violation is returned.
func ParseWith(code string, compact func(module string) bool) (*Parsed, error) {
	family := FamilyCanonical
	fail := func(token, value, format string, args ...any) error {
		return &ParseError{Code: code, Token: token, Value: value, Message: fmt.Sprintf(format, args...), Family: family}
	}

	if code == "" {
		return nil, fail("prefix", "", "smart code is empty")
	}
	if strings.TrimSpace(code) != code {
		return nil, fail("prefix", code, "smart code has surrounding whitespace")
	}

	tokens := strings.Split(code, ".")
	if tokens[0] != Prefix {
		return nil, fail("prefix", tokens[0], "prefix %q must be %q", tokens[0], Prefix)
	}
	if len(tokens) < 2 {
		return nil, fail("module", "", "missing module token")
	}
	module := tokens[1]
	if !moduleRe.MatchString(module) {
		return nil, fail("module", module, "module %q must be 2-15 upper-case letters or digits", module)
	}
	if compact != nil && compact(module) {
		family = FamilyCompact
	}

	if len(tokens) < 3 {
		return nil, fail("version", "", "missing version suffix")
	}
	segments := tokens[2 : len(tokens)-1]
	for i, seg := range segments {
		if !segmentRe.MatchString(seg) {
			return nil, fail(fmt.Sprintf("segment[%d]", i), seg,
				"segment[%d] %q must be 2-30 upper-case letters, digits or underscores", i, seg)
		}
	}

	last := tokens[len(tokens)-1]
	if !versionRe.MatchString(last) {
		return nil, fail("version", last, "version %q must be v followed by a positive integer", last)
	}
	version, err := strconv.Atoi(last[1:])
	if err != nil {
		return nil, fail("version", last, "version %q is out of range", last)
	}

	lo, hi := segmentBounds(family)
	if n := len(segments); n < lo || n > hi {
		return nil, fail("segment_count", strconv.Itoa(n),
			"%d segments between module and version, want %d-%d", n, lo, hi)
	}

	if family == FamilyCanonical && !canonicalRe.MatchString(code) {
		return nil, fail("prefix", code, "code does not match %s", CanonicalPattern)
	}

	return &Parsed{
		Code:     code,
		Module:   module,
		Segments: segments,
		Version:  version,
		Family:   family,
	}, nil
}
