// Package smartcode parses and governs smart codes, the versioned semantic
// identifiers stamped on every record.
//
// Validation runs in four cumulative levels:
//
//	L1 syntax       grammar of the code itself
//	L2 semantic     module tables and tenant usage
//	L3 performance  length, segment count, anti-patterns, complexity score
//	L4 integration  privileged providers registered in the system tenant
//
// Requesting level N runs 1..N and stops at the first level that fails.
package smartcode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/catalog"
	"github.com/hera-erp/hera/internal/model"
)

// Level is a validation depth.
type Level int

const (
	LevelSyntax Level = iota + 1
	LevelSemantic
	LevelPerformance
	LevelIntegration
)

// Valid reports whether l is one of the four levels.
func (l Level) Valid() bool {
	return l >= LevelSyntax && l <= LevelIntegration
}

func (l Level) String() string {
	switch l {
	case LevelSyntax:
		return "syntax"
	case LevelSemantic:
		return "semantic"
	case LevelPerformance:
		return "performance"
	case LevelIntegration:
		return "integration"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Issue codes.
const (
	CodeSyntax            = "SC101"
	CodeUnknownModule     = "SC201"
	CodeUnknownSubModule  = "SC202"
	CodeUnlistedSubModule = "SC203"
	CodeDuplicate         = "SC204"
	CodeNewerVersion      = "SC205"
	CodeLongCode          = "SC301"
	CodeManySegments      = "SC302"
	CodeAntiPattern       = "SC303"
	CodeComplexity        = "SC304"
	CodeMaxLength         = "SC305"
	CodeMissingProvider   = "SC401"
)

// Performance thresholds that only warn.
const (
	warnLength   = 64
	warnSegments = 6
)

// Issue is one error or warning raised by a level.
type Issue struct {
	Level   Level  `json:"level"`
	Code    string `json:"code"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// Report is the outcome of validating one code.
type Report struct {
	Code           string        `json:"code"`
	OrganizationID string        `json:"organization_id,omitempty"`
	Level          Level         `json:"level"`
	Valid          bool          `json:"valid"`
	PassedLevels   []Level       `json:"passed_levels"`
	Errors         []Issue       `json:"errors"`
	Warnings       []Issue       `json:"warnings"`
	Suggestions    []string      `json:"suggestions"`
	Complexity     int           `json:"complexity"`
	CacheTTL       time.Duration `json:"cache_ttl"`
	Cached         bool          `json:"cached"`
	Parsed         *Parsed       `json:"parsed,omitempty"`
}

func (r *Report) clone() *Report {
	c := *r
	c.PassedLevels = append([]Level(nil), r.PassedLevels...)
	c.Errors = append([]Issue(nil), r.Errors...)
	c.Warnings = append([]Issue(nil), r.Warnings...)
	c.Suggestions = append([]string(nil), r.Suggestions...)
	return &c
}

// Err converts a failing report into a typed error: dependency for a missing
// provider, validation otherwise. A passing report yields nil.
func (r *Report) Err() error {
	if r.Valid || len(r.Errors) == 0 {
		return nil
	}
	first := r.Errors[0]
	kind := model.KindValidation
	if first.Code == CodeMissingProvider {
		kind = model.KindDependency
	}
	e := &model.Error{
		Kind:    kind,
		Field:   "smart_code",
		Message: fmt.Sprintf("%s check failed: %s", first.Level, first.Message),
	}
	e.WithDetail("errors", r.Errors).WithDetail("suggestions", r.Suggestions)
	if first.Token != "" {
		e.WithDetail("token", first.Token)
	}
	if first.Level == LevelSyntax {
		e.WithDetail("expected", Grammar)
	}
	return e
}

// UsageLookup reports how a tenant already uses smart codes.
type UsageLookup interface {
	// CountSmartCode returns how many live records in org carry code.
	CountSmartCode(ctx context.Context, org, code string) (int, error)
	// LatestSmartCodeVersion returns the highest version in use in org for
	// codes sharing body, or 0.
	LatestSmartCodeVersion(ctx context.Context, org, body string) (int, error)
}

// ProviderLookup resolves provider registrations in the system tenant.
type ProviderLookup interface {
	ProviderRegistered(ctx context.Context, systemOrg, entityCode string) (bool, error)
}

// Recorder observes governor activity.
type Recorder interface {
	RecordValidation(level string, valid bool)
	RecordCacheLookup(hit bool)
}

// Limits are the configurable hard ceilings of the performance level.
type Limits struct {
	ComplexityCeiling int
	MaxCodeLength     int
}

// DefaultLimits returns the stock ceilings.
func DefaultLimits() Limits {
	return Limits{ComplexityCeiling: 150, MaxCodeLength: 128}
}

// Governor validates smart codes against a catalog.
type Governor struct {
	catalog   *catalog.Catalog
	cache     *Cache
	usage     UsageLookup
	providers ProviderLookup
	recorder  Recorder
	limits    Limits
	systemOrg string
	logger    *zap.Logger
}

// Option configures a Governor.
type Option func(*Governor)

// WithCache enables read-through caching of passing reports.
func WithCache(c *Cache) Option {
	return func(g *Governor) { g.cache = c }
}

// WithUsageLookup enables the duplicate and newer-version checks.
func WithUsageLookup(u UsageLookup) Option {
	return func(g *Governor) { g.usage = u }
}

// WithProviderLookup enables provider resolution at the integration level.
func WithProviderLookup(p ProviderLookup) Option {
	return func(g *Governor) { g.providers = p }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Governor) { g.recorder = r }
}

// WithLimits overrides the performance ceilings.
func WithLimits(l Limits) Option {
	return func(g *Governor) { g.limits = l }
}

// WithSystemOrganization sets the tenant that owns provider registrations.
func WithSystemOrganization(id string) Option {
	return func(g *Governor) { g.systemOrg = id }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Governor) { g.logger = l }
}

// NewGovernor creates a Governor over cat.
func NewGovernor(cat *catalog.Catalog, opts ...Option) *Governor {
	g := &Governor{
		catalog:   cat,
		limits:    DefaultLimits(),
		systemOrg: model.SystemOrganizationID,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Catalog returns the catalog the governor validates against.
func (g *Governor) Catalog() *catalog.Catalog {
	return g.catalog
}

// Cache returns the governor's cache, or nil.
func (g *Governor) Cache() *Cache {
	return g.cache
}

// Validate checks code for org up to level using the governor's own
// lookups. Passing reports are cached. The returned error reports lookup
// failures only; governance failures are in the report.
func (g *Governor) Validate(ctx context.Context, code, org string, level Level) (*Report, error) {
	r, err := g.ValidateIn(ctx, Scope{Usage: g.usage, Providers: g.providers}, code, org, level)
	if err != nil {
		return nil, err
	}
	if g.cache != nil && !r.Cached {
		g.cache.put(r)
	}
	return r, nil
}

// Scope carries the lookups of one unit of work, typically a store bound
// to an open transaction.
type Scope struct {
	Usage     UsageLookup
	Providers ProviderLookup
	// Fresh skips the cache read. Set it once the unit has written code.
	Fresh bool
}

// ValidateIn checks code like Validate but runs every lookup through sc and
// never writes to the cache. Reports computed inside a transaction may rest
// on rows that are later rolled back.
func (g *Governor) ValidateIn(ctx context.Context, sc Scope, code, org string, level Level) (*Report, error) {
	if !level.Valid() {
		return nil, model.Validation("validation_level", "validation level %d out of range 1-4", int(level))
	}

	if g.cache != nil && !sc.Fresh {
		if r, ok := g.cache.get(code, org, level); ok {
			g.recordLookup(true)
			r.Cached = true
			return r, nil
		}
		g.recordLookup(false)
	}

	r := &Report{
		Code:           code,
		OrganizationID: org,
		Level:          level,
		PassedLevels:   []Level{},
		Errors:         []Issue{},
		Warnings:       []Issue{},
		Suggestions:    []string{},
	}

	checks := []func(context.Context, Scope, *Report) error{
		g.checkSyntax,
		g.checkSemantic,
		g.checkPerformance,
		g.checkIntegration,
	}
	for l := LevelSyntax; l <= level; l++ {
		if err := checks[l-1](ctx, sc, r); err != nil {
			return nil, err
		}
		if len(r.Errors) > 0 {
			break
		}
		r.PassedLevels = append(r.PassedLevels, l)
	}
	r.Valid = len(r.Errors) == 0
	if r.Parsed != nil {
		r.Complexity = g.complexity(r.Parsed)
		r.CacheTTL = g.ttlFor(r.Complexity)
	}

	if g.recorder != nil {
		g.recorder.RecordValidation(level.String(), r.Valid)
	}
	if !r.Valid {
		g.logger.Debug("smart code rejected",
			zap.String("smart_code", code),
			zap.String("organization_id", org),
			zap.Int("level", int(level)),
			zap.String("reason", r.Errors[0].Message))
	} else if len(r.Warnings) > 0 {
		g.logger.Warn("smart code accepted with warnings",
			zap.String("smart_code", code),
			zap.String("organization_id", org),
			zap.Int("warnings", len(r.Warnings)))
	}

	return r, nil
}

func (g *Governor) recordLookup(hit bool) {
	if g.recorder != nil {
		g.recorder.RecordCacheLookup(hit)
	}
}

func (r *Report) fail(l Level, code, token, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Level: l, Code: code, Token: token, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warn(l Level, code, token, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Level: l, Code: code, Token: token, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) suggest(format string, args ...any) {
	r.Suggestions = append(r.Suggestions, fmt.Sprintf(format, args...))
}

func (g *Governor) isCompact(module string) bool {
	m, ok := g.catalog.Module(module)
	return ok && m.Compact
}

func (g *Governor) checkSyntax(_ context.Context, _ Scope, r *Report) error {
	p, err := ParseWith(r.Code, g.isCompact)
	if err != nil {
		pe := err.(*ParseError)
		r.fail(LevelSyntax, CodeSyntax, pe.Token, "%s", pe.Error())
		r.suggest("use the shape %s, for example HERA.SALON.CRM.CUSTOMER.ENTITY.v1", pe.Expected())
		if up := upperSuggestion(r.Code, g.isCompact); up != "" {
			r.suggest("did you mean %s", up)
		}
		return nil
	}
	r.Parsed = p
	return nil
}

// upperSuggestion returns the code with upper-cased tokens and a lower-case
// version when that form parses.
func upperSuggestion(code string, compact func(string) bool) string {
	i := strings.LastIndex(code, ".")
	if i < 0 {
		return ""
	}
	fixed := strings.ToUpper(code[:i]) + strings.ToLower(code[i:])
	if fixed == code {
		return ""
	}
	if _, err := ParseWith(fixed, compact); err != nil {
		return ""
	}
	return fixed
}

func (g *Governor) checkSemantic(ctx context.Context, sc Scope, r *Report) error {
	p := r.Parsed
	mod, ok := g.catalog.Module(p.Module)
	if !ok {
		r.fail(LevelSemantic, CodeUnknownModule, "module", "unknown module %q", p.Module)
		r.suggest("use a registered module: %v", g.catalog.ModuleNames())
		return nil
	}
	if len(mod.SubModules) > 0 && !mod.HasSubModule(p.SubModule()) {
		if mod.Strict {
			r.fail(LevelSemantic, CodeUnknownSubModule, "segment[0]",
				"sub-module %q is not allowed in module %s", p.SubModule(), p.Module)
			r.suggest("use one of %v as the sub-module of %s", mod.SubModules, p.Module)
			return nil
		}
		r.warn(LevelSemantic, CodeUnlistedSubModule, "segment[0]",
			"sub-module %q is not listed for module %s", p.SubModule(), p.Module)
	}

	if sc.Usage == nil || r.OrganizationID == "" {
		return nil
	}
	n, err := sc.Usage.CountSmartCode(ctx, r.OrganizationID, p.Code)
	if err != nil {
		return fmt.Errorf("count smart code usage: %w", err)
	}
	if n > 0 {
		r.warn(LevelSemantic, CodeDuplicate, "", "code already used by %d record(s) in this organization", n)
	}
	latest, err := sc.Usage.LatestSmartCodeVersion(ctx, r.OrganizationID, p.Body())
	if err != nil {
		return fmt.Errorf("latest smart code version: %w", err)
	}
	if latest > p.Version {
		r.warn(LevelSemantic, CodeNewerVersion, "version",
			"version v%d is in use in this organization", latest)
		r.suggest("consider %s", p.WithVersion(latest))
	}
	return nil
}

func (g *Governor) checkPerformance(_ context.Context, _ Scope, r *Report) error {
	p := r.Parsed
	if len(p.Code) > warnLength {
		r.warn(LevelPerformance, CodeLongCode, "", "code is %d characters, over %d", len(p.Code), warnLength)
	}
	if len(p.Segments) > warnSegments {
		r.warn(LevelPerformance, CodeManySegments, "segment_count",
			"%d segments, over %d", len(p.Segments), warnSegments)
		r.suggest("fold detail into fewer segments and carry it in metadata")
	}
	for _, pair := range g.catalog.AntiPatternsIn(p.Segments) {
		r.warn(LevelPerformance, CodeAntiPattern, "", "tokens %s and %s should not be combined", pair[0], pair[1])
	}

	if g.limits.MaxCodeLength > 0 && len(p.Code) > g.limits.MaxCodeLength {
		r.fail(LevelPerformance, CodeMaxLength, "", "code is %d characters, limit is %d", len(p.Code), g.limits.MaxCodeLength)
		r.suggest("shorten segments to stay within %d characters", g.limits.MaxCodeLength)
		return nil
	}
	if score := g.complexity(p); g.limits.ComplexityCeiling > 0 && score > g.limits.ComplexityCeiling {
		r.fail(LevelPerformance, CodeComplexity, "", "complexity %d exceeds ceiling %d", score, g.limits.ComplexityCeiling)
		r.suggest("remove anti-pattern tokens or segments to lower complexity")
	}
	return nil
}

func (g *Governor) checkIntegration(ctx context.Context, sc Scope, r *Report) error {
	for _, seg := range r.Parsed.Segments {
		prov, ok := g.catalog.Provider(seg)
		if !ok {
			continue
		}
		registered := false
		if sc.Providers != nil {
			var err error
			registered, err = sc.Providers.ProviderRegistered(ctx, g.systemOrg, prov.EntityCode)
			if err != nil {
				return fmt.Errorf("resolve provider %s: %w", prov.EntityCode, err)
			}
		}
		if !registered {
			r.fail(LevelIntegration, CodeMissingProvider, seg,
				"token %s requires provider %s registered in the system organization", seg, prov.EntityCode)
			r.suggest("register a system_provider entity with entity_code %s in organization %s", prov.EntityCode, g.systemOrg)
		}
	}
	return nil
}

// complexity scores a parsed code.
func (g *Governor) complexity(p *Parsed) int {
	return 10*len(p.Segments) + len(p.Code)/4 + 25*len(g.catalog.AntiPatternsIn(p.Segments))
}

// ttlFor maps a complexity score to a cache lifetime.
func (g *Governor) ttlFor(score int) time.Duration {
	if g.cache == nil {
		return 0
	}
	full := g.cache.TTL()
	switch {
	case score < 60:
		return full
	case score < 100:
		return full / 2
	default:
		return full / 4
	}
}
