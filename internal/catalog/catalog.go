// Package catalog holds the governance catalog: the registered smart-code
// modules, system providers, anti-patterns and per-type rules for entities,
// relationships and transactions. Catalogs are written in CUE and checked
// against an embedded schema before use.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

//go:embed default.cue
var defaultSource []byte

// Error codes reported by LoadError.
const (
	ErrCodeRead       = "C001"
	ErrCodeSchema     = "C002"
	ErrCodeCompile    = "C003"
	ErrCodeValidation = "C004"
	ErrCodeDecode     = "C005"
)

// LoadError is a catalog load failure, positioned when CUE reports one.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Module is a registered smart-code module (the second segment).
type Module struct {
	Description string   `json:"description,omitempty"`
	SubModules  []string `json:"submodules"`
	// Strict modules reject sub-modules not listed in SubModules.
	Strict bool `json:"strict"`
	// Compact modules accept two to eight segments instead of three to eight.
	Compact bool `json:"compact"`
}

// HasSubModule reports whether sub is listed for the module.
func (m Module) HasSubModule(sub string) bool {
	for _, s := range m.SubModules {
		if s == sub {
			return true
		}
	}
	return false
}

// Provider maps a smart-code token to the entity code of the system
// registration that must exist before codes naming it are accepted.
type Provider struct {
	EntityCode  string `json:"entity_code"`
	Description string `json:"description,omitempty"`
}

// EntityTypeRule configures one entity type.
type EntityTypeRule struct {
	SmartCodeLevel int      `json:"smart_code_level"`
	RequiredFields []string `json:"required_fields"`
	// CodePrefix, when set, must prefix every entity_code of the type.
	CodePrefix string `json:"code_prefix"`
}

// RelationshipTypeRule configures one relationship type.
type RelationshipTypeRule struct {
	// Exclusive types allow a single active edge per (from, type).
	Exclusive bool `json:"exclusive"`
	// ReflexiveSafe types skip the cycle check.
	ReflexiveSafe bool `json:"reflexive_safe"`
}

// TransactionTypeRule configures one transaction type.
type TransactionTypeRule struct {
	// Balanced types require debit lines to equal credit lines.
	Balanced bool `json:"balanced"`
	// ReconcileTotal types require a manual header total to match the lines.
	ReconcileTotal bool `json:"reconcile_total"`
	SmartCodeLevel int  `json:"smart_code_level"`
}

// Catalog is the decoded governance catalog.
type Catalog struct {
	Modules           map[string]Module               `json:"modules"`
	Providers         map[string]Provider             `json:"providers"`
	AntiPatterns      [][]string                      `json:"anti_patterns"`
	EntityTypes       map[string]EntityTypeRule       `json:"entity_types"`
	RelationshipTypes map[string]RelationshipTypeRule `json:"relationship_types"`
	TransactionTypes  map[string]TransactionTypeRule  `json:"transaction_types"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Compile("default.cue", defaultSource)
}

// MustDefault is Default for tests and static initialization.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: fmt.Sprintf("reading catalog: %v", err)}
	}
	return Compile(path, data)
}

// Compile checks src against the catalog schema and decodes it.
func Compile(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("compiling catalog schema: %v", err)}
	}
	def := schema.LookupPath(cue.ParsePath("#Catalog"))

	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, positioned(ErrCodeCompile, err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, positioned(ErrCodeValidation, err)
	}

	var c Catalog
	if err := unified.Decode(&c); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("decoding catalog: %v", err)}
	}
	c.normalize()
	return &c, nil
}

func positioned(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Message = errs[0].Error()
		le.Pos = errs[0].Position()
	}
	return le
}

func (c *Catalog) normalize() {
	if c.Modules == nil {
		c.Modules = map[string]Module{}
	}
	if c.Providers == nil {
		c.Providers = map[string]Provider{}
	}
	if c.EntityTypes == nil {
		c.EntityTypes = map[string]EntityTypeRule{}
	}
	if c.RelationshipTypes == nil {
		c.RelationshipTypes = map[string]RelationshipTypeRule{}
	}
	if c.TransactionTypes == nil {
		c.TransactionTypes = map[string]TransactionTypeRule{}
	}
}

// Module looks up a registered module.
func (c *Catalog) Module(name string) (Module, bool) {
	m, ok := c.Modules[name]
	return m, ok
}

// ModuleNames returns the registered module names in sorted order.
func (c *Catalog) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for name := range c.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider looks up the provider for a smart-code token.
func (c *Catalog) Provider(token string) (Provider, bool) {
	p, ok := c.Providers[token]
	return p, ok
}

// EntityType returns the rule for an entity type. Unlisted types get the
// zero rule at level 1.
func (c *Catalog) EntityType(entityType string) EntityTypeRule {
	if r, ok := c.EntityTypes[entityType]; ok {
		return r
	}
	return EntityTypeRule{SmartCodeLevel: 1}
}

// RelationshipType returns the rule for a relationship type.
func (c *Catalog) RelationshipType(relType string) RelationshipTypeRule {
	return c.RelationshipTypes[relType]
}

// TransactionType returns the rule for a transaction type.
func (c *Catalog) TransactionType(txnType string) TransactionTypeRule {
	if r, ok := c.TransactionTypes[txnType]; ok {
		return r
	}
	return TransactionTypeRule{SmartCodeLevel: 1}
}

// AntiPatternsIn returns every configured pair whose two tokens both appear
// in segments.
func (c *Catalog) AntiPatternsIn(segments []string) [][2]string {
	present := make(map[string]bool, len(segments))
	for _, s := range segments {
		present[s] = true
	}
	var hits [][2]string
	for _, pair := range c.AntiPatterns {
		if len(pair) == 2 && present[pair[0]] && present[pair[1]] {
			hits = append(hits, [2]string{pair[0], pair[1]})
		}
	}
	return hits
}
