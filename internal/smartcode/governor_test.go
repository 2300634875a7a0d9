package smartcode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hera-erp/hera/internal/catalog"
	"github.com/hera-erp/hera/internal/model"
)

type fakeUsage struct {
	count  int
	latest int
	err    error
}

func (f fakeUsage) CountSmartCode(context.Context, string, string) (int, error) {
	return f.count, f.err
}

func (f fakeUsage) LatestSmartCodeVersion(context.Context, string, string) (int, error) {
	return f.latest, f.err
}

type fakeProviders struct {
	registered map[string]bool
	systemOrg  string
}

func (f *fakeProviders) ProviderRegistered(_ context.Context, systemOrg, code string) (bool, error) {
	f.systemOrg = systemOrg
	return f.registered[code], nil
}

type fakeRecorder struct {
	hits, misses int
	validations  map[string]int
}

func (f *fakeRecorder) RecordValidation(level string, valid bool) {
	if f.validations == nil {
		f.validations = map[string]int{}
	}
	f.validations[level]++
}

func (f *fakeRecorder) RecordCacheLookup(hit bool) {
	if hit {
		f.hits++
	} else {
		f.misses++
	}
}

const orgA = "org-a"

func newGovernor(opts ...Option) *Governor {
	return NewGovernor(catalog.MustDefault(), opts...)
}

func TestValidateSyntaxFailure(t *testing.T) {
	g := newGovernor()
	r, err := g.Validate(context.Background(), "HERA.SALON.CRM.C.ENTITY.v1", orgA, LevelSyntax)
	require.NoError(t, err)

	assert.False(t, r.Valid)
	assert.Empty(t, r.PassedLevels)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, CodeSyntax, r.Errors[0].Code)
	assert.Equal(t, "segment[1]", r.Errors[0].Token)
	assert.NotEmpty(t, r.Suggestions)

	verr := r.Err()
	require.Error(t, verr)
	assert.True(t, model.IsKind(verr, model.KindValidation))
	e, _ := model.AsError(verr)
	assert.Equal(t, "smart_code", e.Field)
	assert.Equal(t, Grammar, e.Details["expected"])
	assert.Equal(t, "segment[1]", e.Details["token"])
}

func TestValidateSuggestsUpperCase(t *testing.T) {
	g := newGovernor()
	r, err := g.Validate(context.Background(), "hera.salon.crm.customer.entity.V1", orgA, LevelSyntax)
	require.NoError(t, err)
	assert.False(t, r.Valid)
	assert.Contains(t, r.Suggestions, "did you mean HERA.SALON.CRM.CUSTOMER.ENTITY.v1")
}

func TestValidateSemantic(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown module fails", func(t *testing.T) {
		r, err := newGovernor().Validate(ctx, "HERA.NOPE.CRM.CUSTOMER.ENTITY.v1", orgA, LevelIntegration)
		require.NoError(t, err)
		assert.False(t, r.Valid)
		assert.Equal(t, []Level{LevelSyntax}, r.PassedLevels)
		require.Len(t, r.Errors, 1)
		assert.Equal(t, CodeUnknownModule, r.Errors[0].Code)
		assert.Equal(t, LevelSemantic, r.Errors[0].Level)
	})

	t.Run("strict module rejects unlisted sub-module", func(t *testing.T) {
		r, err := newGovernor().Validate(ctx, "HERA.FIN.POS.SALE.TXN.v1", orgA, LevelSemantic)
		require.NoError(t, err)
		assert.False(t, r.Valid)
		assert.Equal(t, CodeUnknownSubModule, r.Errors[0].Code)
	})

	t.Run("open module warns on unlisted sub-module", func(t *testing.T) {
		r, err := newGovernor().Validate(ctx, "HERA.SALON.XYZ.CUSTOMER.ENTITY.v1", orgA, LevelSemantic)
		require.NoError(t, err)
		assert.True(t, r.Valid)
		require.Len(t, r.Warnings, 1)
		assert.Equal(t, CodeUnlistedSubModule, r.Warnings[0].Code)
	})

	t.Run("duplicate and newer version warn", func(t *testing.T) {
		g := newGovernor(WithUsageLookup(fakeUsage{count: 2, latest: 3}))
		r, err := g.Validate(ctx, "HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, LevelSemantic)
		require.NoError(t, err)
		assert.True(t, r.Valid)
		require.Len(t, r.Warnings, 2)
		assert.Equal(t, CodeDuplicate, r.Warnings[0].Code)
		assert.Equal(t, CodeNewerVersion, r.Warnings[1].Code)
		assert.Contains(t, r.Suggestions, "consider HERA.SALON.CRM.CUSTOMER.ENTITY.v3")
	})

	t.Run("usage lookup failure is returned", func(t *testing.T) {
		g := newGovernor(WithUsageLookup(fakeUsage{err: errors.New("db gone")}))
		_, err := g.Validate(ctx, "HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, LevelSemantic)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db gone")
	})
}

func TestValidatePerformance(t *testing.T) {
	ctx := context.Background()

	t.Run("anti-pattern warns", func(t *testing.T) {
		r, err := newGovernor().Validate(ctx, "HERA.INV.STOCK.BATCH.REALTIME.SYNC.v1", orgA, LevelPerformance)
		require.NoError(t, err)
		assert.True(t, r.Valid)
		assert.Equal(t, []Level{LevelSyntax, LevelSemantic, LevelPerformance}, r.PassedLevels)
		require.Len(t, r.Warnings, 1)
		assert.Equal(t, CodeAntiPattern, r.Warnings[0].Code)
		assert.Equal(t, 74, r.Complexity)
	})

	t.Run("complexity ceiling fails", func(t *testing.T) {
		code := "HERA.INV.STOCK.BATCH.REALTIME.SYNC.ASYNC.TEMP.MASTER.v1"
		r, err := newGovernor().Validate(ctx, code, orgA, LevelPerformance)
		require.NoError(t, err)
		assert.False(t, r.Valid)
		assert.Equal(t, 168, r.Complexity)
		assert.Equal(t, CodeComplexity, r.Errors[0].Code)
		assert.GreaterOrEqual(t, len(r.Warnings), 4)
	})

	t.Run("configured ceiling", func(t *testing.T) {
		g := newGovernor(WithLimits(Limits{ComplexityCeiling: 30, MaxCodeLength: 128}))
		r, err := g.Validate(ctx, "HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, LevelPerformance)
		require.NoError(t, err)
		assert.False(t, r.Valid)
		assert.Equal(t, 38, r.Complexity)
	})

	t.Run("max length fails", func(t *testing.T) {
		seg := strings.Repeat("A", 30)
		code := "HERA.INV." + strings.Join([]string{seg, seg, seg, seg, seg}, ".") + ".v1"
		r, err := newGovernor().Validate(ctx, code, orgA, LevelPerformance)
		require.NoError(t, err)
		assert.False(t, r.Valid)
		assert.Equal(t, CodeMaxLength, r.Errors[0].Code)
	})

	t.Run("not evaluated below level 3", func(t *testing.T) {
		code := "HERA.INV.STOCK.BATCH.REALTIME.SYNC.ASYNC.TEMP.MASTER.v1"
		r, err := newGovernor().Validate(ctx, code, orgA, LevelSemantic)
		require.NoError(t, err)
		assert.True(t, r.Valid)
		assert.Empty(t, r.Warnings)
	})
}

func TestValidateIntegration(t *testing.T) {
	ctx := context.Background()
	code := "HERA.FIN.GL.CALC.TAX.RULE.v1"

	t.Run("missing provider is a dependency error", func(t *testing.T) {
		g := newGovernor(WithProviderLookup(&fakeProviders{}))
		r, err := g.Validate(ctx, code, orgA, LevelIntegration)
		require.NoError(t, err)
		assert.False(t, r.Valid)
		assert.Equal(t, CodeMissingProvider, r.Errors[0].Code)
		assert.Equal(t, "CALC", r.Errors[0].Token)
		assert.True(t, model.IsKind(r.Err(), model.KindDependency))
	})

	t.Run("no lookup configured fails closed", func(t *testing.T) {
		r, err := newGovernor().Validate(ctx, code, orgA, LevelIntegration)
		require.NoError(t, err)
		assert.False(t, r.Valid)
	})

	t.Run("registered provider passes", func(t *testing.T) {
		fp := &fakeProviders{registered: map[string]bool{"CALC_ENGINE": true}}
		g := newGovernor(WithProviderLookup(fp))
		r, err := g.Validate(ctx, code, orgA, LevelIntegration)
		require.NoError(t, err)
		assert.True(t, r.Valid)
		assert.Len(t, r.PassedLevels, 4)
		assert.Equal(t, model.SystemOrganizationID, fp.systemOrg)
		assert.NoError(t, r.Err())
	})

	t.Run("codes without provider tokens pass", func(t *testing.T) {
		r, err := newGovernor().Validate(ctx, "HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, LevelIntegration)
		require.NoError(t, err)
		assert.True(t, r.Valid)
	})
}

func TestValidateRejectsBadLevel(t *testing.T) {
	for _, l := range []Level{0, 5} {
		_, err := newGovernor().Validate(context.Background(), "HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, l)
		require.Error(t, err)
		assert.True(t, model.IsKind(err, model.KindValidation))
	}
}

func TestValidateUsesCache(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	cache := NewCache(16, time.Minute)
	g := newGovernor(WithCache(cache), WithRecorder(rec))
	code := "HERA.SALON.CRM.CUSTOMER.ENTITY.v1"

	first, err := g.Validate(ctx, code, orgA, LevelPerformance)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, time.Minute, first.CacheTTL)

	second, err := g.Validate(ctx, code, orgA, LevelPerformance)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.PassedLevels, second.PassedLevels)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 1, rec.validations["performance"])

	// other tenant and other level miss
	_, err = g.Validate(ctx, code, "org-b", LevelPerformance)
	require.NoError(t, err)
	_, err = g.Validate(ctx, code, orgA, LevelSyntax)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.misses)

	cache.Invalidate(code, orgA)
	third, err := g.Validate(ctx, code, orgA, LevelPerformance)
	require.NoError(t, err)
	assert.False(t, third.Cached)
}

func TestValidateInUsesScopeLookups(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(16, time.Minute)
	fp := &fakeProviders{registered: map[string]bool{"CALC_ENGINE": true}}
	g := newGovernor(WithCache(cache), WithUsageLookup(fakeUsage{}), WithProviderLookup(&fakeProviders{}))

	code := "HERA.FIN.GL.CALC.TAX.RULE.v1"
	r, err := g.ValidateIn(ctx, Scope{Usage: fakeUsage{count: 2}, Providers: fp}, code, orgA, LevelIntegration)
	require.NoError(t, err)
	assert.True(t, r.Valid)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, CodeDuplicate, r.Warnings[0].Code)
	assert.Equal(t, 0, cache.Len(), "reports from a scope are never cached")

	r, err = g.ValidateIn(ctx, Scope{Usage: fakeUsage{err: errors.New("tx closed")}}, code, orgA, LevelSemantic)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "tx closed")
}

func TestValidateInFreshSkipsCache(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(16, time.Minute)
	rec := &fakeRecorder{}
	g := newGovernor(WithCache(cache), WithRecorder(rec), WithUsageLookup(fakeUsage{}))
	code := "HERA.SALON.CRM.CUSTOMER.ENTITY.v1"

	_, err := g.Validate(ctx, code, orgA, LevelSemantic)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	r, err := g.ValidateIn(ctx, Scope{Usage: fakeUsage{count: 1}}, code, orgA, LevelSemantic)
	require.NoError(t, err)
	assert.True(t, r.Cached)
	assert.Empty(t, r.Warnings)

	r, err = g.ValidateIn(ctx, Scope{Usage: fakeUsage{count: 1}, Fresh: true}, code, orgA, LevelSemantic)
	require.NoError(t, err)
	assert.False(t, r.Cached)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, CodeDuplicate, r.Warnings[0].Code)
	assert.Equal(t, 1, rec.hits)
}

func TestValidateDoesNotCacheFailures(t *testing.T) {
	cache := NewCache(16, time.Minute)
	g := newGovernor(WithCache(cache))
	for i := 0; i < 2; i++ {
		r, err := g.Validate(context.Background(), "HERA.NOPE.CRM.CUSTOMER.ENTITY.v1", orgA, LevelSemantic)
		require.NoError(t, err)
		assert.False(t, r.Cached)
	}
	assert.Equal(t, 0, cache.Len())
}

func TestCacheTTLFromComplexity(t *testing.T) {
	g := newGovernor(WithCache(NewCache(16, time.Minute)))
	tests := []struct {
		code string
		ttl  time.Duration
	}{
		{"HERA.SALON.CRM.CUSTOMER.ENTITY.v1", time.Minute},
		{"HERA.INV.BATCH.REALTIME.CC.DD.EE.FF.v1", 30 * time.Second},
		{"HERA.INV.STOCK.BATCH.REALTIME.SYNC.ASYNC.v1", 15 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r, err := g.Validate(context.Background(), tt.code, orgA, LevelPerformance)
			require.NoError(t, err)
			require.True(t, r.Valid)
			assert.Equal(t, tt.ttl, r.CacheTTL)
		})
	}
}

func TestCachedReportIsACopy(t *testing.T) {
	g := newGovernor(WithCache(NewCache(16, time.Minute)))
	ctx := context.Background()
	code := "HERA.SALON.XYZ.CUSTOMER.ENTITY.v1"

	r, err := g.Validate(ctx, code, orgA, LevelSemantic)
	require.NoError(t, err)
	r.Warnings[0].Message = "mutated"

	again, err := g.Validate(ctx, code, orgA, LevelSemantic)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Warnings[0].Message)
}
