package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hera-erp/hera/internal/config"
	"github.com/hera-erp/hera/internal/engine"
	"github.com/hera-erp/hera/internal/metrics"
	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/smartcode"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "hera.db")
	return cfg
}

func TestOpen_WiresComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Governance.DefaultLevel = 2
	m := metrics.New("hera")

	a, err := Open(cfg,
		WithMetrics(m),
		WithIDGenerator(engine.NewSequenceGenerator("t")),
		WithClock(engine.ClockFunc(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })),
	)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Governor.Cache())
	assert.Same(t, a.Catalog, a.Governor.Catalog())

	res := a.Engine.Execute(context.Background(), engine.Request{
		Operation:      engine.OpCreate,
		Store:          engine.StoreOrganization,
		OrganizationID: model.SystemOrganizationID,
		Payload:        map[string]any{"organization_name": "Acme", "organization_code": "ACME"},
	})
	require.True(t, res.OK(), "%+v", res.Error)
	assert.Equal(t, "t-1", res.Data.(*model.Organization).ID)

	assert.Equal(t, 1, testutil.CollectAndCount(m.Registry(), "hera_engine_operations_total"))
}

func TestOpen_DefaultLevelApplies(t *testing.T) {
	cfg := testConfig(t)
	cfg.Governance.DefaultLevel = int(smartcode.LevelSemantic)

	a, err := Open(cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	org := a.Engine.Execute(ctx, engine.Request{
		Operation:      engine.OpCreate,
		Store:          engine.StoreOrganization,
		OrganizationID: model.SystemOrganizationID,
		Payload:        map[string]any{"id": "org-1", "organization_name": "Acme", "organization_code": "ACME"},
	})
	require.True(t, org.OK())

	// syntactically fine, unknown module
	res := a.Engine.Execute(ctx, engine.Request{
		Operation:      engine.OpCreate,
		Store:          engine.StoreEntity,
		OrganizationID: "org-1",
		SmartCode:      "HERA.NOPE.CUST.ENT.PROF.v1",
		Payload:        map[string]any{"entity_type": "customer", "entity_name": "Ada"},
	})
	require.False(t, res.OK())
	assert.Equal(t, model.KindValidation, res.Error.Kind)

	// A valid code completes under a deadline; the governor's usage lookups
	// share the write's transaction.
	deadline, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res = a.Engine.Execute(deadline, engine.Request{
		Operation:      engine.OpCreate,
		Store:          engine.StoreEntity,
		OrganizationID: "org-1",
		SmartCode:      "HERA.CRM.CUST.ENT.PROF.v1",
		Payload:        map[string]any{"entity_type": "customer", "entity_name": "Ada"},
	})
	require.True(t, res.OK(), "%+v", res.Error)
}

func TestOpen_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Governance.CacheSize = 0

	a, err := Open(cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Governor.Cache())
}

func TestOpen_BadCatalog(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "catalog.cue")
	require.NoError(t, os.WriteFile(path, []byte("modules: 42\n"), 0644))
	cfg.Governance.CatalogPath = path

	_, err := Open(cfg)
	assert.ErrorContains(t, err, "load catalog")
}
