package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
)

func TestEntities_TenantScopedReads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestOrg(t, s, "org-a", "A")
	createTestOrg(t, s, "org-b", "B")
	createTestEntity(t, s, "org-a", "e-1", "customer", "C1", "Alice")

	if _, err := s.GetEntity(ctx, "org-a", "e-1"); err != nil {
		t.Fatalf("GetEntity() in own tenant failed: %v", err)
	}
	_, err := s.GetEntity(ctx, "org-b", "e-1")
	requireKind(t, err, model.KindNotFound)

	got, err := s.QueryEntities(ctx, query.Select{OrganizationID: "org-b"})
	if err != nil {
		t.Fatalf("QueryEntities() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("org-b sees %d entities of org-a", len(got))
	}
}

func TestEntities_CodeUniquePerTypeAndReleasedByTombstone(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestOrg(t, s, "org-a", "A")
	createTestOrg(t, s, "org-b", "B")
	createTestEntity(t, s, "org-a", "e-1", "customer", "C1", "Alice")

	dup := &model.Entity{ID: "e-2", OrganizationID: "org-a", EntityType: "customer", EntityCode: "C1",
		EntityName: "Bob", SmartCode: "HERA.CRM.CUST.ENT.PROF.v1", Status: model.StatusActive,
		Audit: model.Audit{CreatedAt: testNow, UpdatedAt: testNow}}
	err := s.InsertEntity(ctx, dup)
	requireKind(t, err, model.KindConflict)
	if e, _ := model.AsError(err); e.Field != "entity_code" {
		t.Errorf("conflict field = %q, want entity_code", e.Field)
	}

	// Same code under another type or tenant is fine.
	createTestEntity(t, s, "org-a", "e-3", "vendor", "C1", "Carol")
	createTestEntity(t, s, "org-b", "e-4", "customer", "C1", "Dave")

	if err := s.TombstoneEntity(ctx, "org-a", "e-1", "tester", testNow); err != nil {
		t.Fatalf("TombstoneEntity() failed: %v", err)
	}
	_, err = s.GetEntity(ctx, "org-a", "e-1")
	requireKind(t, err, model.KindNotFound)
	if err := s.InsertEntity(ctx, dup); err != nil {
		t.Errorf("code should be free after tombstone: %v", err)
	}
	requireKind(t, s.TombstoneEntity(ctx, "org-a", "e-1", "tester", testNow), model.KindNotFound)
}

func TestEntities_UnknownOrganizationIsNotFound(t *testing.T) {
	s := createTestStore(t)
	e := &model.Entity{ID: "e-1", OrganizationID: "ghost", EntityType: "customer", EntityName: "X",
		SmartCode: "HERA.CRM.CUST.ENT.PROF.v1", Status: model.StatusActive,
		Audit: model.Audit{CreatedAt: testNow, UpdatedAt: testNow}}
	requireKind(t, s.InsertEntity(context.Background(), e), model.KindNotFound)
}

func TestEntities_SearchAndSort(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestOrg(t, s, "org-a", "A")
	createTestEntity(t, s, "org-a", "e-1", "customer", "C1", "ZOE Adams")
	createTestEntity(t, s, "org-a", "e-2", "customer", "C2", "Bob Brown")
	createTestEntity(t, s, "org-a", "e-3", "vendor", "V1", "zoe Supplies")

	got, err := s.QueryEntities(ctx, query.Select{
		OrganizationID: "org-a",
		Filter:         query.Search{Term: "zoe"},
		Sort:           []query.Sort{{Field: "entity_name", Desc: true}},
	})
	if err != nil {
		t.Fatalf("QueryEntities() failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e-3" || got[1].ID != "e-1" {
		t.Errorf("search result = %v", ids(got))
	}

	n, err := s.Count(ctx, query.Select{Table: query.TableEntities, OrganizationID: "org-a",
		Filter: query.Eq("entity_type", "customer")})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestEntities_References(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestOrg(t, s, "org-a", "A")
	createTestEntity(t, s, "org-a", "e-1", "customer", "C1", "Alice")
	createTestEntity(t, s, "org-a", "e-2", "customer", "C2", "Bob")

	refs, err := s.EntityReferences(ctx, "org-a", "e-1")
	if err != nil {
		t.Fatalf("EntityReferences() failed: %v", err)
	}
	if refs.Any() {
		t.Errorf("fresh entity has references: %+v", refs)
	}

	createTestEdge(t, s, "org-a", "r-1", "e-2", "e-1", "related_to", false)
	tx := newTestTransaction("org-a", "t-1", "SALE-1", "0")
	tx.SourceEntityID = "e-1"
	if err := s.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("InsertTransaction() failed: %v", err)
	}

	refs, err = s.EntityReferences(ctx, "org-a", "e-1")
	if err != nil {
		t.Fatalf("EntityReferences() failed: %v", err)
	}
	if refs.ActiveRelationships != 1 || refs.Transactions != 1 || refs.Lines != 0 {
		t.Errorf("refs = %+v", refs)
	}

	if err := s.EntitiesExist(ctx, "org-a", "e-1", "", "e-2"); err != nil {
		t.Errorf("EntitiesExist() failed: %v", err)
	}
	requireKind(t, s.EntitiesExist(ctx, "org-a", "e-1", "e-9"), model.KindNotFound)
}

func TestFields_TypedRoundTripAndUpsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestOrg(t, s, "org-a", "A")
	createTestEntity(t, s, "org-a", "e-1", "customer", "C1", "Alice")

	credit, _ := decimal.NewFromString("1234.5678")
	joined := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	prefs, err := model.NewJSON(map[string]any{"sms": true})
	if err != nil {
		t.Fatalf("NewJSON() failed: %v", err)
	}
	values := map[string]model.Value{
		"credit_limit": model.Number{Decimal: credit},
		"nickname":     model.Text("Al"),
		"vip":          model.Boolean(true),
		"joined":       model.Date(joined),
		"prefs":        prefs,
	}
	for name, v := range values {
		f := &model.DynamicField{ID: "f-" + name, OrganizationID: "org-a", EntityID: "e-1", FieldName: name,
			FieldType: v.Type(), Value: v, SmartCode: "HERA.CRM.CUST.DYN.FIELD.v1",
			Audit: model.Audit{CreatedAt: testNow, UpdatedAt: testNow}}
		if err := s.UpsertField(ctx, f); err != nil {
			t.Fatalf("UpsertField(%s) failed: %v", name, err)
		}
	}

	fields, err := s.GetFields(ctx, "org-a", "e-1")
	if err != nil {
		t.Fatalf("GetFields() failed: %v", err)
	}
	if len(fields) != len(values) {
		t.Fatalf("GetFields() returned %d fields, want %d", len(fields), len(values))
	}
	for _, f := range fields {
		if f.FieldType != values[f.FieldName].Type() {
			t.Errorf("%s: type %s, want %s", f.FieldName, f.FieldType, values[f.FieldName].Type())
		}
	}
	byName := map[string]model.DynamicField{}
	for _, f := range fields {
		byName[f.FieldName] = f
	}
	if n := byName["credit_limit"].Value.(model.Number); !n.Decimal.Equal(credit) {
		t.Errorf("credit_limit = %s, want %s", n.Decimal, credit)
	}
	if d := byName["joined"].Value.(model.Date); !time.Time(d).Equal(joined) {
		t.Errorf("joined = %v, want %v", time.Time(d), joined)
	}

	// Re-typing a field replaces the stored column and keeps the row id.
	later := testNow.Add(time.Minute)
	f := &model.DynamicField{ID: "f-other", OrganizationID: "org-a", EntityID: "e-1", FieldName: "vip",
		FieldType: model.FieldText, Value: model.Text("gold"), SmartCode: "HERA.CRM.CUST.DYN.FIELD.v1",
		Audit: model.Audit{CreatedAt: later, UpdatedAt: later}}
	if err := s.UpsertField(ctx, f); err != nil {
		t.Fatalf("UpsertField(vip) failed: %v", err)
	}
	if f.ID != "f-vip" {
		t.Errorf("upsert id = %q, want f-vip", f.ID)
	}
	if !f.CreatedAt.Equal(testNow) {
		t.Errorf("upsert created_at = %v, want %v", f.CreatedAt, testNow)
	}
	got, err := s.GetField(ctx, "org-a", "f-vip")
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if got.Value != model.Text("gold") {
		t.Errorf("vip = %v, want gold", got.Value)
	}
}

func TestFields_RejectsMismatchedType(t *testing.T) {
	s := createTestStore(t)
	createTestOrg(t, s, "org-a", "A")
	createTestEntity(t, s, "org-a", "e-1", "customer", "C1", "Alice")

	f := &model.DynamicField{ID: "f-1", OrganizationID: "org-a", EntityID: "e-1", FieldName: "vip",
		FieldType: model.FieldBoolean, Value: model.Text("yes"), SmartCode: "HERA.CRM.CUST.DYN.FIELD.v1",
		Audit: model.Audit{CreatedAt: testNow, UpdatedAt: testNow}}
	requireKind(t, s.UpsertField(context.Background(), f), model.KindValidation)
}

func TestRelationships_ExclusiveSlot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestOrg(t, s, "org-a", "A")
	createTestEntity(t, s, "org-a", "order", "order", "O1", "Order 1")
	createTestEntity(t, s, "org-a", "draft", "workflow_status", "DRAFT", "Draft")
	createTestEntity(t, s, "org-a", "open", "workflow_status", "OPEN", "Open")

	createTestEdge(t, s, "org-a", "r-1", "order", "draft", "has_status", true)
	err := s.InsertRelationship(ctx, newTestEdge("org-a", "r-2", "order", "open", "has_status", true))
	requireKind(t, err, model.KindConflict)

	if err := s.CloseRelationship(ctx, "org-a", "r-1", "tester", testNow, false); err != nil {
		t.Fatalf("CloseRelationship() failed: %v", err)
	}
	createTestEdge(t, s, "org-a", "r-2", "order", "open", "has_status", true)

	cur, err := s.ActiveInSlot(ctx, "org-a", "order", "has_status")
	if err != nil {
		t.Fatalf("ActiveInSlot() failed: %v", err)
	}
	if cur == nil || cur.ID != "r-2" {
		t.Fatalf("active slot = %+v, want r-2", cur)
	}

	old, err := s.GetRelationship(ctx, "org-a", "r-1")
	if err != nil {
		t.Fatalf("GetRelationship() failed: %v", err)
	}
	if old.IsActive || old.EndedAt == nil {
		t.Errorf("closed edge still active: %+v", old)
	}

	out, in, err := s.ActiveRelationships(ctx, "org-a", "order")
	if err != nil {
		t.Fatalf("ActiveRelationships() failed: %v", err)
	}
	if len(out) != 1 || len(in) != 0 {
		t.Errorf("out=%d in=%d, want 1 and 0", len(out), len(in))
	}
}

func TestRelationships_CloseAllOfEntity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestOrg(t, s, "org-a", "A")
	createTestEntity(t, s, "org-a", "a", "employee", "", "A")
	createTestEntity(t, s, "org-a", "b", "employee", "", "B")
	createTestEntity(t, s, "org-a", "c", "employee", "", "C")
	createTestEdge(t, s, "org-a", "r-1", "a", "b", "reports_to", false)
	createTestEdge(t, s, "org-a", "r-2", "c", "a", "reports_to", false)
	createTestEdge(t, s, "org-a", "r-3", "c", "b", "reports_to", false)

	n, err := s.CloseRelationshipsOf(ctx, "org-a", "a", "tester", testNow)
	if err != nil {
		t.Fatalf("CloseRelationshipsOf() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("closed %d edges, want 2", n)
	}
	r, err := s.GetRelationship(ctx, "org-a", "r-2")
	if err != nil {
		t.Fatalf("GetRelationship() failed: %v", err)
	}
	if r.Status != model.StatusArchived {
		t.Errorf("status = %q, want archived", r.Status)
	}
}

func TestTransactions_LinesAndTombstone(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestOrg(t, s, "org-a", "A")

	tx := newTestTransaction("org-a", "t-1", "SALE-1", "150")
	tx.Metadata = model.Metadata{"channel": "pos"}
	err := s.InTx(ctx, func(w *Store) error {
		if err := w.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if err := w.InsertLine(ctx, newTestLine("org-a", "t-1", 1, "2", "50")); err != nil {
			return err
		}
		return w.InsertLine(ctx, newTestLine("org-a", "t-1", 2, "1", "50"))
	})
	if err != nil {
		t.Fatalf("insert transaction unit failed: %v", err)
	}

	got, err := s.GetTransaction(ctx, "org-a", "t-1")
	if err != nil {
		t.Fatalf("GetTransaction() failed: %v", err)
	}
	if !got.TotalAmount.Equal(decimal.NewFromInt(150)) || got.Status != "draft" || got.Metadata["channel"] != "pos" {
		t.Errorf("unexpected header: %+v", got)
	}

	requireKind(t, s.InsertLine(ctx, newTestLine("org-a", "t-1", 2, "1", "1")), model.KindConflict)

	next, err := s.NextLineNumber(ctx, "org-a", "t-1")
	if err != nil {
		t.Fatalf("NextLineNumber() failed: %v", err)
	}
	if next != 3 {
		t.Errorf("NextLineNumber() = %d, want 3", next)
	}

	lines, err := s.GetLines(ctx, "org-a", "t-1")
	if err != nil {
		t.Fatalf("GetLines() failed: %v", err)
	}
	if len(lines) != 2 || lines[0].LineNumber != 1 || !lines[0].LineAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected lines: %+v", lines)
	}

	got.Status = "submitted"
	got.UpdatedAt = testNow.Add(time.Minute)
	if err := s.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction() failed: %v", err)
	}
	expensive, err := s.QueryTransactions(ctx, query.Select{OrganizationID: "org-a",
		Filter: query.Cmp{Field: "total_amount", Op: query.OpGte, Value: "100"}})
	if err != nil {
		t.Fatalf("QueryTransactions() failed: %v", err)
	}
	if len(expensive) != 1 || expensive[0].Status != "submitted" {
		t.Errorf("query result = %+v", expensive)
	}

	dup := newTestTransaction("org-a", "t-2", "SALE-1", "0")
	requireKind(t, s.InsertTransaction(ctx, dup), model.KindConflict)

	if err := s.TombstoneTransaction(ctx, "org-a", "t-1", "tester", testNow); err != nil {
		t.Fatalf("TombstoneTransaction() failed: %v", err)
	}
	_, err = s.GetTransaction(ctx, "org-a", "t-1")
	requireKind(t, err, model.KindNotFound)
	lines, err = s.GetLines(ctx, "org-a", "t-1")
	if err != nil {
		t.Fatalf("GetLines() failed: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("tombstoned transaction kept %d lines", len(lines))
	}
	if err := s.InsertTransaction(ctx, dup); err != nil {
		t.Errorf("code should be free after tombstone: %v", err)
	}
}

func TestTransactions_StatusCheck(t *testing.T) {
	s := createTestStore(t)
	createTestOrg(t, s, "org-a", "A")
	tx := newTestTransaction("org-a", "t-1", "SALE-1", "0")
	tx.Status = "posted"
	requireKind(t, s.InsertTransaction(context.Background(), tx), model.KindValidation)
}

func ids(es []model.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
