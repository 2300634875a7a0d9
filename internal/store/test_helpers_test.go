package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hera-erp/hera/internal/model"
)

var testNow = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, Options{Now: func() time.Time { return testNow }})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOrg inserts an active organization.
func createTestOrg(t *testing.T, s *Store, id, code string) *model.Organization {
	t.Helper()
	org := &model.Organization{
		ID:        id,
		Name:      "Org " + code,
		Code:      code,
		Type:      "business",
		Status:    model.StatusActive,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	if err := s.CreateOrganization(context.Background(), org); err != nil {
		t.Fatalf("CreateOrganization(%s) failed: %v", id, err)
	}
	return org
}

// createTestEntity inserts an active entity with minimal required fields.
func createTestEntity(t *testing.T, s *Store, org, id, entityType, code, name string) *model.Entity {
	t.Helper()
	e := &model.Entity{
		ID:             id,
		OrganizationID: org,
		EntityType:     entityType,
		EntityCode:     code,
		EntityName:     name,
		SmartCode:      "HERA.CRM.CUST.ENT.PROF.v1",
		Status:         model.StatusActive,
		Audit:          model.Audit{CreatedBy: "tester", CreatedAt: testNow, UpdatedBy: "tester", UpdatedAt: testNow},
	}
	if err := s.InsertEntity(context.Background(), e); err != nil {
		t.Fatalf("InsertEntity(%s) failed: %v", id, err)
	}
	return e
}

// createTestEdge inserts an active relationship.
func createTestEdge(t *testing.T, s *Store, org, id, from, to, relType string, exclusive bool) *model.Relationship {
	t.Helper()
	r := newTestEdge(org, id, from, to, relType, exclusive)
	if err := s.InsertRelationship(context.Background(), r); err != nil {
		t.Fatalf("InsertRelationship(%s) failed: %v", id, err)
	}
	return r
}

func newTestEdge(org, id, from, to, relType string, exclusive bool) *model.Relationship {
	return &model.Relationship{
		ID:               id,
		OrganizationID:   org,
		FromEntityID:     from,
		ToEntityID:       to,
		RelationshipType: relType,
		SmartCode:        "HERA.CRM.REL.LINK.EDGE.v1",
		Status:           model.StatusActive,
		IsActive:         true,
		IsExclusive:      exclusive,
		StartedAt:        testNow,
		Audit:            model.Audit{CreatedAt: testNow, UpdatedAt: testNow},
	}
}

// newTestTransaction builds a draft transaction header.
func newTestTransaction(org, id, code string, total string) *model.Transaction {
	return &model.Transaction{
		ID:              id,
		OrganizationID:  org,
		TransactionType: "sale",
		TransactionCode: code,
		TransactionDate: testNow,
		TotalAmount:     decimal.RequireFromString(total),
		AutoTotal:       true,
		Currency:        "USD",
		Status:          "draft",
		SmartCode:       "HERA.SALON.POS.TXN.SALE.v1",
		Audit:           model.Audit{CreatedAt: testNow, UpdatedAt: testNow},
	}
}

// newTestLine builds a transaction line with line_amount = qty * unit.
func newTestLine(org, txID string, n int, qty, unit string) *model.TransactionLine {
	q := decimal.RequireFromString(qty)
	u := decimal.RequireFromString(unit)
	return &model.TransactionLine{
		ID:             fmt.Sprintf("%s-line-%d", txID, n),
		OrganizationID: org,
		TransactionID:  txID,
		LineNumber:     n,
		Quantity:       q,
		UnitAmount:     u,
		LineAmount:     q.Mul(u),
		SmartCode:      "HERA.SALON.POS.LINE.ITEM.v1",
		Audit:          model.Audit{CreatedAt: testNow, UpdatedAt: testNow},
	}
}

func requireKind(t *testing.T, err error, kind model.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := model.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, got, err)
	}
}
