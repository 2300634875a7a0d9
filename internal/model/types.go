package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SystemOrganizationID is the default reserved tenant that owns
// system-registered providers.
const SystemOrganizationID = "00000000-0000-0000-0000-000000000000"

// Record status vocabulary shared by organizations, entities and relationships.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// Metadata is a free-form JSON object attached to records.
type Metadata map[string]any

// Audit carries the who/when stamps written by the store.
type Audit struct {
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organization is the tenant boundary. Organizations are archived, never
// physically removed.
type Organization struct {
	ID         string     `json:"id"`
	Name       string     `json:"organization_name"`
	Code       string     `json:"organization_code"`
	Type       string     `json:"organization_type"`
	Status     string     `json:"status"`
	Settings   Metadata   `json:"settings,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// Entity is a generic polymorphic business object.
type Entity struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	EntityType     string     `json:"entity_type"`
	EntityCode     string     `json:"entity_code,omitempty"`
	EntityName     string     `json:"entity_name"`
	SmartCode      string     `json:"smart_code"`
	Status         string     `json:"status"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	Audit
}

// DynamicField is one typed key/value extension of an entity.
type DynamicField struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	EntityID       string    `json:"entity_id"`
	FieldName      string    `json:"field_name"`
	FieldType      FieldType `json:"field_type"`
	Value          Value     `json:"-"`
	SmartCode      string    `json:"smart_code"`
	Audit
}

// MarshalJSON renders the typed value under "value".
func (f DynamicField) MarshalJSON() ([]byte, error) {
	type plain DynamicField
	var native any
	if f.Value != nil {
		native = f.Value.Native()
	}
	return json.Marshal(struct {
		plain
		Value any `json:"value"`
	}{plain(f), native})
}

// Relationship is a typed directed edge between two entities.
type Relationship struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organization_id"`
	FromEntityID     string     `json:"from_entity_id"`
	ToEntityID       string     `json:"to_entity_id"`
	RelationshipType string     `json:"relationship_type"`
	SmartCode        string     `json:"smart_code"`
	RelationshipData Metadata   `json:"relationship_data,omitempty"`
	Status           string     `json:"status"`
	IsActive         bool       `json:"is_active"`
	IsExclusive      bool       `json:"is_exclusive"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Audit
}

// Transaction is a business event header.
type Transaction struct {
	ID              string            `json:"id"`
	OrganizationID  string            `json:"organization_id"`
	TransactionType string            `json:"transaction_type"`
	TransactionCode string            `json:"transaction_code"`
	TransactionDate time.Time         `json:"transaction_date"`
	SourceEntityID  string            `json:"source_entity_id,omitempty"`
	TargetEntityID  string            `json:"target_entity_id,omitempty"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	AutoTotal       bool              `json:"auto_total"`
	Currency        string            `json:"currency,omitempty"`
	Status          string            `json:"status"`
	SmartCode       string            `json:"smart_code"`
	Metadata        Metadata          `json:"metadata,omitempty"`
	Archived        bool              `json:"archived"`
	DeletedAt       *time.Time        `json:"deleted_at,omitempty"`
	Lines           []TransactionLine `json:"lines,omitempty"`
	Audit
}

// Line types used by balanced (double-entry) transaction types.
const (
	LineDebit  = "debit"
	LineCredit = "credit"
)

// TransactionLine is the itemized detail of a transaction.
type TransactionLine struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	TransactionID  string          `json:"transaction_id"`
	LineNumber     int             `json:"line_number"`
	LineType       string          `json:"line_type,omitempty"`
	EntityID       string          `json:"entity_id,omitempty"`
	Description    string          `json:"description,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitAmount     decimal.Decimal `json:"unit_amount"`
	LineAmount     decimal.Decimal `json:"line_amount"`
	AmountOverride bool            `json:"amount_override"`
	SmartCode      string          `json:"smart_code"`
	Metadata       Metadata        `json:"metadata,omitempty"`
	Audit
}

// CompleteEntity is the reassembled view of an entity with its dynamic
// fields and both directions of its relationships.
type CompleteEntity struct {
	Entity       Entity         `json:"entity"`
	Fields       map[string]any `json:"dynamic_fields"`
	Outgoing     []Relationship `json:"relationships_from"`
	Incoming     []Relationship `json:"relationships_to"`
	FieldRecords []DynamicField `json:"-"`
}
