// Package harness runs YAML scenarios against a private hera engine and
// compares their traces with golden files.
//
// A scenario is a list of engine requests, each with an optional
// expectation, followed by assertions over the trace and the final
// database state:
//
//	name: entity_code_unique_per_tenant
//	description: entity codes are unique per organization and type
//	steps:
//	  - name: first customer
//	    request:
//	      operation: create
//	      store: entity
//	      organization_id: org-a
//	      smart_code: HERA.CRM.CUST.ENT.PROF.v1
//	      payload: {entity_type: customer, entity_name: Ada, entity_code: C-1}
//	  - name: duplicate code
//	    request: {...}
//	    expect: {status: error, kind: conflict, field: entity_code}
//	assertions:
//	  - type: row_count
//	    table: entities
//	    where: {entity_code: C-1}
//	    count: 1
//
// Every run uses a fresh in-memory database, a stepping clock and scripted
// ids, so traces are byte-identical across runs. A step without an expect
// clause must succeed.
//
// Golden files live in testdata/golden and are refreshed with
//
//	go test ./internal/harness -update
package harness
