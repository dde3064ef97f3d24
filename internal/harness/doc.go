// Package harness runs workflow conformance scenarios against the real
// engine and an in-memory database.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: qualify_on_approval
//	description: "Approval moves the contact to QUALIFIED"
//	users:
//	  - { id: u1, email: u1@example.com }
//	contacts:
//	  - { user_id: u1, email: u1@example.com, status: LEAD }
//	rules:
//	  - id: wf-qualify
//	    trigger: RoleRequestUpdate
//	    condition: { field: title, operator: contains, value: Approved }
//	    action: { type: UPDATE_CONTACT_STATUS, config: { to_status: QUALIFIED } }
//	events:
//	  - { subject_id: u1, type: RoleRequestUpdate, title: "Request Approved" }
//	assertions:
//	  - { type: execution, rule: wf-qualify, event: evt-0001, status: SUCCESS }
//	  - { type: contact, user: u1, expect: { status: QUALIFIED } }
//
// Rules may also come from a CUE file named by rules_file, in the format
// the rulespec package reads. Seed rules shipped by the migrations are
// removed unless keep_seed_rules is set.
//
// # Assertion Types
//
//   - execution: the latest ledger row for a rule (and event) has a status
//     and, optionally, an error containing a substring
//   - execution_count: the number of ledger rows matching rule, event, status
//   - contact: a contact's status or assigned_to
//   - event_count: the number of events of a type and/or subject
//   - notification: messages handed to the notifier, by to, subject, tag
//
// # Deterministic Testing
//
// Event IDs are evt-0001, evt-0002, ... in append order, derived events
// included. Ledger IDs are exec-0001, ... The clock starts at
// testutil.DefaultBase. Identical scenarios produce identical traces, which
// are compared against golden files.
package harness
