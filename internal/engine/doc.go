// Package engine implements workflow rule evaluation.
//
// Evaluate is called once per appended domain event. It:
//
//  1. Loads enabled rules whose trigger equals the event type, ordered by
//     position (ties in insertion order), fresh from storage every time
//  2. For each rule, evaluates the optional condition (Matches)
//  3. Runs the action through the dispatcher, which returns a Result
//     rather than an error
//  4. Appends exactly one ledger row per rule: SUCCESS, SKIPPED or FAILED
//
// # Failure isolation
//
// Nothing raised inside a rule escapes Evaluate. Malformed condition or
// action config, storage errors and panics all become FAILED rows, and the
// next rule runs regardless.
//
// # Recursion
//
// CreateDerivedEvent appends through RawAppender, which never calls back
// into the engine. A derived event is visible in the log but is not
// evaluated, so rules cannot trigger each other in a loop.
//
// # Actions
//
// The action kinds form a closed set (domain.Action). Adding one means a
// new type in domain, a case in domain.ParseAction and a case in dispatch.
package engine
