// Package harness replays annotated multi-session SQL scripts against a live
// backend and checks the visible state they produce.
//
// # Annotations
//
// Every statement carries a trailing line comment naming the session it
// runs on and, for reads, what it must return:
//
//	begin; -- T1
//	update test set value = 11 where id = 1; -- T1
//	select * from test; -- T2, 1 => 10, 2 => 20
//	select * from test where value = 30; -- T1, returns nothing
//	select * from test; -- either, 1 => 11, 2 => 21
//
// T<k> addresses the k-th session. "either" runs the statement on sessions
// 1 and 2 in turn and checks each one independently.
//
// # Blocking statements
//
// A write that has to wait for another session's lock is started with Block
// and released with Unblock:
//
//	b, err := h.Block(ctx, "update test set value = 12 where id = 1; -- T2")
//	...
//	err = h.Unblock(ctx, b, "commit; -- T1")
//
// Unblock fails with an *OrderingError when the blocked statement finished
// before the releasing statement ran.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: pg_g0_read_committed
//	description: "Write cycles (G0)"
//	anomaly: G0
//	backends: [postgres]
//	isolation: read committed
//	steps:
//	  - exec: "begin; set transaction isolation level read committed; -- T1"
//	  - block: "update test set value = 12 where id = 1; -- T2"
//	  - unblock: "commit; -- T1"
//	  - query: "select * from test; -- either, 1 => 12, 2 => 22"
//	  - exec: "commit; -- T2"
//	    expect_error:
//	      kind: serialization_failure
//
// Run executes a scenario between fixture setup and teardown and returns a
// Result with a deterministic trace suitable for golden comparison.
package harness
