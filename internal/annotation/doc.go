// Package annotation decodes the trailing SQL comment of a scenario statement.
//
// Every statement in an isolation scenario carries a line comment naming the
// transaction it belongs to and, optionally, the rows it is expected to see:
//
//	update test set value = 11 where id = 1; -- T1
//	select * from test; -- T2. Still shows 1 => 10
//	select * from test where value = 30; -- T1. Returns nothing
//	select * from test; -- either. Shows 1 => 12, 2 => 22
//
// The first word after "--" is the label. T1..Tn address a single session by
// 1-based ordinal; "either" addresses sessions 1 and 2. Every "<int> => <int>"
// pair found anywhere after the first "--" contributes one expected id/value
// pair. The grammar is shared by every backend's scenario catalog, so the
// parser is deliberately dumb: no quoting, no escaping, no nesting.
package annotation
