// Package metrics extracts QC metric values from the text produced by the
// NIST MSQC pipeline.
//
// A [Table] is an ordered, immutable list of [Rule] values. Each rule names
// one metric and says how to find it: the first line containing the rule's
// locator is the anchor, the value lives LineOffset lines below it, and the
// rule's pattern captures the value from that line. Rules with neither a
// locator nor a pattern are placeholders and always stay unresolved.
//
// Extraction never mutates the table; it returns a fresh [Values] map.
package metrics
