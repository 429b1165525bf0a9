// Package tools builds and runs the external programs the QC pipeline is
// made of: msconvert (RAW to mzXML/MGF), the NIST MSQC perl pipeline and
// the R graphics script.
//
// Every invocation is bounded by a timeout. The child runs in its own
// process group and the whole group is killed on timeout or cancellation,
// since the NIST pipeline spawns helpers that are known to hang. Failures
// surface as *ExternalToolError carrying the exit code and the tail of
// stderr; stderr that looks like a transient lock held by the copier
// grants a limited number of retries (see [RetryState]).
package tools
