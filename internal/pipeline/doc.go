// Package pipeline drives the QC run: it folds newly copied RAW files from
// the copy log into the status log, then takes each pending file through
// conversion, the NIST pipeline, graphics, metric extraction, report
// rendering and publishing, strictly one file at a time.
//
// Every file ends a pass either completed or failed with a reason; a
// failure never stops the batch. Cancelling the context fails the file in
// flight as "interrupted" and ends the pass. [Runner.Watch] repeats passes
// whenever the copy log changes.
package pipeline
