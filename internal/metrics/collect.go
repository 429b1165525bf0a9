package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ReportPaths returns the NIST metrics report and its log for a RAW file
// basename inside the per-file output directory.
func ReportPaths(outDir, base string) (report, log string) {
	report = filepath.Join(outDir, base+"_report.msqc")
	return report, report + ".LOG"
}

// Collect gathers every metric for one RAW file: the table-driven report
// metrics, the spectrum counts from the log and the RAW file size. Values
// that could be read are returned even when err is non-nil.
func Collect(outDir, base string, rawSize int64, table Table) (Values, error) {
	reportPath, logPath := ReportPaths(outDir, base)

	lines, err := ReadLines(reportPath)
	if err != nil {
		return nil, fmt.Errorf("read metrics report: %w", err)
	}
	values, reportErr := ExtractFromReport(lines, table)

	logText, err := os.ReadFile(logPath)
	if err != nil {
		return values, errors.Join(reportErr, fmt.Errorf("read metrics log: %w", err))
	}
	counts, logErr := ExtractFromLog(string(logText))
	if counts.MS1 != "" {
		values[MS1Spectra] = counts.MS1
	}
	if counts.MS2 != "" {
		values[MS2Spectra] = counts.MS2
	}

	values[FileSize] = DeriveFileSizeMiB(rawSize)
	return values, errors.Join(reportErr, logErr)
}
