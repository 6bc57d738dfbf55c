package main

import (
	"os"
	"path/filepath"
	"sort"
)

// findLatestFile locates the newest generated file for one ZBM: it scans
// directories matching dirPattern under root, newest first, and inside each
// tries progressively looser filename patterns. Returns "" when nothing
// matches; a missing attachment is a warning at the call site, not a failure.
func findLatestFile(root, dirPattern, filePrefix, zbmCode, zbmName string) string {
	dirs, err := filepath.Glob(filepath.Join(root, dirPattern))
	if err != nil || len(dirs) == 0 {
		return ""
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	patterns := []string{
		filePrefix + "_" + zbmCode + "_" + safeName(zbmName) + "_*.xlsx",
		filePrefix + "_" + zbmCode + "_*.xlsx",
		"*" + zbmCode + "*.xlsx",
	}
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		for _, pattern := range patterns {
			files, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil || len(files) == 0 {
				continue
			}
			sort.Sort(sort.Reverse(sort.StringSlice(files)))
			abs, err := filepath.Abs(files[0])
			if err != nil {
				return files[0]
			}
			return abs
		}
	}
	return ""
}

func findLatestSummary(root, zbmCode, zbmName string) string {
	return findLatestFile(root, "ZBM_Reports_*", "ZBM_Summary", zbmCode, zbmName)
}

func findLatestConsolidated(root, zbmCode, zbmName string) string {
	return findLatestFile(root, "ZBM_Consolidated_Files_*", "ZBM_Consolidated", zbmCode, zbmName)
}
