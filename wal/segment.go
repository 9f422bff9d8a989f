package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/Priyanshu23/flashkv/errs"
)

const segmentExt = ".wal"

var segmentNamePattern = regexp.MustCompile(`^(\d{8})\.wal$`)

func segmentPath(dir string, num uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%08d%s", num, segmentExt))
}

// listSegments returns the segment numbers present in dir, sorted
// ascending (oldest first), by scanning for NNNNNNNN.wal entries —
// directory-listing plus sort yields insertion order.
func listSegments(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.New(errs.IO, "listSegments", err)
	}

	var nums []uint64
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		m := segmentNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}

	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}
