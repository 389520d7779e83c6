package model

import (
	"fmt"
	"strconv"
)

// ClassifiedRoot is the logical root of every artifact group.
const ClassifiedRoot = "classified"

// BucketArtifacts is the classifier output for a single bucket. Records and
// Counts describe the same set of lines.
type BucketArtifacts struct {
	Bucket  int             `json:"bucket"`
	Records []Record        `json:"records"`
	Counts  []TokenCountRow `json:"counts"`
}

// PercentileResult is the selector output for a single bucket.
type PercentileResult struct {
	Bucket     int             `json:"bucket"`
	Percentile float64         `json:"percentile"`
	Threshold  float64         `json:"threshold"`
	Empty      bool            `json:"empty"`
	Records    []Record        `json:"records"`
	Counts     []TokenCountRow `json:"counts"`
}

// Group identifies an artifact group: a bucket's classified output when
// Percentile is zero, otherwise its top_<p> output.
type Group struct {
	Bucket     int
	Percentile float64
}

// Selected reports whether the group holds percentile-filtered artifacts.
func (g Group) Selected() bool {
	return g.Percentile > 0
}

// Path returns the logical group name, e.g. "classified/2/top_50".
func (g Group) Path() string {
	base := fmt.Sprintf("%s/%d", ClassifiedRoot, g.Bucket)
	if !g.Selected() {
		return base
	}
	return base + "/" + TopDir(g.Percentile)
}

func (g Group) String() string {
	return g.Path()
}

// TopDir formats the directory name for a percentile, e.g. "top_12.5".
func TopDir(percentile float64) string {
	return "top_" + FormatPercentile(percentile)
}

// FormatPercentile renders a percentile without trailing zeros.
func FormatPercentile(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
