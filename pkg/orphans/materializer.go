package orphans

import (
	"github.com/quarrypkg/quarry/pkg/pkgdb"
)

// materialize drains the candidate list into the caller-owned result,
// preserving discovery order. Each candidate's record is moved, not
// copied: ownership transfers to the output and the transient wrapper is
// released as it is consumed. The output length always equals the
// candidate count, and no two entries name the same package because
// classification visits each database record exactly once.
func materialize(candidates []*candidate) []pkgdb.PackageRecord {
	result := make([]pkgdb.PackageRecord, 0, len(candidates))

	for i, cand := range candidates {
		result = append(result, *cand.record)
		cand.record = nil
		candidates[i] = nil
	}

	return result
}
