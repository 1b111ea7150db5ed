package planner

// SpaceChange summarizes a plan in bytes.
type SpaceChange struct {
	Before         int64
	ToBeDeleted    int64
	ToBeDownloaded int64
	After          int64
}

// Estimate computes the space a plan leaves behind. Evicted torrents that
// share files are counted once. Simulated plans download nothing.
func Estimate(total int64, plan Plan, simulate bool) SpaceChange {
	var deleted, downloaded int64
	counted := make(map[string]bool, len(plan.Evict))
	for _, t := range plan.Evict {
		if !counted[t.Hash] {
			deleted += t.Size
		}
		counted[t.Hash] = true
		for _, sib := range plan.Groups[t.Hash] {
			counted[sib.Hash] = true
		}
	}
	if !simulate {
		for _, t := range plan.Admit {
			downloaded += t.Size
		}
	}
	return SpaceChange{
		Before:         total,
		ToBeDeleted:    deleted,
		ToBeDownloaded: downloaded,
		After:          total - deleted + downloaded,
	}
}
