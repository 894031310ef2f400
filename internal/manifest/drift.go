package manifest

import "sftcorpus/pkg/contract"

// Drift 两次构建之间的划分差异。
type Drift struct {
	// Moved: 两次均存在但分区不同的记录数。
	Moved int `json:"moved"`
	// Leaked: 上次在 val/test、本次进入 train 的记录数（Moved 的子集）。
	Leaked int `json:"leaked"`
	// Added: 本次新增的记录数。
	Added int `json:"added"`
	// Removed: 本次消失的记录数。
	Removed int `json:"removed"`
}

// Zero 报告两次划分是否完全一致。
func (d Drift) Zero() bool { return d == Drift{} }

// Compare 计算 prev → cur 的漂移。
func Compare(prev, cur Assignments) Drift {
	var d Drift
	for h, p := range cur {
		old, ok := prev[h]
		switch {
		case !ok:
			d.Added++
		case old != p:
			d.Moved++
			if p == contract.PartitionTrain {
				d.Leaked++
			}
		}
	}
	for h := range prev {
		if _, ok := cur[h]; !ok {
			d.Removed++
		}
	}
	return d
}
