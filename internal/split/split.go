// Package split 按种子确定性地把去重后的记录划分为 train/val/test。
package split

import (
	"fmt"
	"math"

	"sftcorpus/pkg/contract"
)

// Ratios: 验证集与测试集比例；训练集为剩余部分。
type Ratios struct {
	Val  float64
	Test float64
}

// Validate 要求两者为有限非负数且和严格小于 1。
func (r Ratios) Validate() error {
	for _, v := range []struct {
		name string
		x    float64
	}{{"val_ratio", r.Val}, {"test_ratio", r.Test}} {
		if math.IsNaN(v.x) || math.IsInf(v.x, 0) {
			return fmt.Errorf("%w: %s must be finite", contract.ErrRatioInvalid, v.name)
		}
		if v.x < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %v", contract.ErrRatioInvalid, v.name, v.x)
		}
	}
	if r.Val+r.Test >= 1 {
		return fmt.Errorf("%w: val_ratio+test_ratio must be < 1, got %v", contract.ErrRatioInvalid, r.Val+r.Test)
	}
	return nil
}

// Counts 计算各分区大小：val/test 为 n×ratio 四舍六入五成双，train 取剩余。
// 调用方须先通过 Validate；在此前提下 val+test <= n 恒成立。
func Counts(n int, r Ratios) (train, val, test int) {
	val = int(math.RoundToEven(float64(n) * r.Val))
	test = int(math.RoundToEven(float64(n) * r.Test))
	return n - val - test, val, test
}

// Assignment: 各分区持有的原始下标，按置换顺序排列。
type Assignment struct {
	Train []int
	Val   []int
	Test  []int
}

// Len 返回已分配下标总数。
func (a Assignment) Len() int { return len(a.Train) + len(a.Val) + len(a.Test) }

// Indices 返回分区对应的下标列表。
func (a Assignment) Indices(p contract.Partition) []int {
	switch p {
	case contract.PartitionTrain:
		return a.Train
	case contract.PartitionVal:
		return a.Val
	case contract.PartitionTest:
		return a.Test
	}
	return nil
}

// Assign 对 [0, n) 做种子置换并依次切分：前 train 个 → train，随后 val 个 → val，其余 → test。
func Assign(n int, r Ratios, seed int64) (Assignment, error) {
	if err := r.Validate(); err != nil {
		return Assignment{}, err
	}
	if n < 0 {
		return Assignment{}, fmt.Errorf("%w: negative record count %d", contract.ErrInvariantViolation, n)
	}
	train, val, _ := Counts(n, r)
	if train < 0 {
		return Assignment{}, fmt.Errorf("%w: partition sizes exceed %d", contract.ErrInvariantViolation, n)
	}
	perm := Permute(NewSource(seed), n)
	return Assignment{
		Train: perm[:train:train],
		Val:   perm[train : train+val : train+val],
		Test:  perm[train+val:],
	}, nil
}

// Partitions: 三个分区的记录列表（分区内按置换顺序）。
type Partitions struct {
	Train []contract.Record
	Val   []contract.Record
	Test  []contract.Record
}

// Get 返回分区对应的记录。
func (p Partitions) Get(part contract.Partition) []contract.Record {
	switch part {
	case contract.PartitionTrain:
		return p.Train
	case contract.PartitionVal:
		return p.Val
	case contract.PartitionTest:
		return p.Test
	}
	return nil
}

// Split 对 records 执行 Assign 并按下标取出记录。比例非法时在任何处理前返回 ErrRatioInvalid。
func Split(records []contract.Record, r Ratios, seed int64) (Partitions, error) {
	a, err := Assign(len(records), r, seed)
	if err != nil {
		return Partitions{}, err
	}
	pick := func(idx []int) []contract.Record {
		out := make([]contract.Record, len(idx))
		for i, k := range idx {
			out[i] = records[k]
		}
		return out
	}
	return Partitions{Train: pick(a.Train), Val: pick(a.Val), Test: pick(a.Test)}, nil
}
