package stats

import "sort"

// WinBuckets 贏倍區間表（以押注單位計）
//
// 翻格遊戲的倍數是浮點數，無法像整數贏分那樣建 LUT，改用二分搜尋。
type WinBuckets struct {
	bounds []float64 // 第一個區間 (0,1) 之後的左邊界
	labels []string
}

// Buckets
//
// 用來定位贏倍 -> DistRecord 位置 O(log n)
//
// 請勿修改預設值
//   - win區間: 贏倍區間 [0,0], (0,1), [1,2), [2,5), ..., [100,1000), [1000, +inf)
var Buckets *WinBuckets = &WinBuckets{
	bounds: []float64{1, 2, 5, 10, 20, 50, 100, 1000},
	labels: []string{"[0,0]", "(0,1)", "[1,2)", "[2,5)", "[5,10)", "[10,20)", "[20,50)", "[50,100)", "[100,1000)", "[1000,+inf)"},
}

func (b *WinBuckets) WinBucketStr() []string {
	return b.labels
}

// Len 區間數量
func (b *WinBuckets) Len() int {
	return len(b.labels)
}

// Index 回傳贏倍 mult 所在的區間索引；mult <= 0（爆雷）一律落在 [0,0]。
func (b *WinBuckets) Index(mult float64) int {
	if mult <= 0 {
		return 0
	}
	return 1 + sort.Search(len(b.bounds), func(i int) bool { return b.bounds[i] > mult })
}
