package borough

// 文档注释：geohash 编码（base32），仅用作查询缓存键
// 约束：精度 7 字符约 150m，足以区分相邻 borough 边界附近的查询；不用于空间判定。
const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

func geohash(lat, lon float64, precision int) string {
	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0
	out := make([]byte, 0, precision)
	idx, n := 0, 0
	lonBit := true
	for len(out) < precision {
		idx <<= 1
		if lonBit {
			mid := (lonLo + lonHi) / 2
			if lon >= mid {
				idx |= 1
				lonLo = mid
			} else {
				lonHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat >= mid {
				idx |= 1
				latLo = mid
			} else {
				latHi = mid
			}
		}
		lonBit = !lonBit
		n++
		if n == 5 {
			out = append(out, geohashAlphabet[idx])
			idx, n = 0, 0
		}
	}
	return string(out)
}
