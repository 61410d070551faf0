package core

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// BlockLen returns the number of samples every channel of block can
// provide, i.e. the shortest channel length. An empty block has length 0.
func BlockLen(block [][]float64) int {
	if len(block) == 0 {
		return 0
	}

	n := len(block[0])
	for _, ch := range block[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}

	return n
}
