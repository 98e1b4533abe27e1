package diffusion

import "strconv"

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func formatFloat(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
