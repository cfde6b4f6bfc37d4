package vocab

import "strings"

// CEFR scale, easiest first.
var cefrLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

func levelIndex(level string) int {
	level = strings.ToUpper(strings.TrimSpace(level))
	for i, l := range cefrLevels {
		if l == level {
			return i
		}
	}
	return -1
}

// NextLevel returns the CEFR level one step above the given one, or the
// given level itself when it is already the top of the scale or unknown.
func NextLevel(level string) string {
	i := levelIndex(level)
	if i < 0 {
		return strings.ToUpper(strings.TrimSpace(level))
	}
	if i+1 >= len(cefrLevels) {
		return cefrLevels[len(cefrLevels)-1]
	}
	return cefrLevels[i+1]
}

// LevelsAtOrBelow lists the CEFR levels up to and including max, easiest
// first. Unknown levels yield nil.
func LevelsAtOrBelow(max string) []string {
	i := levelIndex(max)
	if i < 0 {
		return nil
	}
	out := make([]string, i+1)
	copy(out, cefrLevels[:i+1])
	return out
}
