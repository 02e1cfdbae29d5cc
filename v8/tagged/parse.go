package tagged

import (
	"fmt"
	"strconv"
	"strings"

	"v8-tagdecoder-go/v8/common"
)

// ParseWord parses a user supplied integer literal (0x, 0o, 0b or decimal)
// and checks that it fits in width bytes.
func ParseWord(s string, width int) (uint64, error) {
	if !common.ValidWidth(width) {
		return 0, common.EvaluationError(pkgName, "parse",
			fmt.Sprintf("unsupported pointer width %d bytes", width), nil)
	}
	lit := strings.TrimSpace(s)
	if strings.HasPrefix(lit, "-") {
		return 0, common.EvaluationError(pkgName, "parse",
			fmt.Sprintf("%q: raw values are unsigned", s), nil)
	}
	v, err := strconv.ParseUint(lit, 0, 64)
	if err != nil {
		return 0, common.EvaluationError(pkgName, "parse", fmt.Sprintf("%q is not an unsigned integer", s), err)
	}
	if v&^common.WidthMask(width) != 0 {
		return 0, common.EvaluationError(pkgName, "parse",
			fmt.Sprintf("%q does not fit in %d bits", s, width*8), nil)
	}
	return v, nil
}
