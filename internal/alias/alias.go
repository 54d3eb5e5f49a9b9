// Package alias computes the next free "-copy-N" alias for a duplicated
// resource. The result is only unique with respect to the aliases passed in;
// writers must still insert under a unique constraint and retry on conflict.
package alias

import (
	"regexp"
	"strconv"
	"strings"
)

const copyInfix = "-copy-"

// Next returns base-copy-(max+1) where max is the largest positive n among
// existing aliases of the exact form base-copy-n, or base-copy-1 if none.
func Next(base string, existing []string) string {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(base+copyInfix) + `(\d+)$`)
	var highest uint64
	for _, a := range existing {
		m := re.FindStringSubmatch(a)
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 63)
		if err != nil || n == 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return base + copyInfix + strconv.FormatUint(highest+1, 10)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Pattern returns the SQL LIKE pattern matching every candidate alias for
// base. It uses backslash as the escape character.
func Pattern(base string) string {
	return likeEscaper.Replace(base+copyInfix) + "%"
}
