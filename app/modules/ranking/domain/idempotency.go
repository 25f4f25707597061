package rankingdomain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ComputeSubmissionHash returns a deterministic hash of a normalized match.
// Resubmitting the same match yields the same hash; any change to line-up,
// scores or declarations yields a different one. Player order within a side
// does not matter.
func ComputeSubmissionHash(m MatchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%s|%s|%d|", m.MatchID, m.Format, m.AgeDivision, m.MatchType, m.PlayedAt.Unix())
	for _, players := range m.Sides {
		sorted := make([]string, len(players))
		copy(sorted, players)
		sort.Strings(sorted)
		sb.WriteString(strings.Join(sorted, ","))
		sb.WriteByte('|')
	}
	for _, g := range m.Games {
		fmt.Fprintf(&sb, "%d-%d;", g.Team1, g.Team2)
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}
