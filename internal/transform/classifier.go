package transform

import "github.com/aduanapp/refsync/internal/upsert"

// Classify partitions rows into update candidates (key already in the
// target) and insert candidates. The upsert statement itself is oblivious
// to the split, the conflict key resolves it, but the partition feeds
// run accounting and the debug trace.
func Classify(rows []upsert.Row, existing map[string]struct{}) (updates, inserts []upsert.Row) {
	for _, r := range rows {
		if _, ok := existing[r.Key()]; ok {
			updates = append(updates, r)
		} else {
			inserts = append(inserts, r)
		}
	}
	return updates, inserts
}
