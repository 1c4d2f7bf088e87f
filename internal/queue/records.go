package queue

// NextID returns one more than the largest id across every provided set.
func NextID(sets ...[]*Record) int64 {
	var highest int64
	for _, records := range sets {
		for _, rec := range records {
			if rec != nil && rec.ID > highest {
				highest = rec.ID
			}
		}
	}
	return highest + 1
}

// Find returns the first record with the given id.
func Find(records []*Record, id int64) (*Record, bool) {
	for _, rec := range records {
		if rec != nil && rec.ID == id {
			return rec, true
		}
	}
	return nil, false
}

// Merge returns existing followed by every incoming record whose key is not
// already present. Existing records win because they carry later pipeline
// state than a fresh intake copy. The returned slice shares record pointers
// with its inputs.
func Merge(existing, incoming []*Record) []*Record {
	out := make([]*Record, 0, len(existing)+len(incoming))
	seen := make(map[Key]struct{}, len(existing)+len(incoming))
	for _, set := range [][]*Record{existing, incoming} {
		for _, rec := range set {
			if rec == nil {
				continue
			}
			if _, dup := seen[rec.Key()]; dup {
				continue
			}
			seen[rec.Key()] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

// SourceSeen reports whether a record for postID and fileName already exists.
func SourceSeen(records []*Record, postID, fileName string) bool {
	for _, rec := range records {
		if rec != nil && rec.PostID == postID && rec.FileName == fileName {
			return true
		}
	}
	return false
}
