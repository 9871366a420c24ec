package blockfile

import "sort"

// insertSorted returns a new slice with rec inserted in ascending-key order.
func insertSorted(records []Record, rec Record) []Record {
	key := rec.PrimaryKey()
	i := sort.Search(len(records), func(i int) bool { return records[i].PrimaryKey() >= key })
	out := make([]Record, 0, len(records)+1)
	out = append(out, records[:i]...)
	out = append(out, rec)
	out = append(out, records[i:]...)
	return out
}

// addRecord inserts rec into the active chain at targetRBN, preserving the
// ordering and size invariants of §3.4, by attempting fit-in-place,
// redistribute-left, redistribute-right, and finally split, in that order
// (§4.5). It reports which RBNs were structurally touched so the caller can
// refresh block-index entries.
type insertResult struct {
	touchedRBNs []RBN // blocks written; caller must refresh index entries for these
	splitRBN    RBN   // NilRBN unless a split occurred; the newly allocated block
}

func addRecord(bf *File, h *Header, codec Codec, targetRBN RBN, rec Record) (*insertResult, error) {
	target, err := bf.ReadActive(targetRBN, codec)
	if err != nil {
		return nil, err
	}

	for _, existing := range target.Records {
		if existing.PrimaryKey() == rec.PrimaryKey() {
			return nil, newKeyErr("Insert", rec.PrimaryKey(), KindDuplicate, nil)
		}
	}

	cost, err := recordCost(rec)
	if err != nil {
		return nil, err
	}
	if ActiveMetaSize+cost > int(h.BlockSize) {
		return nil, newKeyErr("Insert", rec.PrimaryKey(), KindCapacityExceeded, nil)
	}

	targetUsed, err := usedSize(target.Records)
	if err != nil {
		return nil, err
	}

	// 1. Fit in place.
	if targetUsed+cost <= int(h.BlockSize) {
		target.Records = insertSorted(target.Records, rec)
		if err := bf.WriteActive(target); err != nil {
			return nil, err
		}
		return &insertResult{touchedRBNs: []RBN{target.RBN}}, nil
	}

	// 2. Redistribute left.
	if target.PrecedingRBN != NilRBN {
		left, err := bf.ReadActive(target.PrecedingRBN, codec)
		if err != nil {
			return nil, err
		}
		if ok, err := tryRedistributeLeft(h, left, target, rec); err != nil {
			return nil, err
		} else if ok {
			if err := bf.WriteActive(left); err != nil {
				return nil, err
			}
			if err := bf.WriteActive(target); err != nil {
				return nil, err
			}
			return &insertResult{touchedRBNs: []RBN{left.RBN, target.RBN}}, nil
		}
	}

	// 3. Redistribute right.
	if target.SucceedingRBN != NilRBN {
		right, err := bf.ReadActive(target.SucceedingRBN, codec)
		if err != nil {
			return nil, err
		}
		if ok, err := tryRedistributeRight(h, target, right, rec); err != nil {
			return nil, err
		} else if ok {
			if err := bf.WriteActive(target); err != nil {
				return nil, err
			}
			if err := bf.WriteActive(right); err != nil {
				return nil, err
			}
			return &insertResult{touchedRBNs: []RBN{target.RBN, right.RBN}}, nil
		}
	}

	// 4. Split.
	return split(bf, h, codec, target, rec)
}

// tryRedistributeLeft attempts to move target's first record into left,
// then insert rec into target, per §4.5 step 2. It mutates left and target
// in place only if the move keeps both within blockSize and rec does not
// sort below target's first record (which would leave target's lowest key
// below left's new highest key); otherwise it leaves both untouched and
// returns false.
func tryRedistributeLeft(h *Header, left, target *ActiveBlock, rec Record) (bool, error) {
	if len(target.Records) == 0 {
		return false, nil
	}
	first := target.Records[0]
	if rec.PrimaryKey() < first.PrimaryKey() {
		return false, nil
	}

	leftUsed, err := usedSize(left.Records)
	if err != nil {
		return false, err
	}
	firstCost, err := recordCost(first)
	if err != nil {
		return false, err
	}
	if leftUsed+firstCost > int(h.BlockSize) {
		return false, nil
	}

	remaining := target.Records[1:]
	remainingUsed, err := usedSize(remaining)
	if err != nil {
		return false, err
	}
	recCost, err := recordCost(rec)
	if err != nil {
		return false, err
	}
	if remainingUsed+recCost > int(h.BlockSize) {
		return false, nil
	}

	left.Records = insertSorted(left.Records, first)
	target.Records = insertSorted(remaining, rec)
	return true, nil
}

// tryRedistributeRight is the mirror of tryRedistributeLeft: target's last
// record moves into right.
func tryRedistributeRight(h *Header, target, right *ActiveBlock, rec Record) (bool, error) {
	if len(target.Records) == 0 {
		return false, nil
	}
	last := target.Records[len(target.Records)-1]

	rightUsed, err := usedSize(right.Records)
	if err != nil {
		return false, err
	}
	lastCost, err := recordCost(last)
	if err != nil {
		return false, err
	}
	if rightUsed+lastCost > int(h.BlockSize) {
		return false, nil
	}

	remaining := target.Records[:len(target.Records)-1]
	remainingUsed, err := usedSize(remaining)
	if err != nil {
		return false, err
	}
	recCost, err := recordCost(rec)
	if err != nil {
		return false, err
	}
	if remainingUsed+recCost > int(h.BlockSize) {
		return false, nil
	}

	right.Records = insertSorted(right.Records, last)
	target.Records = insertSorted(remaining, rec)
	return true, nil
}

// split allocates a new block N, divides target's records (plus rec) at the
// truncating midpoint, and re-links the chain per §4.5 step 4.
func split(bf *File, h *Header, codec Codec, target *ActiveBlock, rec Record) (*insertResult, error) {
	working := insertSorted(target.Records, rec)
	mid := len(working) / 2

	newRBN, err := allocate(bf, h, codec)
	if err != nil {
		return nil, err
	}

	oldSucceeding := target.SucceedingRBN

	target.Records = working[:mid]
	target.SucceedingRBN = newRBN

	newBlock := &ActiveBlock{
		RBN:           newRBN,
		PrecedingRBN:  target.RBN,
		SucceedingRBN: oldSucceeding,
		Records:       working[mid:],
	}

	touched := []RBN{target.RBN, newRBN}

	if oldSucceeding != NilRBN {
		after, err := bf.ReadActive(oldSucceeding, codec)
		if err != nil {
			return nil, err
		}
		after.PrecedingRBN = newRBN
		if err := bf.WriteActive(after); err != nil {
			return nil, err
		}
		touched = append(touched, after.RBN)
	}

	if err := bf.WriteActive(target); err != nil {
		return nil, err
	}
	if err := bf.WriteActive(newBlock); err != nil {
		return nil, err
	}

	return &insertResult{touchedRBNs: touched, splitRBN: newRBN}, nil
}
