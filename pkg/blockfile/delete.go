package blockfile

// deleteResult reports which RBNs were structurally touched, and whether a
// block was freed back to the available list, so the caller can refresh or
// drop block-index entries accordingly.
type deleteResult struct {
	touchedRBNs  []RBN // blocks written in place; caller must refresh index entries
	freedRBN     RBN   // NilRBN unless a merge or an empty sole block freed a block
	emptiedChain bool  // true if the whole active chain is now empty
}

// removeRecord deletes the record with key from the block at targetRBN,
// then restores the minimum-occupancy invariant of §3.4 by attempting
// borrow-left, borrow-right, and finally merge (preferring the left
// neighbor), per §4.6. If none of those apply the block is left underfull,
// which is an acceptable steady state.
func removeRecord(bf *File, h *Header, codec Codec, targetRBN RBN, key uint32) (*deleteResult, error) {
	target, err := bf.ReadActive(targetRBN, codec)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, rec := range target.Records {
		if rec.PrimaryKey() == key {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, newKeyErr("Remove", key, KindNotFound, nil)
	}
	target.Records = append(append([]Record{}, target.Records[:idx]...), target.Records[idx+1:]...)

	if len(target.Records) == 0 && target.PrecedingRBN == NilRBN && target.SucceedingRBN == NilRBN {
		// The last record in the whole chain was just removed. recordCount=0
		// means AvailBlock under the tagged-sum format, so this slot must be
		// freed rather than written back as an empty ActiveBlock.
		if err := free(bf, h, target.RBN); err != nil {
			return nil, err
		}
		return &deleteResult{freedRBN: target.RBN, emptiedChain: true}, nil
	}

	used, err := usedSize(target.Records)
	if err != nil {
		return nil, err
	}
	if used >= int(h.MinBlockSize) {
		if err := bf.WriteActive(target); err != nil {
			return nil, err
		}
		return &deleteResult{touchedRBNs: []RBN{target.RBN}}, nil
	}

	// Borrow left.
	if target.PrecedingRBN != NilRBN {
		left, err := bf.ReadActive(target.PrecedingRBN, codec)
		if err != nil {
			return nil, err
		}
		if ok, err := tryBorrowLeft(h, left, target); err != nil {
			return nil, err
		} else if ok {
			if err := bf.WriteActive(left); err != nil {
				return nil, err
			}
			if err := bf.WriteActive(target); err != nil {
				return nil, err
			}
			return &deleteResult{touchedRBNs: []RBN{left.RBN, target.RBN}}, nil
		}
	}

	// Borrow right.
	if target.SucceedingRBN != NilRBN {
		right, err := bf.ReadActive(target.SucceedingRBN, codec)
		if err != nil {
			return nil, err
		}
		if ok, err := tryBorrowRight(h, target, right); err != nil {
			return nil, err
		} else if ok {
			if err := bf.WriteActive(target); err != nil {
				return nil, err
			}
			if err := bf.WriteActive(right); err != nil {
				return nil, err
			}
			return &deleteResult{touchedRBNs: []RBN{target.RBN, right.RBN}}, nil
		}
	}

	// Merge, preferring the left neighbor.
	if target.PrecedingRBN != NilRBN {
		left, err := bf.ReadActive(target.PrecedingRBN, codec)
		if err != nil {
			return nil, err
		}
		if ok, err := fits(h, left.Records, target.Records); err != nil {
			return nil, err
		} else if ok {
			return mergeInto(bf, h, codec, left, target)
		}
	}
	if target.SucceedingRBN != NilRBN {
		right, err := bf.ReadActive(target.SucceedingRBN, codec)
		if err != nil {
			return nil, err
		}
		if ok, err := fits(h, target.Records, right.Records); err != nil {
			return nil, err
		} else if ok {
			return mergeInto(bf, h, codec, target, right)
		}
	}

	// No neighbor can help: leave target underfull.
	if err := bf.WriteActive(target); err != nil {
		return nil, err
	}
	return &deleteResult{touchedRBNs: []RBN{target.RBN}}, nil
}

// tryBorrowLeft moves left's last record into target, and repeats for as
// long as target is still below minBlockSize, moving the new last record
// keeps left at or above minBlockSize, and target does not overflow, per
// §4.6 step 4a. A single loan is not guaranteed to restore the floor when
// records vary in size, so the move must be a loop, not a one-shot transfer.
func tryBorrowLeft(h *Header, left, target *ActiveBlock) (bool, error) {
	moved := false
	for len(left.Records) > 0 {
		targetUsed, err := usedSize(target.Records)
		if err != nil {
			return false, err
		}
		if targetUsed >= int(h.MinBlockSize) {
			break
		}

		last := left.Records[len(left.Records)-1]
		remaining := left.Records[:len(left.Records)-1]

		remainingUsed, err := usedSize(remaining)
		if err != nil {
			return false, err
		}
		if remainingUsed < int(h.MinBlockSize) {
			break
		}

		lastCost, err := recordCost(last)
		if err != nil {
			return false, err
		}
		if targetUsed+lastCost > int(h.BlockSize) {
			break
		}

		left.Records = remaining
		target.Records = insertSorted(target.Records, last)
		moved = true
	}
	return moved, nil
}

// tryBorrowRight moves right's first record into target, looping until
// target reaches minBlockSize or no further record can be lent, mirroring
// tryBorrowLeft per §4.6 step 4b.
func tryBorrowRight(h *Header, target, right *ActiveBlock) (bool, error) {
	moved := false
	for len(right.Records) > 0 {
		targetUsed, err := usedSize(target.Records)
		if err != nil {
			return false, err
		}
		if targetUsed >= int(h.MinBlockSize) {
			break
		}

		first := right.Records[0]
		remaining := right.Records[1:]

		remainingUsed, err := usedSize(remaining)
		if err != nil {
			return false, err
		}
		if remainingUsed < int(h.MinBlockSize) {
			break
		}

		firstCost, err := recordCost(first)
		if err != nil {
			return false, err
		}
		if targetUsed+firstCost > int(h.BlockSize) {
			break
		}

		right.Records = remaining
		target.Records = insertSorted(target.Records, first)
		moved = true
	}
	return moved, nil
}

// fits reports whether the combined records of a left/right pair would fit
// within a single block.
func fits(h *Header, left, right []Record) (bool, error) {
	leftUsed, err := usedSize(left)
	if err != nil {
		return false, err
	}
	rightPayload, err := usedSize(right)
	if err != nil {
		return false, err
	}
	combined := leftUsed + (rightPayload - ActiveMetaSize)
	return combined <= int(h.BlockSize), nil
}

// mergeInto folds survivor's records into keep, re-links the chain around
// survivor, and frees survivor's RBN, per §4.6 step 4.
func mergeInto(bf *File, h *Header, codec Codec, keep, survivor *ActiveBlock) (*deleteResult, error) {
	merged := make([]Record, 0, len(keep.Records)+len(survivor.Records))
	merged = append(merged, keep.Records...)
	merged = append(merged, survivor.Records...)
	keep.Records = merged
	keep.SucceedingRBN = survivor.SucceedingRBN

	touched := []RBN{keep.RBN}

	if survivor.SucceedingRBN != NilRBN {
		after, err := bf.ReadActive(survivor.SucceedingRBN, codec)
		if err != nil {
			return nil, err
		}
		after.PrecedingRBN = keep.RBN
		if err := bf.WriteActive(after); err != nil {
			return nil, err
		}
		touched = append(touched, after.RBN)
	}

	if err := bf.WriteActive(keep); err != nil {
		return nil, err
	}

	if h.SequenceSetHead == survivor.RBN {
		h.SequenceSetHead = keep.RBN
	}

	if err := free(bf, h, survivor.RBN); err != nil {
		return nil, err
	}

	return &deleteResult{touchedRBNs: touched, freedRBN: survivor.RBN}, nil
}
