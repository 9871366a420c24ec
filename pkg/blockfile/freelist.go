package blockfile

// allocate pops an RBN from the available-list head, or extends the file by
// one slot if the list is empty, per §4.4. It mutates h.AvailableListHead
// and h.BlockCount in place and returns the RBN now usable by the caller;
// the returned slot's contents are undefined until the caller writes it.
func allocate(bf *File, h *Header, codec Codec) (RBN, error) {
	if h.AvailableListHead != NilRBN {
		head := h.AvailableListHead
		b, err := bf.ReadBlock(head, codec)
		if err != nil {
			return NilRBN, err
		}
		if b.Avail == nil {
			return NilRBN, newErr("allocate", head, KindCorruptedChain, nil)
		}
		h.AvailableListHead = b.Avail.NextAvailRBN
		return head, nil
	}
	h.BlockCount++
	return RBN(h.BlockCount), nil
}

// free pushes rbn onto the available list, per §4.4. The caller must have
// already re-linked rbn's active-chain neighbors before calling free.
func free(bf *File, h *Header, rbn RBN) error {
	avail := &AvailBlock{RBN: rbn, NextAvailRBN: h.AvailableListHead}
	if err := bf.WriteAvail(avail); err != nil {
		return err
	}
	h.AvailableListHead = rbn
	return nil
}
