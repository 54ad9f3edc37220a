package catalog

// CopyToROM implements the page-buffered streaming copy-to-ROM writer of
// spec.md §4.8. Callers stream a feature's image in arbitrarily sized
// chunks after AllocateFeature has erased and reserved its slot; CopyToROM
// buffers each chunk into whole pages and only calls PageWrite once a page
// fills, carrying any partial tail over to the next call. A destination
// that does not continue where the previous call left off (a gap, or the
// start of a new feature's image) flushes whatever was buffered first.
//
// Content is fed through a running xxhash digest as it is buffered, purely
// as an in-memory diagnostic for the demo binary and tests — it is not
// part of the persisted format and is never read back from flash.
func (c *Catalog) CopyToROM(dest uint32, src []byte) error {
	if err := c.validateROMRange(dest, uint32(len(src))); err != nil {
		return err
	}

	return c.streamCopy(dest, src)
}

// FlushCopyToROM implements spec.md §4.8a: it programs whatever partial
// page CopyToROM is still carrying, then clears the carry-over state. It is
// a no-op if no stream is pending. Callers must call it after the last
// CopyToROM call of a feature's install — otherwise that feature's final
// partial page is never written.
func (c *Catalog) FlushCopyToROM() error {
	if !c.pending {
		return nil
	}

	return c.flushPendingPage()
}

// StreamDigest returns the running xxhash64 digest of every byte streamed
// through CopyToROM so far. It exists for diagnostics and tests, not as
// part of the on-flash contract.
func (c *Catalog) StreamDigest() uint64 {
	return c.streamDigest.Sum64()
}

func (c *Catalog) validateROMRange(dest, length uint32) error {
	if dest < c.ctrl.KFStart() || dest+length > c.ctrl.KFEnd() {
		return wrapErr("catalog.CopyToROM", ErrROMRangeOutOfKF)
	}

	slotSize := c.geometry.SlotSize()
	if slotSize == 0 {
		return wrapErr("catalog.CopyToROM", ErrROMRangeOutOfKF)
	}

	slotIndex := (dest - c.ctrl.KFStart()) / slotSize
	slotEnd := c.ctrl.KFStart() + slotIndex*slotSize + slotSize

	if dest+length > slotEnd {
		return wrapErr("catalog.CopyToROM", ErrROMRangeCrossesSlot)
	}

	return nil
}

func (c *Catalog) streamCopy(dest uint32, src []byte) error {
	pageSize := c.ctrl.PageSize()

	if !c.pending {
		if err := c.beginPage(dest); err != nil {
			return err
		}
	} else if dest != c.targetPageAddress+c.writeBufferOffset {
		if err := c.flushPendingPage(); err != nil {
			return err
		}

		if err := c.beginPage(dest); err != nil {
			return err
		}
	}

	for len(src) > 0 {
		room := pageSize - c.writeBufferOffset
		n := uint32(len(src))
		if n > room {
			n = room
		}

		copy(c.pageBuf[c.writeBufferOffset:c.writeBufferOffset+n], src[:n])
		c.streamDigest.Write(src[:n])

		c.writeBufferOffset += n
		src = src[n:]

		if c.writeBufferOffset == pageSize {
			if err := c.flushPendingPage(); err != nil {
				return err
			}

			if err := c.beginPage(c.targetPageAddress + pageSize); err != nil {
				return err
			}
		}
	}

	return nil
}

// beginPage starts buffering a new page-aligned write at the page
// containing dest. Whenever dest falls mid-page (a header sharing the page
// with the start of a feature's ROM content, say), the bytes before dest's
// offset are read back from flash via Controller.Read and preserved
// verbatim, matching the original's read-back-on-nonzero-buffer_offset
// behavior: flushPendingPage always programs the full page, so any byte it
// doesn't mean to change still has to be a byte it already knows. Bytes at
// or after dest's offset are left at the erased pattern to be filled in by
// the caller's stream, or left erased if the feature's image ends mid-page.
//
// The read happens through the memory-mapped window, so it requires mmap
// already enabled — true of the steady state between CopyToROM calls, since
// flushPendingPage always re-enables it before returning.
func (c *Catalog) beginPage(dest uint32) error {
	c.targetPageAddress = c.ctrl.PageBase(dest)
	c.pageStartOffset = dest - c.targetPageAddress
	c.writeBufferOffset = c.pageStartOffset

	for i := range c.pageBuf {
		c.pageBuf[i] = 0xFF
	}

	if c.pageStartOffset != 0 {
		pageSize := c.ctrl.PageSize()

		existing, err := c.ctrl.Read(c.targetPageAddress, int(pageSize))
		if err != nil {
			return wrapErr("catalog.CopyToROM", ErrFlashReadFailed)
		}

		copy(c.pageBuf[:c.pageStartOffset], existing[:c.pageStartOffset])
	}

	c.pending = true

	return nil
}

// flushPendingPage programs the whole of the page currently buffered, from
// its page-aligned base, per the Controller contract's requirement that
// PageWrite's addr be page-aligned — never the non-page-aligned sub-range
// that dest itself may have started at. The write is bracketed with its own
// mmap disable/enable, matching the bracketing discipline of spec.md §5,
// so mmap is back enabled by the time a later beginPage needs to read.
func (c *Catalog) flushPendingPage() error {
	if !c.pending || c.writeBufferOffset == c.pageStartOffset {
		c.pending = false
		c.writeBufferOffset = 0
		c.pageStartOffset = 0

		return nil
	}

	pageSize := int(c.ctrl.PageSize())
	addr := c.targetPageAddress
	buf := c.pageBuf[:pageSize]

	err := c.withMMapDisabled(func() error {
		if err := c.ctrl.PageWrite(buf, addr, pageSize); err != nil {
			return wrapErr("catalog.CopyToROM", ErrFlashWriteFailed)
		}

		return nil
	})

	c.pending = false
	c.writeBufferOffset = 0
	c.pageStartOffset = 0

	return err
}
