// Package freelist implements a fixed 0..=255 u8-range allocator (§4.12,
// §9): value 0 is reserved and never handed out, freed ids are recycled,
// and freeing an already-free id is an error.
package freelist

import "github.com/tickline/lockstep/internal/errs"

// FreeList allocates and recycles uint8 ids in [1, 255].
type FreeList struct {
	free []uint8 // stack of recycled ids, popped LIFO
	next uint16  // next never-yet-issued id; 256 once the whole range is exhausted
}

// New creates a FreeList ready to allocate starting at 1.
func New() *FreeList {
	return &FreeList{next: 1}
}

// Alloc returns a fresh id, preferring a recycled one over a never-issued
// one. Fails if the entire 1..=255 range is currently allocated.
func (f *FreeList) Alloc() (uint8, error) {
	if n := len(f.free); n > 0 {
		id := f.free[n-1]
		f.free = f.free[:n-1]
		return id, nil
	}
	if f.next > 255 {
		return 0, errs.New(errs.Critical, "freelist: exhausted, no free ids in 1..=255")
	}
	id := uint8(f.next)
	f.next++
	return id, nil
}

// Free returns id to the pool. Freeing id 0 or an id not currently
// allocated (double-free) is an error.
func (f *FreeList) Free(id uint8) error {
	if id == 0 {
		return errs.New(errs.Critical, "freelist: cannot free reserved id 0")
	}
	for _, existing := range f.free {
		if existing == id {
			return errs.New(errs.Critical, "freelist: double free of id %d", id)
		}
	}
	if uint16(id) >= f.next {
		return errs.New(errs.Critical, "freelist: free of never-allocated id %d", id)
	}
	f.free = append(f.free, id)
	return nil
}
