package shared

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Locked guards a single value with its own mutex. Values are copied in and out,
// callers that need read-modify-write semantics use Mutate.
type Locked[T any] struct {
	mu    sync.Mutex
	value T
}

func (l *Locked[T]) Get() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

func (l *Locked[T]) Set(value T) {
	l.mu.Lock()
	l.value = value
	l.mu.Unlock()
}

// Mutate runs fn with exclusive access to the value.
func (l *Locked[T]) Mutate(fn func(value *T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.value)
}

// Context holds the fields of the device stack that more than one task touches.
// Each field synchronizes itself; there is no lock covering several fields.
//
//	AvailablePlmns       written by RRC (cell reports), read by NAS
//	SelectedPlmn         written by NAS, read by RRC cell selection
//	CurrentCell          written by RRC, read by NAS and the command layer
//	ForbiddenTaiRoaming  written by NAS, read by RRC cell selection
//	ForbiddenTaiRps      written by NAS, read by RRC cell selection
//	ProvidedGuti         written by NAS, read by RRC and the command layer
//	ProvidedTmsi         written by NAS, read by RRC
//	KeyingCounter        incremented by NAS
//	Sti                  renewed by link layer on RRC request
type Context struct {
	AvailablePlmns      Locked[[]Plmn]
	SelectedPlmn        Locked[Plmn]
	CurrentCell         Locked[ActiveCellInfo]
	ForbiddenTaiRoaming Locked[[]Tai]
	ForbiddenTaiRps     Locked[[]Tai]
	ProvidedGuti        Locked[[]byte]
	ProvidedTmsi        Locked[[]byte]

	KeyingCounter atomic.Uint32
	Sti           atomic.Uint64
}

// NewContext creates the context with the home PLMN preselected.
func NewContext(hplmn Plmn) *Context {
	c := &Context{}
	c.SelectedPlmn.Set(hplmn)
	return c
}

// IsForbidden reports whether the tracking area appears in either forbidden list.
func (c *Context) IsForbidden(tai Tai) bool {
	forbidden := false
	c.ForbiddenTaiRoaming.Mutate(func(list *[]Tai) {
		forbidden = slices.Contains(*list, tai)
	})
	if forbidden {
		return true
	}
	c.ForbiddenTaiRps.Mutate(func(list *[]Tai) {
		forbidden = slices.Contains(*list, tai)
	})
	return forbidden
}

// AddAvailablePlmn records a PLMN seen on the radio, ignoring duplicates.
func (c *Context) AddAvailablePlmn(plmn Plmn) {
	c.AvailablePlmns.Mutate(func(list *[]Plmn) {
		if !slices.Contains(*list, plmn) {
			*list = append(*list, plmn)
		}
	})
}
