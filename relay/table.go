// Package relay bridges NAS payloads between the device RRC task and the
// station RRC task. It owns the correlation table, the only structure that
// knows both the device-side handle and the station-side identifier pair of a
// subscriber. Payload bytes are moved through untouched.
package relay

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Mmx233/RGNB/metrics"
	"github.com/Mmx233/RGNB/nts"
	"github.com/rs/zerolog"
)

type (
	Handle     = nts.Handle
	StationIDs = nts.UeNgapIDs
)

var (
	ErrNotFound        = errors.New("correlation not found")
	ErrReleased        = errors.New("correlation released")
	ErrAlreadyAssigned = errors.New("station identifiers already assigned")
	ErrNotAssigned     = errors.New("station identifiers not assigned")
)

// Entry is one row of the correlation table.
type Entry struct {
	Handle   Handle
	Ids      StationIDs
	Assigned bool
}

// Table is guarded as a whole so that both lookup directions always agree.
// Handles are issued in increasing order and removed only by a release, so
// every issued handle that is no longer live is a released one.
type Table struct {
	mu        sync.Mutex
	byHandle  map[Handle]*Entry
	byStation map[StationIDs]*Entry
	last      Handle

	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Table {
	return &Table{
		byHandle:  make(map[Handle]*Entry),
		byStation: make(map[StationIDs]*Entry),
		logger:    logger.With().Str("com", "relay").Logger(),
	}
}

// InitialUplink opens a correlation for the first NAS PDU of a device session
// and returns the initial delivery for the station stack.
func (t *Table) InitialUplink(pdu []byte) *nts.BridgeInitialNas {
	t.mu.Lock()
	t.last++
	h := t.last
	t.byHandle[h] = &Entry{Handle: h}
	n := len(t.byHandle)
	t.mu.Unlock()

	metrics.RelayCorrelations.Set(float64(n))
	metrics.RelayForwards.WithLabelValues("initial-uplink").Inc()
	t.logger.Debug().Uint32("handle", uint32(h)).Int("size", len(pdu)).Msg("correlation opened")
	return &nts.BridgeInitialNas{Handle: h, Pdu: pdu}
}

// Assign records the station identifiers chosen for h. Assigning the same pair
// again is accepted; a different pair is rejected.
func (t *Table) Assign(h Handle, ids StationIDs) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.lookupLocked(h)
	if err != nil {
		return err
	}
	if e.Assigned {
		if e.Ids == ids {
			return nil
		}
		return fmt.Errorf("handle %d holds %s, refusing %s: %w", h, e.Ids, ids, ErrAlreadyAssigned)
	}
	if other, taken := t.byStation[ids]; taken {
		return fmt.Errorf("%s belongs to handle %d: %w", ids, other.Handle, ErrAlreadyAssigned)
	}
	e.Ids = ids
	e.Assigned = true
	t.byStation[ids] = e
	t.logger.Debug().Uint32("handle", uint32(h)).Stringer("ids", ids).Msg("station identifiers assigned")
	return nil
}

// SubsequentUplink forwards a NAS PDU of an established session. A released
// handle is a layering bug upstream and is rejected, never dropped.
func (t *Table) SubsequentUplink(h Handle, pdu []byte) (*nts.BridgeUplinkNas, error) {
	t.mu.Lock()
	e, err := t.lookupLocked(h)
	var msg *nts.BridgeUplinkNas
	if err == nil {
		msg = &nts.BridgeUplinkNas{Handle: h, Ids: e.Ids, Pdu: pdu}
		if !e.Assigned {
			msg.Ids = StationIDs{AmfUeNgapID: -1}
		}
	}
	t.mu.Unlock()

	if err != nil {
		t.reject(err)
		return nil, fmt.Errorf("uplink on handle %d: %w", h, err)
	}
	metrics.RelayForwards.WithLabelValues("uplink").Inc()
	return msg, nil
}

// Downlink forwards a NAS PDU addressed by station identifiers to the device side.
func (t *Table) Downlink(ids StationIDs, pdu []byte) (*nts.BridgeDownlinkNas, error) {
	t.mu.Lock()
	e, ok := t.byStation[ids]
	var h Handle
	if ok {
		h = e.Handle
	}
	t.mu.Unlock()

	if !ok {
		t.reject(ErrNotFound)
		return nil, fmt.Errorf("downlink for %s: %w", ids, ErrNotFound)
	}
	metrics.RelayForwards.WithLabelValues("downlink").Inc()
	return &nts.BridgeDownlinkNas{Handle: h, Pdu: pdu}, nil
}

// ReleaseHandle removes the correlation of h. Releasing an unknown handle is a no-op.
func (t *Table) ReleaseHandle(h Handle) (StationIDs, bool) {
	t.mu.Lock()
	e, ok := t.byHandle[h]
	if ok {
		t.removeLocked(e)
	}
	n := len(t.byHandle)
	t.mu.Unlock()

	if !ok {
		return StationIDs{}, false
	}
	metrics.RelayCorrelations.Set(float64(n))
	t.logger.Debug().Uint32("handle", uint32(h)).Msg("correlation released")
	return e.Ids, true
}

// ReleaseStation removes the correlation holding ids. A station release that
// races with a device release finds nothing and is a no-op.
func (t *Table) ReleaseStation(ids StationIDs) (Handle, bool) {
	t.mu.Lock()
	e, ok := t.byStation[ids]
	if ok {
		t.removeLocked(e)
	}
	n := len(t.byHandle)
	t.mu.Unlock()

	if !ok {
		return 0, false
	}
	metrics.RelayCorrelations.Set(float64(n))
	t.logger.Debug().Uint32("handle", uint32(e.Handle)).Stringer("ids", ids).Msg("correlation released by station")
	return e.Handle, true
}

// Lookup returns the station identifiers of h.
func (t *Table) Lookup(h Handle) (StationIDs, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.lookupLocked(h)
	if err != nil {
		return StationIDs{}, err
	}
	if !e.Assigned {
		return StationIDs{}, ErrNotAssigned
	}
	return e.Ids, nil
}

// LookupStation returns the handle correlated with ids.
func (t *Table) LookupStation(ids StationIDs) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byStation[ids]
	if !ok {
		return 0, ErrNotFound
	}
	return e.Handle, nil
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHandle)
}

// Entries returns a copy of the table ordered by handle.
func (t *Table) Entries() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.byHandle))
	for _, e := range t.byHandle {
		out = append(out, *e)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (t *Table) lookupLocked(h Handle) (*Entry, error) {
	if e, ok := t.byHandle[h]; ok {
		return e, nil
	}
	if h != 0 && h <= t.last {
		return nil, ErrReleased
	}
	return nil, ErrNotFound
}

func (t *Table) removeLocked(e *Entry) {
	delete(t.byHandle, e.Handle)
	if e.Assigned {
		delete(t.byStation, e.Ids)
	}
}

func (t *Table) reject(err error) {
	reason := "not-found"
	if errors.Is(err, ErrReleased) {
		reason = "released"
	}
	metrics.RelayRejects.WithLabelValues(reason).Inc()
	t.logger.Error().Err(err).Msg("relay rejected payload")
}
