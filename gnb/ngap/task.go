// Package ngap runs the station's NG interface: AMF associations, UE contexts
// and the NGAP procedures the relay depends on.
package ngap

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Mmx233/RGNB/gnb/sctp"
	"github.com/Mmx233/RGNB/metrics"
	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol/ngapmsg"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
)

var (
	ErrUeNotFound  = errors.New("UE context not found")
	ErrAmfNotFound = errors.New("AMF context not found")
)

// Timer ids: NG setup timers live above setupTimerBase, release timers use the UE id.
const setupTimerBase = 1 << 30

// Peers are the tasks the NG interface talks to.
type Peers struct {
	Sctp nts.Sender
	Rrc  nts.Sender
	Gtp  nts.Sender
	App  nts.Sender
}

type Handler struct {
	t     *task.Task
	cfg   Config
	codec ngapmsg.Codec
	peers Peers

	amfs     map[int]*AmfContext
	ues      map[int]*UeContext
	byRanID  map[int64]int
	nextRan  int64
	nextTeid uint32
	isUp     bool
}

func New(t *task.Task, cfg Config, codec ngapmsg.Codec, peers Peers) *Handler {
	cfg.applyDefaults()
	if codec == nil {
		codec = ngapmsg.NewCodec()
	}
	return &Handler{
		t:       t,
		cfg:     cfg,
		codec:   codec,
		peers:   peers,
		amfs:    make(map[int]*AmfContext),
		ues:     make(map[int]*UeContext),
		byRanID: make(map[int64]int),
	}
}

func (h *Handler) logger() *zerolog.Logger {
	return h.t.Logger()
}

func (h *Handler) OnStart() {
	for i, amf := range h.cfg.Amfs {
		ctx := &AmfContext{
			CtxID:   i + 1,
			Address: amf.Address,
			Port:    amf.Port,
			State:   AmfNotConnected,
		}
		h.amfs[ctx.CtxID] = ctx
		h.peers.Sctp.Send(&nts.SctpConnectionRequest{
			ClientID:   ctx.CtxID,
			LocalAddr:  h.cfg.NgapAddr,
			RemoteAddr: amf.Address,
			RemotePort: amf.Port,
			PPID:       sctp.NgapPPID,
			Associated: h.t,
		})
	}
	h.reportAmfStates()
}

func (h *Handler) OnQuit() {
	for state := AmfNotConnected; state <= AmfConnected; state++ {
		metrics.AmfAssociations.WithLabelValues(state.String()).Set(0)
	}
}

func (h *Handler) Handle(msg nts.Message) {
	switch m := msg.(type) {
	case *nts.TimerExpired:
		h.onTimer(m.ID)
	case nts.GnbSctp:
		h.handleSctp(m)
	case nts.GnbRrcToNgap:
		h.handleRrc(m)
	case nts.GnbCommand:
		h.handleCommand(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleSctp(msg nts.GnbSctp) {
	switch m := msg.(type) {
	case *nts.SctpAssociationSetup:
		h.associationSetup(m)
	case *nts.SctpAssociationShutdown:
		h.associationShutdown(m.ClientID)
	case *nts.SctpReceiveMessage:
		h.receive(m)
	case *nts.SctpUnhandledNotification:
		h.logger().Debug().Int("amf", m.ClientID).Msg("unhandled sctp notification")
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleRrc(msg nts.GnbRrcToNgap) {
	switch m := msg.(type) {
	case *nts.RrcInitialNasDelivery:
		h.initialNas(m)
	case *nts.RrcUplinkNasDelivery:
		h.uplinkNas(m)
	case *nts.RrcRadioLinkFailure:
		h.requestRelease(m.UeID, nts.CauseRadioNetworkRadioConnLost)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleCommand(msg nts.GnbCommand) {
	switch m := msg.(type) {
	case *nts.CommandUeReleaseRequest:
		h.requestRelease(m.UeID, m.Cause)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) onTimer(id int) {
	if id >= setupTimerBase {
		h.ngSetupTimeout(id - setupTimerBase)
		return
	}
	h.releaseTimeout(id)
}

func (h *Handler) receive(m *nts.SctpReceiveMessage) {
	amf, ok := h.amfs[m.ClientID]
	if !ok {
		h.logger().Warn().Int("amf", m.ClientID).Msg("message from unknown AMF context dropped")
		return
	}

	pdu, err := h.codec.Decode(m.Buffer)
	if err != nil {
		h.logger().Error().Err(err).Int("amf", amf.CtxID).Msg("NGAP codec error")
		return
	}

	if amf.State != AmfConnected {
		switch pdu.(type) {
		case *ngapmsg.NGSetupResponse, *ngapmsg.NGSetupFailure:
		default:
			h.logger().Warn().Int("amf", amf.CtxID).Str("state", amf.State.String()).
				Str("pdu", fmt.Sprintf("%T", pdu)).Msg("message received before NG setup completed")
			return
		}
	}

	switch p := pdu.(type) {
	case *ngapmsg.NGSetupResponse:
		h.ngSetupResponse(amf, p)
	case *ngapmsg.NGSetupFailure:
		h.ngSetupFailure(amf, p)
	case *ngapmsg.OverloadStart:
		amf.OverloadInfo = OverloadInfo{Overloaded: true, Since: timeNow()}
		h.logger().Warn().Int("amf", amf.CtxID).Msg("AMF overload started")
	case *ngapmsg.OverloadStop:
		amf.OverloadInfo = OverloadInfo{}
		h.logger().Info().Int("amf", amf.CtxID).Msg("AMF overload stopped")
	case *ngapmsg.DownlinkNASTransport:
		h.downlinkNas(amf, p)
	case *ngapmsg.InitialContextSetupRequest:
		h.initialContextSetup(amf, p)
	case *ngapmsg.PDUSessionResourceSetupRequest:
		h.sessionSetup(amf, p)
	case *ngapmsg.PDUSessionResourceReleaseCommand:
		h.sessionRelease(amf, p)
	case *ngapmsg.UEContextReleaseCommand:
		h.releaseCommand(amf, p)
	default:
		h.logger().Error().Int("amf", amf.CtxID).Str("pdu", fmt.Sprintf("%T", pdu)).
			Msg("NGAP protocol error: unexpected message from AMF")
	}
}

// send encodes pdu and queues it on the association of amf.
func (h *Handler) send(amf *AmfContext, stream int, pdu ngapmsg.Message) {
	buf, err := h.codec.Encode(pdu)
	if err != nil {
		h.logger().Error().Err(err).Int("amf", amf.CtxID).Msg("NGAP codec error")
		return
	}
	if !ngapmsg.UeAssociated(pdu) || h.cfg.IgnoreStreamIDs {
		stream = 0
	}
	h.peers.Sctp.Send(&nts.SctpSendMessage{ClientID: amf.CtxID, Stream: stream, Buffer: buf})
}

func (h *Handler) sendUe(ue *UeContext, pdu ngapmsg.Message) {
	amf, ok := h.amfs[ue.AssociatedAmf]
	if !ok {
		h.logger().Error().Int("ue", ue.CtxID).Int("amf", ue.AssociatedAmf).Msg("UE bound to a missing AMF context")
		return
	}
	h.send(amf, ue.UplinkStream, pdu)
}

func (h *Handler) reportAmfStates() {
	counts := make(map[AmfState]int, 3)
	for _, amf := range h.amfs {
		counts[amf.State]++
	}
	for state := AmfNotConnected; state <= AmfConnected; state++ {
		metrics.AmfAssociations.WithLabelValues(state.String()).Set(float64(counts[state]))
	}
}

// AmfList is safe only while the task is paused.
func (h *Handler) AmfList() []AmfSummary {
	out := make([]AmfSummary, 0, len(h.amfs))
	for _, amf := range h.amfs {
		out = append(out, summarizeAmf(amf))
	}
	slices.SortFunc(out, func(a, b AmfSummary) int { return a.ID - b.ID })
	return out
}

// AmfInfo is safe only while the task is paused.
func (h *Handler) AmfInfo(id int) (AmfDetail, error) {
	amf, ok := h.amfs[id]
	if !ok {
		return AmfDetail{}, fmt.Errorf("%w: %d", ErrAmfNotFound, id)
	}
	detail := AmfDetail{
		AmfSummary:       summarizeAmf(amf),
		Name:             amf.Name,
		RelativeCapacity: amf.RelativeCapacity,
		Overloaded:       amf.OverloadInfo.Overloaded,
	}
	for _, g := range amf.ServedGuamis {
		detail.ServedGuamis = append(detail.ServedGuamis,
			fmt.Sprintf("%s-%d-%d-%d", g.Plmn, g.RegionID, g.SetID, g.AmfPointer))
	}
	for _, s := range amf.PlmnSupport {
		detail.PlmnSupport = append(detail.PlmnSupport, s.Plmn.String())
	}
	return detail, nil
}

// UeList is safe only while the task is paused.
func (h *Handler) UeList() []UeSummary {
	out := make([]UeSummary, 0, len(h.ues))
	for _, ue := range h.ues {
		psis := make([]int, 0, len(ue.PduSessions))
		for psi := range ue.PduSessions {
			psis = append(psis, psi)
		}
		slices.Sort(psis)
		out = append(out, UeSummary{
			UeID:        ue.CtxID,
			RanUeNgapID: ue.RanUeNgapID,
			AmfUeNgapID: ue.AmfUeNgapID,
			AmfCtxID:    ue.AssociatedAmf,
			PduSessions: psis,
		})
	}
	slices.SortFunc(out, func(a, b UeSummary) int { return a.UeID - b.UeID })
	return out
}

func (h *Handler) UeCount() int {
	return len(h.ues)
}

func (h *Handler) HasUe(ueID int) bool {
	_, ok := h.ues[ueID]
	return ok
}

func summarizeAmf(amf *AmfContext) AmfSummary {
	return AmfSummary{ID: amf.CtxID, Address: amf.Address, Port: amf.Port, State: amf.State.String()}
}
