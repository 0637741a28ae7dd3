// Package nas runs the device mobility management task. It registers the
// subscriber through the relay and tracks registration and connection state.
// NAS security is not implemented: protected messages are logged and dropped.
package nas

import (
	"encoding/hex"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/free5gc/nas"
	"github.com/rs/zerolog"
)

const (
	timerRetry = 1
	timerGuard = 2

	DefaultRetryInterval = 10 * time.Second
	DefaultGuardInterval = 15 * time.Second

	causeTaNotAllowed          = 12
	causeRoamingNotAllowedInTa = 13
)

type RmState int32

const (
	RmDeregistered RmState = iota
	RmRegistered
)

func (s RmState) String() string {
	switch s {
	case RmDeregistered:
		return "RM-DEREGISTERED"
	case RmRegistered:
		return "RM-REGISTERED"
	default:
		return "unknown"
	}
}

type CmState int32

const (
	CmIdle CmState = iota
	CmConnected
)

func (s CmState) String() string {
	switch s {
	case CmIdle:
		return "CM-IDLE"
	case CmConnected:
		return "CM-CONNECTED"
	default:
		return "unknown"
	}
}

type procedure int

const (
	procNone procedure = iota
	procRegistration
	procDeregistration
)

type Config struct {
	Supi       string
	Hplmn      shared.Plmn
	Algorithms Algorithms

	RetryInterval time.Duration
	GuardInterval time.Duration
}

// Status is the mobility management view shown to operators.
type Status struct {
	Rm   string `json:"rm-state"`
	Cm   string `json:"cm-state"`
	Guti string `json:"guti,omitempty"`
}

type Handler struct {
	t   *task.Task
	cfg Config
	ctx *shared.Context
	rrc nts.Sender

	rm        atomic.Int32
	cm        atomic.Int32
	procedure procedure
	nextPduID uint32
}

func New(t *task.Task, cfg Config, ctx *shared.Context, rrc nts.Sender) *Handler {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.GuardInterval <= 0 {
		cfg.GuardInterval = DefaultGuardInterval
	}
	return &Handler{t: t, cfg: cfg, ctx: ctx, rrc: rrc}
}

func (h *Handler) logger() *zerolog.Logger {
	return h.t.Logger()
}

func (h *Handler) OnStart() {}
func (h *Handler) OnQuit()  {}

func (h *Handler) Handle(msg nts.Message) {
	switch m := msg.(type) {
	case *nts.TimerExpired:
		h.onTimer(m.ID)
	case nts.UeRrcToNas:
		h.handleRrc(m)
	case nts.UeNasToNas:
		h.handleCommand(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) onTimer(id int) {
	switch id {
	case timerRetry:
		h.tryRegister()
	case timerGuard:
		if h.procedure == procRegistration {
			h.logger().Warn().Msg("registration not answered, will retry")
			h.procedure = procNone
			h.t.ArmTimer(timerRetry, h.cfg.RetryInterval)
		} else if h.procedure == procDeregistration {
			h.logger().Warn().Msg("deregistration not answered, releasing locally")
			h.deregistered()
		}
	}
}

func (h *Handler) handleRrc(msg nts.UeRrcToNas) {
	switch m := msg.(type) {
	case *nts.RrcActiveCellChanged:
		h.logger().Debug().Stringer("previous-tai", m.PreviousTai).Msg("active cell changed")
		h.tryRegister()
	case *nts.RrcConnectionSetup:
		h.setCm(CmConnected)
	case *nts.RrcConnectionRelease:
		h.setCm(CmIdle)
		h.abortProcedure()
	case *nts.RrcEstablishmentFailure:
		h.logger().Warn().Msg("RRC establishment failed")
		h.abortProcedure()
	case *nts.RrcRadioLinkFailureNotify:
		h.logger().Warn().Stringer("cause", m.Cause).Msg("radio link failure indicated")
		h.setCm(CmIdle)
		h.abortProcedure()
	case *nts.RrcNasDelivery:
		h.receive(m.Pdu)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleCommand(msg nts.UeNasToNas) {
	switch m := msg.(type) {
	case *nts.NasRegister:
		h.tryRegister()
	case *nts.NasDeregister:
		h.deregister(m.SwitchOff)
	default:
		h.t.Unhandled(msg)
	}
}

// abortProcedure ends a pending procedure that lost its connection.
func (h *Handler) abortProcedure() {
	switch h.procedure {
	case procRegistration:
		h.procedure = procNone
		h.t.CancelTimer(timerGuard)
		h.t.ArmTimer(timerRetry, h.cfg.RetryInterval)
	case procDeregistration:
		h.deregistered()
	}
}

func (h *Handler) tryRegister() {
	if h.RmState() == RmRegistered || h.procedure != procNone {
		return
	}
	if !h.ctx.CurrentCell.Get().HasValue() {
		h.logger().Debug().Msg("registration deferred, no active cell")
		return
	}
	suci, err := EncodeSuci(h.cfg.Supi, h.cfg.Hplmn)
	if err != nil {
		h.logger().Error().Err(err).Msg("cannot build subscription concealed identifier")
		return
	}
	pdu, err := BuildRegistrationRequest(suci, h.cfg.Algorithms)
	if err != nil {
		h.logger().Error().Err(err).Msg("cannot encode registration request")
		return
	}
	counter := h.ctx.KeyingCounter.Add(1)
	h.procedure = procRegistration
	h.t.CancelTimer(timerRetry)
	h.t.ArmTimer(timerGuard, h.cfg.GuardInterval)
	h.logger().Info().Uint32("attempt", counter).Msg("sending initial registration")
	h.send(pdu)
}

func (h *Handler) deregister(switchOff bool) {
	if h.RmState() == RmDeregistered {
		h.logger().Debug().Msg("already deregistered")
		return
	}
	identity := h.ctx.ProvidedGuti.Get()
	if len(identity) == 0 {
		var err error
		if identity, err = EncodeSuci(h.cfg.Supi, h.cfg.Hplmn); err != nil {
			h.logger().Error().Err(err).Msg("cannot build subscription concealed identifier")
			return
		}
	}
	pdu, err := BuildDeregistrationRequest(identity, switchOff)
	if err != nil {
		h.logger().Error().Err(err).Msg("cannot encode deregistration request")
		return
	}
	h.logger().Info().Bool("switch-off", switchOff).Msg("sending deregistration")
	h.send(pdu)
	if switchOff {
		h.deregistered()
		return
	}
	h.procedure = procDeregistration
	h.t.ArmTimer(timerGuard, h.cfg.GuardInterval)
}

// deregistered moves to RM-DEREGISTERED and drops the connection.
func (h *Handler) deregistered() {
	h.procedure = procNone
	h.t.CancelTimer(timerGuard)
	h.setRm(RmDeregistered)
	h.ctx.ProvidedGuti.Set(nil)
	h.ctx.ProvidedTmsi.Set(nil)
	h.rrc.Send(&nts.NasLocalReleaseConnection{})
}

func (h *Handler) send(pdu []byte) {
	h.nextPduID++
	h.rrc.Send(&nts.NasUplinkDelivery{PduID: h.nextPduID, Pdu: pdu})
}

func (h *Handler) receive(pdu []byte) {
	if IsSecurityProtected(pdu) {
		h.logger().Warn().Msg("security protected NAS message ignored")
		return
	}
	m, err := DecodePlain(pdu)
	if err != nil {
		h.logger().Error().Err(err).Msg("NAS codec error")
		return
	}
	if m.GmmMessage == nil {
		h.logger().Warn().Msg("session management message ignored")
		return
	}

	switch msgType := m.GmmHeader.GetMessageType(); msgType {
	case nas.MsgTypeRegistrationAccept:
		h.registrationAccept(m)
	case nas.MsgTypeRegistrationReject:
		cause := m.GmmMessage.RegistrationReject.Cause5GMM.GetCauseValue()
		h.registrationReject(cause)
	case nas.MsgTypeDeregistrationAcceptUEOriginatingDeregistration:
		if h.procedure != procDeregistration {
			h.logger().Warn().Msg("unexpected deregistration accept")
		}
		h.logger().Info().Msg("deregistration accepted")
		h.deregistered()
	case nas.MsgTypeDeregistrationRequestUETerminatedDeregistration:
		h.logger().Info().Msg("network initiated deregistration")
		if accept, err := BuildDeregistrationAccept(); err == nil {
			h.send(accept)
		}
		h.deregistered()
	default:
		h.logger().Warn().Uint8("type", msgType).Msg("unsupported NAS message ignored")
	}
}

func (h *Handler) registrationAccept(m *nas.Message) {
	if h.procedure != procRegistration {
		h.logger().Warn().Msg("registration accept without a pending registration")
	}
	h.procedure = procNone
	h.t.CancelTimer(timerGuard)
	h.t.CancelTimer(timerRetry)

	accept := m.GmmMessage.RegistrationAccept
	if accept.GUTI5G != nil {
		guti := make([]byte, len(accept.GUTI5G.Octet))
		copy(guti, accept.GUTI5G.Octet[:])
		h.ctx.ProvidedGuti.Set(guti)
		h.ctx.ProvidedTmsi.Set(guti[len(guti)-4:])
	}
	h.setRm(RmRegistered)
	h.logger().Info().Str("guti", hex.EncodeToString(h.ctx.ProvidedGuti.Get())).Msg("initial registration succeeded")

	complete, err := BuildRegistrationComplete()
	if err != nil {
		h.logger().Error().Err(err).Msg("cannot encode registration complete")
		return
	}
	h.send(complete)
}

func (h *Handler) registrationReject(cause uint8) {
	h.logger().Error().Uint8("cause", cause).Msg("initial registration rejected")
	h.procedure = procNone
	h.t.CancelTimer(timerGuard)
	h.setRm(RmDeregistered)

	tai := h.ctx.CurrentCell.Get().Tai()
	switch cause {
	case causeTaNotAllowed:
		h.forbid(&h.ctx.ForbiddenTaiRps, tai)
	case causeRoamingNotAllowedInTa:
		h.forbid(&h.ctx.ForbiddenTaiRoaming, tai)
	}
	h.t.ArmTimer(timerRetry, h.cfg.RetryInterval)
}

// forbid records tai and asks RRC to reselect.
func (h *Handler) forbid(list *shared.Locked[[]shared.Tai], tai shared.Tai) {
	if !tai.HasValue() {
		return
	}
	list.Mutate(func(l *[]shared.Tai) { *l = append(*l, tai) })
	h.rrc.Send(&nts.NasRrcNotify{})
}

func (h *Handler) setRm(s RmState) {
	if old := RmState(h.rm.Swap(int32(s))); old != s {
		h.logger().Info().Stringer("from", old).Stringer("to", s).Msg("UE switches RM state")
	}
}

func (h *Handler) setCm(s CmState) {
	if old := CmState(h.cm.Swap(int32(s))); old != s {
		h.logger().Info().Stringer("from", old).Stringer("to", s).Msg("UE switches CM state")
	}
}

func (h *Handler) RmState() RmState {
	return RmState(h.rm.Load())
}

func (h *Handler) CmState() CmState {
	return CmState(h.cm.Load())
}

// Status may be read from any goroutine.
func (h *Handler) Status() Status {
	return Status{
		Rm:   h.RmState().String(),
		Cm:   h.CmState().String(),
		Guti: hex.EncodeToString(h.ctx.ProvidedGuti.Get()),
	}
}

// TimerInfo is one armed mobility management timer.
type TimerInfo struct {
	Name        string `json:"name"`
	RemainingMs int64  `json:"remaining-ms"`
}

var timerNames = map[int]string{
	timerRetry: "registration-retry",
	timerGuard: "procedure-guard",
}

// Timers is safe only while the task is paused.
func (h *Handler) Timers() []TimerInfo {
	armed := h.t.Timers()
	out := make([]TimerInfo, 0, len(armed))
	for id, remaining := range armed {
		name, ok := timerNames[id]
		if !ok {
			name = "unknown"
		}
		out = append(out, TimerInfo{Name: name, RemainingMs: remaining.Milliseconds()})
	}
	slices.SortFunc(out, func(a, b TimerInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}
