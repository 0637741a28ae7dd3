// Package app runs the station status task.
package app

import (
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/task"
)

// StatusInfo is the station status shown to operators.
type StatusInfo struct {
	IsNgapUp bool      `json:"is-ngap-up"`
	Since    time.Time `json:"since"`
}

type Handler struct {
	t      *task.Task
	status StatusInfo
}

func New(t *task.Task) *Handler {
	return &Handler{t: t}
}

func (h *Handler) OnStart() {
	h.status.Since = time.Now()
}

func (h *Handler) OnQuit() {}

func (h *Handler) Handle(msg nts.Message) {
	switch m := msg.(type) {
	case nts.GnbStatus:
		h.handleStatus(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleStatus(msg nts.GnbStatus) {
	switch m := msg.(type) {
	case *nts.StatusNgapIsUp:
		if h.status.IsNgapUp == m.IsUp {
			return
		}
		h.status.IsNgapUp = m.IsUp
		h.status.Since = time.Now()
		h.t.Logger().Info().Bool("up", m.IsUp).Msg("NGAP status changed")
	default:
		h.t.Unhandled(msg)
	}
}

// Status is safe only while the task is paused.
func (h *Handler) Status() StatusInfo {
	return h.status
}
