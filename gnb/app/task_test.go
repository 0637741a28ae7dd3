package app

import (
	"testing"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_TracksNgapStatus(t *testing.T) {
	tk := task.New("gnb-app", zerolog.Nop())
	t.Cleanup(tk.Quit)
	h := New(tk)
	h.OnStart()
	assert.False(t, h.Status().IsNgapUp)

	h.Handle(&nts.StatusNgapIsUp{IsUp: true})
	up := h.Status()
	require.True(t, up.IsNgapUp)

	// Repeating the same status keeps the transition time.
	time.Sleep(time.Millisecond)
	h.Handle(&nts.StatusNgapIsUp{IsUp: true})
	assert.Equal(t, up.Since, h.Status().Since)

	h.Handle(&nts.StatusNgapIsUp{IsUp: false})
	assert.False(t, h.Status().IsNgapUp)
	assert.True(t, h.Status().Since.After(up.Since) || h.Status().Since.Equal(up.Since))
}
