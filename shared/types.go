package shared

import "fmt"

// Plmn identifies a public land mobile network.
type Plmn struct {
	Mcc       int  `yaml:"mcc" json:"mcc"`
	Mnc       int  `yaml:"mnc" json:"mnc"`
	IsLongMnc bool `yaml:"long_mnc" json:"longMnc"`
}

// HasValue reports whether the PLMN was ever set.
func (p Plmn) HasValue() bool {
	return p.Mcc != 0
}

func (p Plmn) String() string {
	if p.IsLongMnc {
		return fmt.Sprintf("%03d/%03d", p.Mcc, p.Mnc)
	}
	return fmt.Sprintf("%03d/%02d", p.Mcc, p.Mnc)
}

// Tai is a tracking area identity.
type Tai struct {
	Plmn Plmn `json:"plmn"`
	Tac  int  `json:"tac"`
}

func (t Tai) HasValue() bool {
	return t.Plmn.HasValue()
}

func (t Tai) String() string {
	return fmt.Sprintf("%s-%d", t.Plmn, t.Tac)
}

// CellCategory is the result of evaluating a cell during cell selection.
type CellCategory int

const (
	CellBarred CellCategory = iota
	CellReserved
	CellAcceptable
	CellSuitable
)

func (c CellCategory) String() string {
	switch c {
	case CellBarred:
		return "barred"
	case CellReserved:
		return "reserved"
	case CellAcceptable:
		return "acceptable"
	case CellSuitable:
		return "suitable"
	default:
		return "unknown"
	}
}

// ActiveCellInfo describes the cell the device is currently camped on.
// A zero CellID means no cell is selected.
type ActiveCellInfo struct {
	CellID   int
	Category CellCategory
	Plmn     Plmn
	Tac      int
}

func (c ActiveCellInfo) HasValue() bool {
	return c.CellID != 0
}

// Tai returns the tracking area of the active cell.
func (c ActiveCellInfo) Tai() Tai {
	return Tai{Plmn: c.Plmn, Tac: c.Tac}
}

// CellDescription is what the link layer learned about a cell from its heartbeat acknowledgements.
type CellDescription struct {
	Nci     int64  `json:"nci"`
	Plmn    Plmn   `json:"plmn"`
	Tac     int    `json:"tac"`
	GnbName string `json:"gnbName"`
	Barred  bool   `json:"barred"`
}
