package csound

import (
	"sync"

	"github.com/ebitengine/purego"
)

// Windat polarity values.
const (
	PolarityNone     = 0
	PolarityNegative = 1
	PolarityPositive = 2
	PolarityBipolar  = 3
)

const captionSize = 60

type nativeWindat struct {
	windid   uintptr
	fdata    *float64
	npts     int32
	caption  [captionSize]byte
	waitflg  int16
	polarity int16
	max      float64
	min      float64
	absmax   float64
	oabsmax  float64
	danflag  int32
	absflag  int32
}

// Graph is a copy of one engine display.
type Graph struct {
	ID       uintptr
	Caption  string
	Data     []float64
	Wait     bool
	Polarity int
	Max      float64
	Min      float64
	AbsMax   float64
	OAbsMax  float64
	DanFlag  bool
	AbsFlag  bool
}

func (w *nativeWindat) toGraph() *Graph {
	return &Graph{
		ID:       w.windid,
		Caption:  fixedString(w.caption[:]),
		Data:     append([]float64(nil), unsafeFloats(w.fdata, int(w.npts))...),
		Wait:     w.waitflg != 0,
		Polarity: int(w.polarity),
		Max:      w.max,
		Min:      w.min,
		AbsMax:   w.absmax,
		OAbsMax:  w.oabsmax,
		DanFlag:  w.danflag != 0,
		AbsFlag:  w.absflag != 0,
	}
}

var graphCallbacks struct {
	init sync.Once
	make uintptr
	draw uintptr
	kill uintptr
	exit uintptr
}

func initGraphCallbacks() {
	graphCallbacks.make = purego.NewCallback(func(cs uintptr, w *nativeWindat, name *byte) uintptr {
		if c := lookup(cs); c != nil && c.graph != nil && w != nil {
			c.graph.MakeGraph(w.toGraph(), goString(name))
		}
		return 0
	})
	graphCallbacks.draw = purego.NewCallback(func(cs uintptr, w *nativeWindat) uintptr {
		if c := lookup(cs); c != nil && c.graph != nil && w != nil {
			c.graph.DrawGraph(w.toGraph())
		}
		return 0
	})
	graphCallbacks.kill = purego.NewCallback(func(cs uintptr, w *nativeWindat) uintptr {
		if c := lookup(cs); c != nil && c.graph != nil && w != nil {
			c.graph.KillGraph(w.toGraph())
		}
		return 0
	})
	graphCallbacks.exit = purego.NewCallback(func(cs uintptr) uintptr {
		if c := lookup(cs); c != nil && c.graph != nil {
			return statusResult(c.graph.ExitGraph())
		}
		return 0
	})
}

// SetGraphDisplay routes the engine's displays to d. Call before Start.
// As with SetMidiBackends, the instance must then be released with Close.
func (c *Csound) SetGraphDisplay(d GraphDisplay) {
	if c.cs == 0 {
		return
	}
	graphCallbacks.init.Do(initGraphCallbacks)

	c.graph = d
	register(c)

	c.api.setIsGraphable(c.cs, 1)
	c.api.setMakeGraphCB(c.cs, graphCallbacks.make)
	c.api.setDrawGraphCB(c.cs, graphCallbacks.draw)
	c.api.setKillGraphCB(c.cs, graphCallbacks.kill)
	c.api.setExitGraphCB(c.cs, graphCallbacks.exit)
}
