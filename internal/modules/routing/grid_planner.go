// README: Grid planner runs Dijkstra over a cost field that penalises hazardous cells.
package routing

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"saferide/internal/geo"
	"saferide/internal/modules/hazard"
	"saferide/internal/types"
)

const (
	DefaultGridCellKm    = 0.5
	DefaultGridPaddingKm = 2.0
	DefaultHazardPenalty = 25.0

	maxGridCells = 40000
)

var ErrNoPath = errors.New("grid planner: no path between endpoints")

// GridPlanner lays a regular grid over the padded bounding box of the trip and
// searches the cheapest 8-connected path. A cell costs
// 1 + penalty * sum(severity/10) over the zones containing its center.
type GridPlanner struct {
	CellKm    float64
	PaddingKm float64
	Penalty   float64
}

func NewGridPlanner(cellKm, paddingKm, penalty float64) *GridPlanner {
	if cellKm <= 0 {
		cellKm = DefaultGridCellKm
	}
	if paddingKm < 0 {
		paddingKm = DefaultGridPaddingKm
	}
	if penalty < 0 {
		penalty = DefaultHazardPenalty
	}
	return &GridPlanner{CellKm: cellKm, PaddingKm: paddingKm, Penalty: penalty}
}

func (p *GridPlanner) Name() string { return PlannerGrid }

type grid struct {
	sw         types.Point
	rows, cols int
	latStep    float64
	lngStep    float64
}

func (g grid) id(r, c int) int64 { return int64(r*g.cols + c) }

func (g grid) center(id int64) types.Point {
	r, c := int(id)/g.cols, int(id)%g.cols
	return types.Point{Lat: g.sw.Lat + float64(r)*g.latStep, Lng: g.sw.Lng + float64(c)*g.lngStep}
}

func (g grid) nearest(p types.Point) int64 {
	r, c := 0, 0
	if g.latStep > 0 {
		r = clampInt(int(math.Round((p.Lat-g.sw.Lat)/g.latStep)), 0, g.rows-1)
	}
	if g.lngStep > 0 {
		c = clampInt(int(math.Round((p.Lng-g.sw.Lng)/g.lngStep)), 0, g.cols-1)
	}
	return g.id(r, c)
}

func (p *GridPlanner) layout(from, to types.Point) grid {
	sw := geo.Offset(types.Point{Lat: math.Min(from.Lat, to.Lat), Lng: math.Min(from.Lng, to.Lng)}, -p.PaddingKm, -p.PaddingKm)
	ne := geo.Offset(types.Point{Lat: math.Max(from.Lat, to.Lat), Lng: math.Max(from.Lng, to.Lng)}, p.PaddingKm, p.PaddingKm)
	heightKm := geo.HaversineKm(sw, types.Point{Lat: ne.Lat, Lng: sw.Lng})
	widthKm := geo.HaversineKm(sw, types.Point{Lat: sw.Lat, Lng: ne.Lng})

	cell := p.CellKm
	rows, cols := 0, 0
	for {
		rows = int(math.Ceil(heightKm/cell)) + 1
		cols = int(math.Ceil(widthKm/cell)) + 1
		if rows*cols <= maxGridCells {
			break
		}
		cell *= 1.5
	}
	rows = max(rows, 2)
	cols = max(cols, 2)

	return grid{
		sw:      sw,
		rows:    rows,
		cols:    cols,
		latStep: (ne.Lat - sw.Lat) / float64(rows-1),
		lngStep: (ne.Lng - sw.Lng) / float64(cols-1),
	}
}

func (p *GridPlanner) Plan(from, to types.Point, zones []hazard.Zone) ([]types.Point, error) {
	g := p.layout(from, to)
	src, dst := g.nearest(from), g.nearest(to)
	if src == dst {
		return []types.Point{from, to}, nil
	}

	cost := make([]float64, g.rows*g.cols)
	for id := range cost {
		c := g.center(int64(id))
		cost[id] = 1
		for _, z := range zones {
			if hazard.Contains(c, z) {
				cost[id] += p.Penalty * float64(z.Severity) / hazard.MaxSeverity
			}
		}
	}

	wg := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			a := g.id(r, c)
			// Forward half of the 8-neighbourhood; the graph is undirected.
			for _, d := range [][2]int{{0, 1}, {1, -1}, {1, 0}, {1, 1}} {
				nr, nc := r+d[0], c+d[1]
				if nr < 0 || nr >= g.rows || nc < 0 || nc >= g.cols {
					continue
				}
				b := g.id(nr, nc)
				w := geo.HaversineKm(g.center(a), g.center(b)) * (cost[a] + cost[b]) / 2
				wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(a), simple.Node(b), w))
			}
		}
	}

	nodes, weight := path.DijkstraFrom(simple.Node(src), wg).To(dst)
	if len(nodes) == 0 || math.IsInf(weight, 1) {
		return nil, ErrNoPath
	}

	waypoints := make([]types.Point, 0, len(nodes))
	waypoints = append(waypoints, from)
	for _, n := range nodes[1 : len(nodes)-1] {
		waypoints = append(waypoints, g.center(n.ID()))
	}
	waypoints = append(waypoints, to)
	return waypoints, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
