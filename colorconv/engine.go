package colorconv

import (
	"container/heap"
	"strconv"
	"strings"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
)

// maxPathLength bounds the number of steps of a conversion.
const maxPathLength = 8

// Operation is one atomic conversion.
type Operation interface {
	Name() string

	// StatesAfterConversion lists the states this operation can produce from
	// in, steered by target. It returns nil when it does not apply.
	StatesAfterConversion(in ColorState, target Target, opts *Options) []StateWithCost

	// Convert produces an image in state out from img, which is in state in.
	Convert(img *pixels.Image, in, out ColorState, opts *Options) (*pixels.Image, error)
}

// Engine plans conversions over a fixed list of operations. The order of the
// list breaks ties between paths of equal cost.
type Engine struct {
	ops []Operation
}

// NewEngine returns an engine over ops.
func NewEngine(ops ...Operation) *Engine {
	return &Engine{ops: ops}
}

var defaultEngine = NewEngine(
	opDropAlpha{},
	opAddAlpha{},
	opYCbCrToMono{},
	opMonoToYCbCr{},
	opChromaUpsample{alg: UpsamplingBilinear},
	opChromaUpsample{alg: UpsamplingNearestNeighbor},
	opChromaDownsample{alg: DownsamplingAverage},
	opChromaDownsample{alg: DownsamplingNearestNeighbor},
	opYCbCrToRGB{},
	opRGBToYCbCr{},
	opPlanarToInterleaved{},
	opInterleavedToPlanar{},
	opToHDR{},
	opToSDR{},
)

// DefaultEngine returns the engine with all built-in operations.
func DefaultEngine() *Engine { return defaultEngine }

type step struct {
	op      Operation
	in, out ColorState
}

// Pipeline is a planned chain of operations.
type Pipeline struct {
	steps []step
	opts  *Options
}

// Len returns the number of steps.
func (p *Pipeline) Len() int { return len(p.steps) }

func (p *Pipeline) String() string {
	if len(p.steps) == 0 {
		return "(none)"
	}
	parts := make([]string, len(p.steps))
	for i, s := range p.steps {
		parts[i] = s.op.Name()
	}
	return strings.Join(parts, " -> ")
}

// Run applies the pipeline to img. An empty pipeline returns img itself.
func (p *Pipeline) Run(img *pixels.Image) (*pixels.Image, error) {
	for _, s := range p.steps {
		out, err := s.op.Convert(img, s.in, s.out, p.opts)
		if err != nil {
			return nil, err
		}
		img = out
	}
	return img, nil
}

type node struct {
	state ColorState
	cost  Cost
	seq   int
	depth int
}

type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].seq < q[j].seq
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(*node)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// Plan finds the cheapest chain of operations turning in into a state
// satisfying target.
func (e *Engine) Plan(in ColorState, target Target, opts *Options) (*Pipeline, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if target.Satisfied(in) {
		return &Pipeline{opts: opts}, nil
	}

	best := map[ColorState]Cost{in: 0}
	prev := map[ColorState]step{}
	done := map[ColorState]bool{}
	seq := 0
	q := &nodeQueue{{state: in}}

	for q.Len() > 0 {
		n := heap.Pop(q).(*node)
		if done[n.state] {
			continue
		}
		done[n.state] = true

		if target.Satisfied(n.state) {
			return &Pipeline{steps: backtrack(prev, in, n.state), opts: opts}, nil
		}
		if n.depth == maxPathLength {
			continue
		}

		for _, op := range e.ops {
			for _, sc := range op.StatesAfterConversion(n.state, target, opts) {
				if sc.State == n.state || done[sc.State] {
					continue
				}
				c := n.cost + sc.Cost
				if old, ok := best[sc.State]; ok && old <= c {
					continue
				}
				best[sc.State] = c
				prev[sc.State] = step{op: op, in: n.state, out: sc.State}
				seq++
				heap.Push(q, &node{state: sc.State, cost: c, seq: seq, depth: n.depth + 1})
			}
		}
	}

	return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedColorConversion,
		"no conversion from %v to %s", in, targetString(target))
}

func backtrack(prev map[ColorState]step, from, to ColorState) []step {
	var steps []step
	for s := to; s != from; {
		st := prev[s]
		steps = append(steps, st)
		s = st.in
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

func targetString(t Target) string {
	var b strings.Builder
	b.WriteString(t.Colorspace.String())
	b.WriteByte(' ')
	b.WriteString(t.Chroma.String())
	switch t.Alpha {
	case AlphaRequired:
		b.WriteString("+alpha")
	case AlphaNone:
		b.WriteString("-alpha")
	}
	if t.BitsPerPixel != 0 {
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(t.BitsPerPixel))
		b.WriteString("bit")
	}
	return b.String()
}

// Convert converts img to satisfy target using the default engine.
func Convert(img *pixels.Image, target Target, opts *Options) (*pixels.Image, error) {
	p, err := defaultEngine.Plan(StateOf(img), target, opts)
	if err != nil {
		return nil, err
	}
	return p.Run(img)
}
