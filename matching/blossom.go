package matching

import "errors"

var (
	// ErrOddOrder is returned when a perfect matching is requested on an
	// odd number of vertices.
	ErrOddOrder = errors.New("matching: odd number of vertices")

	// ErrNoPerfectMatching signals an internal failure to saturate every
	// vertex. On a complete graph of even order it is unreachable.
	ErrNoPerfectMatching = errors.New("matching: no perfect matching")
)

// MinWeightPerfect returns mate, with mate[i] the partner of vertex i, for
// a minimum-weight perfect matching of the complete graph on n vertices
// whose edge weights are given by weight(i, j) for i < j.
func MinWeightPerfect(n int, weight func(i, j int) int64) ([]int, error) {
	if n%2 != 0 {
		return nil, ErrOddOrder
	}
	if n == 0 {
		return []int{}, nil
	}
	if n == 2 {
		return []int{1, 0}, nil
	}

	edges := make([]edge, 0, n*(n-1)/2)
	var (
		i, j int
		w    int64
		maxW int64
	)
	for i = 0; i < n; i++ {
		for j = i + 1; j < n; j++ {
			w = weight(i, j)
			if len(edges) == 0 || w > maxW {
				maxW = w
			}
			edges = append(edges, edge{i: i, j: j, w: w})
		}
	}
	// Flip to a maximisation problem with strictly positive weights.
	for i = range edges {
		edges[i].w = maxW + 1 - edges[i].w
	}

	mate := newSolver(n, edges).run()
	for i = 0; i < n; i++ {
		if mate[i] < 0 {
			return nil, ErrNoPerfectMatching
		}
	}

	return mate, nil
}

// Weight sums weight(i, mate[i]) over every matched pair once.
func Weight(mate []int, weight func(i, j int) int64) int64 {
	var total int64
	for i, m := range mate {
		if m > i {
			total += weight(i, m)
		}
	}

	return total
}

type edge struct {
	i, j int
	w    int64
}

// solver holds the state of one maximum-weight matching run. Vertices are
// 0..n-1, blossoms n..2n-1. An endpoint p refers to edges[p/2].i when p is
// even and edges[p/2].j when p is odd, so p^1 is the opposite end.
type solver struct {
	n         int
	edges     []edge
	endpoint  []int
	neighbend [][]int

	mate      []int // endpoint matched to each vertex, or -1
	label     []int // 0 free, 1 S, 2 T; 5 is a scan mark
	labelend  []int
	inblossom []int // top-level blossom containing each vertex

	blossomparent    []int
	blossomchilds    [][]int
	blossombase      []int
	blossomendps     [][]int
	bestedge         []int
	blossombestedges [][]int // nil means "not computed"
	unused           []int

	dualvar   []int64
	allowedge []bool
	queue     []int
}

func newSolver(n int, edges []edge) *solver {
	s := &solver{
		n:                n,
		edges:            edges,
		endpoint:         make([]int, 2*len(edges)),
		neighbend:        make([][]int, n),
		mate:             make([]int, n),
		label:            make([]int, 2*n),
		labelend:         make([]int, 2*n),
		inblossom:        make([]int, n),
		blossomparent:    make([]int, 2*n),
		blossomchilds:    make([][]int, 2*n),
		blossombase:      make([]int, 2*n),
		blossomendps:     make([][]int, 2*n),
		bestedge:         make([]int, 2*n),
		blossombestedges: make([][]int, 2*n),
		unused:           make([]int, 0, n),
		dualvar:          make([]int64, 2*n),
		allowedge:        make([]bool, len(edges)),
	}

	var maxW int64
	for k, e := range edges {
		s.endpoint[2*k] = e.i
		s.endpoint[2*k+1] = e.j
		s.neighbend[e.i] = append(s.neighbend[e.i], 2*k+1)
		s.neighbend[e.j] = append(s.neighbend[e.j], 2*k)
		if e.w > maxW {
			maxW = e.w
		}
	}
	for v := 0; v < n; v++ {
		s.mate[v] = -1
		s.inblossom[v] = v
		s.blossombase[v] = v
		s.dualvar[v] = maxW
	}
	for b := 0; b < 2*n; b++ {
		s.labelend[b] = -1
		s.blossomparent[b] = -1
		s.bestedge[b] = -1
		if b >= n {
			s.blossombase[b] = -1
			s.unused = append(s.unused, b)
		}
	}

	return s
}

// slack is the reduced cost of edge k (doubled-weight convention).
func (s *solver) slack(k int) int64 {
	e := s.edges[k]
	return s.dualvar[e.i] + s.dualvar[e.j] - 2*e.w
}

// leaves appends every vertex contained in blossom b to out.
func (s *solver) leaves(b int, out []int) []int {
	if b < s.n {
		return append(out, b)
	}
	for _, t := range s.blossomchilds[b] {
		if t < s.n {
			out = append(out, t)
		} else {
			out = s.leaves(t, out)
		}
	}

	return out
}

// at indexes with Python-style negative offsets; blossom cycles are walked
// in both directions from the base.
func at(xs []int, i int) int {
	if i < 0 {
		i += len(xs)
	}

	return xs[i]
}

func indexOf(xs []int, x int) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}

	return -1
}

func rotate(xs []int, i int) []int {
	out := make([]int, 0, len(xs))
	out = append(out, xs[i:]...)

	return append(out, xs[:i]...)
}

// assignLabel labels vertex w and its top-level blossom with t via
// endpoint p. A T label propagates an S label to the mate of the base.
func (s *solver) assignLabel(w, t, p int) {
	for {
		b := s.inblossom[w]
		s.label[w], s.label[b] = t, t
		s.labelend[w], s.labelend[b] = p, p
		s.bestedge[w], s.bestedge[b] = -1, -1
		if t == 1 {
			s.queue = s.leaves(b, s.queue)
			return
		}
		mb := s.mate[s.blossombase[b]]
		w, t, p = s.endpoint[mb], 1, mb^1
	}
}

// scanBlossom traces back from v and w to find either a common ancestor
// (the base of a new blossom) or two distinct roots (an augmenting path,
// reported as -1).
func (s *solver) scanBlossom(v, w int) int {
	var (
		path []int
		base = -1
	)
	for v != -1 || w != -1 {
		b := s.inblossom[v]
		if s.label[b]&4 != 0 {
			base = s.blossombase[b]
			break
		}
		path = append(path, b)
		s.label[b] = 5
		if s.labelend[b] == -1 {
			v = -1
		} else {
			v = s.endpoint[s.labelend[b]]
			b = s.inblossom[v]
			v = s.endpoint[s.labelend[b]]
		}
		if w != -1 {
			v, w = w, v
		}
	}
	for _, b := range path {
		s.label[b] = 1
	}

	return base
}

// addBlossom shrinks the odd cycle closed by edge k into a new S-blossom
// with the given base.
func (s *solver) addBlossom(base, k int) {
	v, w := s.edges[k].i, s.edges[k].j
	bb := s.inblossom[base]
	bv := s.inblossom[v]
	bw := s.inblossom[w]

	b := s.unused[len(s.unused)-1]
	s.unused = s.unused[:len(s.unused)-1]
	s.blossombase[b] = base
	s.blossomparent[b] = -1
	s.blossomparent[bb] = b

	var path, endps []int
	for bv != bb {
		s.blossomparent[bv] = b
		path = append(path, bv)
		endps = append(endps, s.labelend[bv])
		v = s.endpoint[s.labelend[bv]]
		bv = s.inblossom[v]
	}
	path = append(path, bb)
	reverseInts(path)
	reverseInts(endps)
	endps = append(endps, 2*k)
	for bw != bb {
		s.blossomparent[bw] = b
		path = append(path, bw)
		endps = append(endps, s.labelend[bw]^1)
		w = s.endpoint[s.labelend[bw]]
		bw = s.inblossom[w]
	}
	s.blossomchilds[b] = path
	s.blossomendps[b] = endps

	s.label[b] = 1
	s.labelend[b] = s.labelend[bb]
	s.dualvar[b] = 0
	for _, lv := range s.leaves(b, nil) {
		if s.label[s.inblossom[lv]] == 2 {
			// Former T-vertices become S-vertices inside the blossom.
			s.queue = append(s.queue, lv)
		}
		s.inblossom[lv] = b
	}

	// Least-slack edges from the new blossom to every other S-blossom.
	bestedgeto := make([]int, 2*s.n)
	for i := range bestedgeto {
		bestedgeto[i] = -1
	}
	consider := func(kk int) {
		j := s.edges[kk].j
		if s.inblossom[j] == b {
			j = s.edges[kk].i
		}
		bj := s.inblossom[j]
		if bj != b && s.label[bj] == 1 &&
			(bestedgeto[bj] == -1 || s.slack(kk) < s.slack(bestedgeto[bj])) {
			bestedgeto[bj] = kk
		}
	}
	for _, child := range path {
		if s.blossombestedges[child] == nil {
			for _, lv := range s.leaves(child, nil) {
				for _, p := range s.neighbend[lv] {
					consider(p / 2)
				}
			}
		} else {
			for _, kk := range s.blossombestedges[child] {
				consider(kk)
			}
		}
		s.blossombestedges[child] = nil
		s.bestedge[child] = -1
	}
	best := make([]int, 0, len(bestedgeto))
	for _, kk := range bestedgeto {
		if kk != -1 {
			best = append(best, kk)
		}
	}
	s.blossombestedges[b] = best
	s.bestedge[b] = -1
	for _, kk := range best {
		if s.bestedge[b] == -1 || s.slack(kk) < s.slack(s.bestedge[b]) {
			s.bestedge[b] = kk
		}
	}
}

// expandBlossom dissolves blossom b. Mid-stage expansion of a T-blossom
// relabels the children along the even-length path through the blossom.
func (s *solver) expandBlossom(b int, endstage bool) {
	for _, sb := range s.blossomchilds[b] {
		s.blossomparent[sb] = -1
		switch {
		case sb < s.n:
			s.inblossom[sb] = sb
		case endstage && s.dualvar[sb] == 0:
			s.expandBlossom(sb, endstage)
		default:
			for _, lv := range s.leaves(sb, nil) {
				s.inblossom[lv] = sb
			}
		}
	}

	if !endstage && s.label[b] == 2 {
		childs := s.blossomchilds[b]
		endps := s.blossomendps[b]
		entrychild := s.inblossom[s.endpoint[s.labelend[b]^1]]
		j := indexOf(childs, entrychild)
		var jstep, endptrick int
		if j&1 != 0 {
			j -= len(childs)
			jstep, endptrick = 1, 0
		} else {
			jstep, endptrick = -1, 1
		}
		p := s.labelend[b]
		for j != 0 {
			s.label[s.endpoint[p^1]] = 0
			s.label[s.endpoint[at(endps, j-endptrick)^endptrick^1]] = 0
			s.assignLabel(s.endpoint[p^1], 2, p)
			s.allowedge[at(endps, j-endptrick)/2] = true
			j += jstep
			p = at(endps, j-endptrick) ^ endptrick
			s.allowedge[p/2] = true
			j += jstep
		}
		bv := at(childs, j)
		s.label[s.endpoint[p^1]], s.label[bv] = 2, 2
		s.labelend[s.endpoint[p^1]], s.labelend[bv] = p, p
		s.bestedge[bv] = -1
		j += jstep
		for at(childs, j) != entrychild {
			bv = at(childs, j)
			if s.label[bv] == 1 {
				j += jstep
				continue
			}
			reached := -1
			for _, lv := range s.leaves(bv, nil) {
				if s.label[lv] != 0 {
					reached = lv
					break
				}
			}
			if reached >= 0 {
				s.label[reached] = 0
				s.label[s.endpoint[s.mate[s.blossombase[bv]]]] = 0
				s.assignLabel(reached, 2, s.labelend[reached])
			}
			j += jstep
		}
	}

	s.label[b], s.labelend[b] = -1, -1
	s.blossomchilds[b], s.blossomendps[b] = nil, nil
	s.blossombase[b] = -1
	s.blossombestedges[b] = nil
	s.bestedge[b] = -1
	s.unused = append(s.unused, b)
}

// augmentBlossom swaps matched and unmatched edges along the even path
// from vertex v to the base of blossom b, making v the new base.
func (s *solver) augmentBlossom(b, v int) {
	t := v
	for s.blossomparent[t] != b {
		t = s.blossomparent[t]
	}
	if t >= s.n {
		s.augmentBlossom(t, v)
	}
	childs := s.blossomchilds[b]
	endps := s.blossomendps[b]
	i := indexOf(childs, t)
	j := i
	var jstep, endptrick int
	if i&1 != 0 {
		j -= len(childs)
		jstep, endptrick = 1, 0
	} else {
		jstep, endptrick = -1, 1
	}
	for j != 0 {
		j += jstep
		t = at(childs, j)
		p := at(endps, j-endptrick) ^ endptrick
		if t >= s.n {
			s.augmentBlossom(t, s.endpoint[p])
		}
		j += jstep
		t = at(childs, j)
		if t >= s.n {
			s.augmentBlossom(t, s.endpoint[p^1])
		}
		s.mate[s.endpoint[p]] = p ^ 1
		s.mate[s.endpoint[p^1]] = p
	}
	s.blossomchilds[b] = rotate(childs, i)
	s.blossomendps[b] = rotate(endps, i)
	s.blossombase[b] = s.blossombase[s.blossomchilds[b][0]]
}

// augmentMatching flips the augmenting path through edge k.
func (s *solver) augmentMatching(k int) {
	v, w := s.edges[k].i, s.edges[k].j
	for _, start := range [2][2]int{{v, 2*k + 1}, {w, 2 * k}} {
		sv, p := start[0], start[1]
		for {
			bs := s.inblossom[sv]
			if bs >= s.n {
				s.augmentBlossom(bs, sv)
			}
			s.mate[sv] = p
			if s.labelend[bs] == -1 {
				break
			}
			t := s.endpoint[s.labelend[bs]]
			bt := s.inblossom[t]
			sv = s.endpoint[s.labelend[bt]]
			j := s.endpoint[s.labelend[bt]^1]
			if bt >= s.n {
				s.augmentBlossom(bt, j)
			}
			s.mate[j] = s.labelend[bt]
			p = s.labelend[bt] ^ 1
		}
	}
}

// run executes up to n stages; each stage either augments the matching
// or proves it maximum. It returns mate as vertex indices.
func (s *solver) run() []int {
	n := s.n
	for stage := 0; stage < n; stage++ {
		for b := 0; b < 2*n; b++ {
			s.label[b] = 0
			s.bestedge[b] = -1
			if b >= n {
				s.blossombestedges[b] = nil
			}
		}
		for k := range s.allowedge {
			s.allowedge[k] = false
		}
		s.queue = s.queue[:0]
		for v := 0; v < n; v++ {
			if s.mate[v] == -1 && s.label[s.inblossom[v]] == 0 {
				s.assignLabel(v, 1, -1)
			}
		}

		augmented := false
		for {
			for len(s.queue) > 0 && !augmented {
				v := s.queue[len(s.queue)-1]
				s.queue = s.queue[:len(s.queue)-1]
				for _, p := range s.neighbend[v] {
					k := p / 2
					w := s.endpoint[p]
					if s.inblossom[v] == s.inblossom[w] {
						continue
					}
					var kslack int64
					if !s.allowedge[k] {
						kslack = s.slack(k)
						if kslack <= 0 {
							s.allowedge[k] = true
						}
					}
					switch {
					case s.allowedge[k]:
						switch {
						case s.label[s.inblossom[w]] == 0:
							s.assignLabel(w, 2, p^1)
						case s.label[s.inblossom[w]] == 1:
							base := s.scanBlossom(v, w)
							if base >= 0 {
								s.addBlossom(base, k)
							} else {
								s.augmentMatching(k)
								augmented = true
							}
						case s.label[w] == 0:
							s.label[w] = 2
							s.labelend[w] = p ^ 1
						}
					case s.label[s.inblossom[w]] == 1:
						b := s.inblossom[v]
						if s.bestedge[b] == -1 || kslack < s.slack(s.bestedge[b]) {
							s.bestedge[b] = k
						}
					case s.label[w] == 0:
						if s.bestedge[w] == -1 || kslack < s.slack(s.bestedge[w]) {
							s.bestedge[w] = k
						}
					}
					if augmented {
						break
					}
				}
			}
			if augmented {
				break
			}

			// Dual adjustment. Maximum cardinality is always requested, so
			// delta1 only applies when no other case is available.
			deltatype := -1
			var delta int64
			deltaedge, deltablossom := -1, -1
			for v := 0; v < n; v++ {
				if s.label[s.inblossom[v]] == 0 && s.bestedge[v] != -1 {
					d := s.slack(s.bestedge[v])
					if deltatype == -1 || d < delta {
						delta, deltatype, deltaedge = d, 2, s.bestedge[v]
					}
				}
			}
			for b := 0; b < 2*n; b++ {
				if s.blossomparent[b] == -1 && s.label[b] == 1 && s.bestedge[b] != -1 {
					d := s.slack(s.bestedge[b]) / 2
					if deltatype == -1 || d < delta {
						delta, deltatype, deltaedge = d, 3, s.bestedge[b]
					}
				}
			}
			for b := n; b < 2*n; b++ {
				if s.blossombase[b] >= 0 && s.blossomparent[b] == -1 && s.label[b] == 2 &&
					(deltatype == -1 || s.dualvar[b] < delta) {
					delta, deltatype, deltablossom = s.dualvar[b], 4, b
				}
			}
			if deltatype == -1 {
				deltatype = 1
				delta = s.dualvar[0]
				for v := 1; v < n; v++ {
					if s.dualvar[v] < delta {
						delta = s.dualvar[v]
					}
				}
				if delta < 0 {
					delta = 0
				}
			}

			for v := 0; v < n; v++ {
				switch s.label[s.inblossom[v]] {
				case 1:
					s.dualvar[v] -= delta
				case 2:
					s.dualvar[v] += delta
				}
			}
			for b := n; b < 2*n; b++ {
				if s.blossombase[b] >= 0 && s.blossomparent[b] == -1 {
					switch s.label[b] {
					case 1:
						s.dualvar[b] += delta
					case 2:
						s.dualvar[b] -= delta
					}
				}
			}

			switch deltatype {
			case 2:
				s.allowedge[deltaedge] = true
				i := s.edges[deltaedge].i
				if s.label[s.inblossom[i]] == 0 {
					i = s.edges[deltaedge].j
				}
				s.queue = append(s.queue, i)
			case 3:
				s.allowedge[deltaedge] = true
				s.queue = append(s.queue, s.edges[deltaedge].i)
			case 4:
				s.expandBlossom(deltablossom, false)
			}
			if deltatype == 1 {
				break
			}
		}
		if !augmented {
			break
		}

		for b := n; b < 2*n; b++ {
			if s.blossomparent[b] == -1 && s.blossombase[b] >= 0 && s.label[b] == 1 && s.dualvar[b] == 0 {
				s.expandBlossom(b, true)
			}
		}
	}

	out := make([]int, n)
	for v := 0; v < n; v++ {
		if s.mate[v] >= 0 {
			out[v] = s.endpoint[s.mate[v]]
		} else {
			out[v] = -1
		}
	}

	return out
}

func reverseInts(xs []int) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}
