package pathcodec

import (
	"strconv"

	"github.com/menta2k/image-annotator/pkg/types"
)

// Op is a straight-line path command
type Op int

const (
	OpMoveTo Op = iota
	OpLineTo
	OpClose
)

func (o Op) String() string {
	switch o {
	case OpMoveTo:
		return "move_to"
	case OpLineTo:
		return "line_to"
	case OpClose:
		return "close"
	default:
		return "Op(" + strconv.Itoa(int(o)) + ")"
	}
}

// Cmd is one absolute path command
type Cmd struct {
	Op Op
	P  types.Point
}

// Commands resolves d into absolute move/line/close commands. Relative
// commands and the H/V shorthands are expanded; curves and arcs are rejected.
func Commands(d string) ([]Cmd, error) {
	s := &scanner{src: d}

	var (
		cmds    []Cmd
		cur     types.Point
		start   types.Point
		command byte
	)

	for {
		s.skipSeparators()
		if s.done() {
			break
		}

		if c := s.peek(); isCommand(c) {
			command = c
			s.pos++
		} else if command == 0 {
			return nil, errorf("path data must start with a command at offset %d", s.pos)
		}

		switch command {
		case 'M', 'm':
			x, y, err := s.pair()
			if err != nil {
				return nil, err
			}
			if command == 'm' && len(cmds) > 0 {
				x, y = cur.X+x, cur.Y+y
			}
			cur = types.Point{X: x, Y: y}
			start = cur
			cmds = append(cmds, Cmd{Op: OpMoveTo, P: cur})
			// Further pairs after a move-to are implicit line-tos.
			if command == 'M' {
				command = 'L'
			} else {
				command = 'l'
			}
		case 'L', 'l':
			x, y, err := s.pair()
			if err != nil {
				return nil, err
			}
			if command == 'l' {
				x, y = cur.X+x, cur.Y+y
			}
			cur = types.Point{X: x, Y: y}
			cmds = append(cmds, Cmd{Op: OpLineTo, P: cur})
		case 'H', 'h':
			x, err := s.number()
			if err != nil {
				return nil, err
			}
			if command == 'h' {
				x += cur.X
			}
			cur.X = x
			cmds = append(cmds, Cmd{Op: OpLineTo, P: cur})
		case 'V', 'v':
			y, err := s.number()
			if err != nil {
				return nil, err
			}
			if command == 'v' {
				y += cur.Y
			}
			cur.Y = y
			cmds = append(cmds, Cmd{Op: OpLineTo, P: cur})
		case 'Z', 'z':
			cmds = append(cmds, Cmd{Op: OpClose, P: start})
			cur = start
			command = 0
		default:
			return nil, errorf("unsupported path command %q", command)
		}
	}

	if len(cmds) > 0 && cmds[0].Op != OpMoveTo {
		return nil, errorf("path data must start with a move-to")
	}
	return cmds, nil
}

// Parse flattens straight-line path data into its vertex list. Close commands
// do not repeat the starting vertex.
func Parse(d string) ([]types.Point, error) {
	cmds, err := Commands(d)
	if err != nil {
		return nil, err
	}
	points := make([]types.Point, 0, len(cmds))
	for _, c := range cmds {
		if c.Op == OpClose {
			continue
		}
		points = append(points, c.P)
	}
	return points, nil
}

func isCommand(c byte) bool {
	switch c {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'Z', 'z',
		'C', 'c', 'S', 's', 'Q', 'q', 'T', 't', 'A', 'a':
		return true
	}
	return false
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte { return s.src[s.pos] }

func (s *scanner) skipSeparators() {
	for !s.done() {
		switch s.peek() {
		case ' ', '\t', '\n', '\r', ',':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) pair() (float64, float64, error) {
	x, err := s.number()
	if err != nil {
		return 0, 0, err
	}
	y, err := s.number()
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// number scans one SVG number. Adjacent numbers need no separator when the
// next one starts with a sign or a second decimal point ("10-5", ".5.5").
func (s *scanner) number() (float64, error) {
	s.skipSeparators()
	begin := s.pos
	if !s.done() && (s.peek() == '+' || s.peek() == '-') {
		s.pos++
	}
	digits := s.digits()
	if !s.done() && s.peek() == '.' {
		s.pos++
		digits += s.digits()
	}
	if digits == 0 {
		s.pos = begin
		return 0, errorf("expected number at offset %d", begin)
	}
	if !s.done() && (s.peek() == 'e' || s.peek() == 'E') {
		mark := s.pos
		s.pos++
		if !s.done() && (s.peek() == '+' || s.peek() == '-') {
			s.pos++
		}
		if s.digits() == 0 {
			s.pos = mark
		}
	}
	v, err := strconv.ParseFloat(s.src[begin:s.pos], 64)
	if err != nil {
		return 0, errorf("bad number %q: %w", s.src[begin:s.pos], err)
	}
	return v, nil
}

func (s *scanner) digits() int {
	n := 0
	for !s.done() && s.peek() >= '0' && s.peek() <= '9' {
		s.pos++
		n++
	}
	return n
}
