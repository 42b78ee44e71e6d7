package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tideway/tideway/engine"
	"github.com/tideway/tideway/graph"
	"github.com/tideway/tideway/pattern"
	"github.com/tideway/tideway/sample"
)

// session holds the live state behind the REPL: named tracks compiled into a
// signal graph on every change. Engine swaps are atomic, so tracks only need
// to be consistent from the REPL goroutine's point of view.
type session struct {
	eng    *engine.Engine
	bank   *sample.Bank
	tracks map[string]*track
	order  []string // insertion order keeps the mix stable across rebuilds

	revRoom, revDamp, revMix float64
}

type track struct {
	code string
	pat  pattern.Pattern[pattern.Value]

	gain, pan, speed, offset float64
	note, attack, release    float64
	n, cut                   int
	loop                     bool
}

func newSession(eng *engine.Engine, bank *sample.Bank) *session {
	return &session{
		eng:    eng,
		bank:   bank,
		tracks: make(map[string]*track),
	}
}

func (s *session) process(out [][]float32) {
	l, r := s.eng.RenderBlock()
	copy(out[0], l)
	copy(out[1], r)
}

// rebuild compiles the current tracks into a fresh graph and swaps it in.
func (s *session) rebuild() error {
	if len(s.order) == 0 {
		s.eng.ClearGraph()
		return nil
	}
	g := graph.New(s.eng.Config().SampleRate)

	var sigs []graph.Signal
	for _, name := range s.order {
		t := s.tracks[name]
		p := graph.DefaultSampleParams()
		p.Gain = graph.Const(t.gain)
		p.Pan = graph.Const(t.pan)
		p.Speed = graph.Const(t.speed)
		p.Offset = graph.Const(t.offset)
		p.Note = graph.Const(t.note)
		p.Attack = graph.Const(t.attack)
		p.Release = graph.Const(t.release)
		p.N = graph.Const(float64(t.n))
		p.CutGroup = graph.Const(float64(t.cut))
		if t.loop {
			p.Loop = graph.Const(1)
		}
		sigs = append(sigs, graph.From(g.Sample(t.pat, p)))
	}

	sum := sigs[0]
	for _, sig := range sigs[1:] {
		sum = graph.From(g.Add(sum, sig))
	}
	if s.revMix > 0 {
		sum = graph.From(g.Reverb(sum, graph.Const(s.revRoom), graph.Const(s.revDamp), graph.Const(s.revMix)))
	}
	g.SetOutput(sum)
	return s.eng.SetGraph(g)
}

func (s *session) exec(input string) (string, error) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return "", fmt.Errorf("invalid command: %v", input)
	}
	name, args := parts[0], parts[1:]

	for _, cmd := range commands {
		if name != cmd.name {
			continue
		}
		if len(args) < cmd.minArgs {
			return "", fmt.Errorf("%s: not enough args, usage: %s", cmd.name, cmd.usage)
		}
		return cmd.run(s, args)
	}
	return "", fmt.Errorf("unknown command: %s (try help)", name)
}

type command struct {
	name    string
	usage   string
	run     func(s *session, args []string) (string, error)
	minArgs int
}

var commands = []command{
	{"play", "play <track> <pattern>", playCommand, 2},
	{"stop", "stop [track ...]", stopCommand, 0},
	{"set", "set <track> <param> <value>", setCommand, 3},
	{"reverb", "reverb <room> <damp> <mix>", reverbCommand, 3},
	{"cps", "cps <cycles-per-second>", cpsCommand, 1},
	{"hush", "hush", hushCommand, 0},
	{"resume", "resume", resumeCommand, 0},
	{"panic", "panic", panicCommand, 0},
	{"stats", "stats", statsCommand, 0},
	{"samples", "samples", samplesCommand, 0},
	{"help", "help", helpCommand, 0},
}

func playCommand(s *session, args []string) (string, error) {
	name := args[0]
	code := strings.Join(args[1:], " ")
	pat, err := pattern.Parse(code)
	if err != nil {
		return "", err
	}
	t, ok := s.tracks[name]
	if !ok {
		t = &track{gain: 1, speed: 1, release: 0}
		s.tracks[name] = t
		s.order = append(s.order, name)
	}
	t.code = code
	t.pat = pat
	s.eng.Unhush()
	return "", s.rebuild()
}

func stopCommand(s *session, args []string) (string, error) {
	if len(args) == 0 {
		s.tracks = make(map[string]*track)
		s.order = nil
		return "", s.rebuild()
	}
	for _, name := range args {
		if _, ok := s.tracks[name]; !ok {
			return "", fmt.Errorf("unknown track: %s", name)
		}
		delete(s.tracks, name)
		for i, n := range s.order {
			if n == name {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return "", s.rebuild()
}

func setCommand(s *session, args []string) (string, error) {
	t, ok := s.tracks[args[0]]
	if !ok {
		return "", fmt.Errorf("unknown track: %s", args[0])
	}
	v, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return "", fmt.Errorf("bad value %q: %v", args[2], err)
	}
	switch args[1] {
	case "gain":
		t.gain = v
	case "pan":
		t.pan = v
	case "speed":
		t.speed = v
	case "offset":
		t.offset = v
	case "note":
		t.note = v
	case "attack":
		t.attack = v
	case "release":
		t.release = v
	case "n":
		t.n = int(v)
	case "cut":
		t.cut = int(v)
	case "loop":
		t.loop = v != 0
	default:
		return "", fmt.Errorf("unknown param: %s", args[1])
	}
	return "", s.rebuild()
}

func reverbCommand(s *session, args []string) (string, error) {
	vals := make([]float64, 3)
	for i, a := range args[:3] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return "", fmt.Errorf("bad value %q: %v", a, err)
		}
		vals[i] = v
	}
	s.revRoom, s.revDamp, s.revMix = vals[0], vals[1], vals[2]
	return "", s.rebuild()
}

func cpsCommand(s *session, args []string) (string, error) {
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || v <= 0 {
		return "", fmt.Errorf("bad tempo: %s", args[0])
	}
	s.eng.SetCPS(v)
	return "", nil
}

func hushCommand(s *session, args []string) (string, error) {
	s.eng.Hush()
	return "", nil
}

func resumeCommand(s *session, args []string) (string, error) {
	s.eng.Unhush()
	return "", nil
}

func panicCommand(s *session, args []string) (string, error) {
	s.eng.Panic()
	return "", nil
}

func statsCommand(s *session, args []string) (string, error) {
	st := s.eng.Stats()
	return fmt.Sprintf("cps %.4g  voices %d  triggers %d  steals %d  dropped %d  overruns %d",
		st.CPS, st.ActiveVoices, st.Triggers, st.Steals, st.DroppedTriggers, st.Overruns), nil
}

func samplesCommand(s *session, args []string) (string, error) {
	names := s.bank.Names()
	if len(names) == 0 {
		return "no samples loaded", nil
	}
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s(%d)", name, s.bank.Count(name))
	}
	return b.String(), nil
}

func helpCommand(s *session, args []string) (string, error) {
	var b strings.Builder
	for _, cmd := range commands {
		fmt.Fprintf(&b, "%s\n", cmd.usage)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
