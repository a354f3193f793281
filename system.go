package main

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
)

// System runs console lines: `cmd arg...` calls a registered command, `name = value`
// binds a variable and a lone name prints its value or calls a command with no
// arguments. Lists are written [a, b, c].
type System struct {
	cmds map[string]*Function
	help map[string]string
	vals map[string]any
}

func NewSystem() *System {
	return &System{
		cmds: make(map[string]*Function),
		help: make(map[string]string),
		vals: make(map[string]any),
	}
}

func (s *System) Register(name, help string, fn any) {
	s.cmds[name] = MakeFunc(fn)
	s.help[name] = help
}

func (s *System) Set(k string, v any) {
	s.vals[k] = v
}

func (s *System) Lookup(k string) (any, bool) {
	v, ok := s.vals[k]
	return v, ok
}

// Commands lists registered command names in order.
func (s *System) Commands() []string {
	out := make([]string, 0, len(s.cmds))
	for k := range s.cmds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *System) Help(name string) string {
	return s.help[name]
}

type Function struct {
	fn reflect.Value
}

func MakeFunc(fn any) *Function {
	rfv := reflect.ValueOf(fn)
	if rfv.Kind() != reflect.Func {
		panic(fmt.Sprintf("MakeFunc: %T is not a function", fn))
	}
	return &Function{fn: rfv}
}

func (f *Function) Call(args []any) (any, error) {
	return callFunc(f.fn, args)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func callFunc(rfv reflect.Value, args []any) (any, error) {
	t := rfv.Type()
	nargs := t.NumIn()

	if t.IsVariadic() {
		if len(args) < nargs-1 {
			return nil, errors.Errorf("expected at least %d arguments, got %d", nargs-1, len(args))
		}
	} else if len(args) != nargs {
		return nil, errors.Errorf("expected %d arguments, got %d", nargs, len(args))
	}

	var inargs []reflect.Value
	for i := 0; i < nargs; i++ {
		in := t.In(i)
		if t.IsVariadic() && i == nargs-1 {
			// the tail collects into the variadic slice, lists flatten into it
			var rest []any
			for _, a := range args[i:] {
				rv := reflect.ValueOf(a)
				if a == nil || rv.Kind() != reflect.Slice {
					rest = append(rest, a)
					continue
				}
				for j := 0; j < rv.Len(); j++ {
					rest = append(rest, rv.Index(j).Interface())
				}
			}
			for j, a := range rest {
				v, err := argToType(a, in.Elem())
				if err != nil {
					return nil, errors.Wrapf(err, "argument %d", i+j+1)
				}
				inargs = append(inargs, toValue(v, in.Elem()))
			}
			break
		}

		v, err := argToType(args[i], in)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i+1)
		}
		inargs = append(inargs, toValue(v, in))
	}

	out := rfv.Call(inargs)
	if len(out) > 0 && t.Out(len(out)-1) == errorType {
		if err, _ := out[len(out)-1].Interface().(error); err != nil {
			return nil, err
		}
		out = out[:len(out)-1]
	}

	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func toValue(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v).Convert(t)
}

var (
	keyType      = reflect.TypeOf(notes.Key(""))
	timbreType   = reflect.TypeOf(osc.Timbre(0))
	chordType    = reflect.TypeOf(notes.Chord(""))
	durationType = reflect.TypeOf(time.Duration(0))
)

func argToType(arg any, t reflect.Type) (any, error) {
	if arg != nil && reflect.TypeOf(arg) == t {
		return arg, nil
	}

	if t.Kind() == reflect.Slice {
		list, ok := arg.([]any)
		if !ok {
			list = []any{arg}
		}
		out := reflect.MakeSlice(t, 0, len(list))
		for _, a := range list {
			v, err := argToType(a, t.Elem())
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, toValue(v, t.Elem()))
		}
		return out.Interface(), nil
	}

	if t.Kind() == reflect.Interface {
		return arg, nil
	}

	sval, ok := arg.(string)
	if !ok {
		return nil, errors.Errorf("cannot use %T as %s", arg, t)
	}

	switch t {
	case keyType:
		k := notes.Key(sval)
		if _, _, err := notes.Split(k); err != nil {
			return nil, err
		}
		return k, nil
	case timbreType:
		return osc.ParseTimbre(sval)
	case chordType:
		c, ok := notes.ParseChord(sval)
		if !ok {
			return nil, errors.Errorf("unknown chord %q", sval)
		}
		return c, nil
	case durationType:
		return time.ParseDuration(sval)
	}

	switch t.Kind() {
	case reflect.String:
		return sval, nil
	case reflect.Int:
		return strconv.Atoi(sval)
	case reflect.Float64:
		return strconv.ParseFloat(sval, 64)
	case reflect.Bool:
		switch sval {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
		return strconv.ParseBool(sval)
	default:
		return nil, errors.Errorf("requested type unknown: %s", t)
	}
}

// ProcessCmd runs one line and returns the printable result, if any.
func (s *System) ProcessCmd(cmdl string) (string, error) {
	tokens, err := tokenize(cmdl)
	if err != nil {
		return "", err
	}

	val, err := s.processCmd(tokens)
	if err != nil || val == nil {
		return "", err
	}
	return format(val), nil
}

func (s *System) processCmd(tokens []string) (any, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	if len(tokens) > 2 && tokens[1] == "=" {
		if _, ok := s.cmds[tokens[0]]; ok {
			return nil, errors.Errorf("cannot assign to command %q", tokens[0])
		}
		val, err := s.resolve(tokens[2:])
		if err != nil {
			return nil, err
		}
		s.Set(tokens[0], val)
		return nil, nil
	}

	if len(tokens) == 1 {
		if val, ok := s.Lookup(tokens[0]); ok {
			return val, nil
		}
	}

	fn, ok := s.cmds[tokens[0]]
	if !ok {
		return nil, errors.Errorf("unknown command %q", tokens[0])
	}

	args, err := s.parseArgs(tokens[1:])
	if err != nil {
		return nil, err
	}
	out, err := fn.Call(args)
	if err != nil {
		return nil, errors.Wrap(err, tokens[0])
	}
	return out, nil
}

// resolve evaluates the right hand side of an assignment: a command call, a list or a
// single value.
func (s *System) resolve(tokens []string) (any, error) {
	if _, ok := s.cmds[tokens[0]]; ok {
		return s.processCmd(tokens)
	}
	args, err := s.parseArgs(tokens)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, errors.Errorf("expected one value, got %d", len(args))
	}
	return args[0], nil
}

func (s *System) parseArgs(tokens []string) ([]any, error) {
	var out []any
	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "[":
			items, end, err := scanTuple("[", "]", tokens[i:])
			if err != nil {
				return nil, err
			}
			var list []any
			for _, item := range items {
				vals, err := s.parseArgs(item)
				if err != nil {
					return nil, err
				}
				list = append(list, vals...)
			}
			out = append(out, list)
			i += end
		case "]", ",", "=":
			return nil, errors.Errorf("unexpected %q", tokens[i])
		default:
			if v, ok := s.Lookup(tokens[i]); ok {
				out = append(out, v)
			} else {
				out = append(out, tokens[i])
			}
		}
	}
	return out, nil
}

func format(v any) string {
	switch v := v.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []notes.Key:
		parts := make([]string, len(v))
		for i, k := range v {
			parts[i] = string(k)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}

// scans tokens of the form [ a, [b, c], d ]
// returns [][]string{ ["a"], ["[", "b", ",", "c", "]"], ["d"] } and the index of the closing sigil
func scanTuple(beg, end string, tokens []string) ([][]string, int, error) {
	if len(tokens) == 0 || tokens[0] != beg {
		return nil, 0, errors.Errorf("expected %q at beginning of sequence", beg)
	}

	var out [][]string

	cur := 1
	depth := 0
	for i := 1; i < len(tokens); i++ {
		switch {
		case tokens[i] == beg:
			depth++
		case tokens[i] == end && depth > 0:
			depth--
		case depth > 0:
		case tokens[i] == ",":
			if i == cur {
				return nil, 0, errors.Errorf("empty element at index %d", len(out))
			}
			out = append(out, tokens[cur:i])
			cur = i + 1
		case tokens[i] == end:
			if i > cur {
				out = append(out, tokens[cur:i])
			}
			return out, i, nil
		}
	}

	return nil, 0, errors.Errorf("missing %q", end)
}

func isWordRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '#', '.', '/', '_', '-', ':', '~', '+':
		return true
	}
	return false
}

func tokenize(s string) ([]string, error) {
	var out []string
	var wordstart int
	inword := false
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		switch {
		case isWordRune(runes[i]):
			if !inword {
				inword = true
				wordstart = i
			}
		case unicode.IsSpace(runes[i]):
			if inword {
				out = append(out, string(runes[wordstart:i]))
				inword = false
			}
		case runes[i] == '"':
			if inword {
				return nil, errors.Errorf("unexpected quote at index %d", i)
			}
			end := strings.IndexRune(string(runes[i+1:]), '"')
			if end < 0 {
				return nil, errors.Errorf("unterminated quote at index %d", i)
			}
			rest := []rune(string(runes[i+1:])[:end])
			out = append(out, string(rest))
			i += len(rest) + 1
		case runes[i] == '=',
			runes[i] == ',',
			runes[i] == '[',
			runes[i] == ']':
			if inword {
				out = append(out, string(runes[wordstart:i]))
				inword = false
			}
			out = append(out, string(runes[i]))
		default:
			return nil, errors.Errorf("invalid character at index %d: %q", i, runes[i])
		}
	}
	if inword {
		out = append(out, string(runes[wordstart:]))
	}

	return out, nil
}
