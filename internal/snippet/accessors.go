package snippet

import (
	"regexp"
	"strings"
	"time"
)

// StrAccessor implements Series.str: vectorised string methods where
// missing cells stay missing.
type StrAccessor struct{ s *Series }

func (*StrAccessor) TypeName() string { return "StringMethods" }

func (x *StrAccessor) each(f func(string) (Value, error)) (Value, error) {
	return x.s.mapValues(func(v Value) (Value, error) {
		str, ok := v.(string)
		if !ok {
			return nil, nil
		}
		return f(str)
	})
}

// GetItem implements s.str[i] and s.str[a:b].
func (x *StrAccessor) GetItem(key Value) (Value, error) {
	return x.each(func(s string) (Value, error) {
		rs := []rune(s)
		items := make([]Value, len(rs))
		for i, r := range rs {
			items[i] = string(r)
		}
		if sl, ok := key.(*SliceVal); ok {
			part, err := sliceValues(items, sl)
			if err != nil {
				return nil, err
			}
			return joinRunes(part), nil
		}
		i, err := seqIndex(items, key, "string")
		if err != nil {
			return nil, nil
		}
		return items[i], nil
	})
}

func joinRunes(parts []Value) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.(string))
	}
	return b.String()
}

func compilePattern(pat string, literal, ignoreCase bool) (*regexp.Regexp, error) {
	if literal {
		pat = regexp.QuoteMeta(pat)
	}
	if ignoreCase {
		pat = "(?i)" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, Errorf("error", "%v", err)
	}
	return re, nil
}

func flag(v Value, def bool) bool {
	if v == nil {
		return def
	}
	b, _ := Truth(v)
	return b
}

func (x *StrAccessor) GetAttr(name string) (Value, error) {
	method := func(f func(in *Interp, a *Args) (Value, error)) (Value, error) {
		return &Builtin{Name: name, Fn: f}, nil
	}
	switch name {
	case "len":
		return method(func(*Interp, *Args) (Value, error) {
			return x.each(func(s string) (Value, error) { return float64(len([]rune(s))), nil })
		})
	case "contains", "match", "fullmatch":
		return method(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "pat", "case", "flags", "na", "regex")
			if err != nil {
				return nil, err
			}
			literal := !flag(p[4], true)
			re, err := compilePattern(Str(p[0]), literal, !flag(p[1], true))
			if err != nil {
				return nil, err
			}
			out := make([]Value, len(x.s.Values))
			for i, v := range x.s.Values {
				s, ok := v.(string)
				if !ok {
					out[i] = p[3]
					continue
				}
				switch name {
				case "contains":
					out[i] = re.MatchString(s)
				case "match":
					loc := re.FindStringIndex(s)
					out[i] = loc != nil && loc[0] == 0
				default:
					loc := re.FindStringIndex(s)
					out[i] = loc != nil && loc[0] == 0 && loc[1] == len(s)
				}
			}
			return x.s.derive(out), nil
		})
	case "replace":
		return method(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "pat", "repl", "n", "case", "flags", "regex")
			if err != nil {
				return nil, err
			}
			pat, repl := Str(p[0]), Str(p[1])
			if !flag(p[5], false) {
				return x.each(func(s string) (Value, error) { return strings.ReplaceAll(s, pat, repl), nil })
			}
			re, err := compilePattern(pat, false, !flag(p[3], true))
			if err != nil {
				return nil, err
			}
			repl = regexp.MustCompile(`\\(\d)`).ReplaceAllString(repl, "$${$1}")
			return x.each(func(s string) (Value, error) { return re.ReplaceAllString(s, repl), nil })
		})
	case "split", "rsplit":
		return method(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "pat", "n", "expand", "regex")
			if err != nil {
				return nil, err
			}
			n := -1
			if p[1] != nil {
				if n, err = ToInt(p[1]); err != nil {
					return nil, err
				}
			}
			parts, err := x.each(func(s string) (Value, error) { return &List{Items: pySplit(s, p[0], n)}, nil })
			if err != nil || !flag(p[2], false) {
				return parts, err
			}
			return expandParts(parts.(*Series)), nil
		})
	case "get":
		return method(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "i")
			if err != nil {
				return nil, err
			}
			return x.s.mapValues(func(v Value) (Value, error) {
				var items []Value
				switch c := v.(type) {
				case *List:
					items = c.Items
				case string:
					items, _ = Iterate(c)
				default:
					return nil, nil
				}
				i, err := seqIndex(items, p[0], "list")
				if err != nil {
					return nil, nil
				}
				return items[i], nil
			})
		})
	case "slice":
		return method(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "start", "stop", "step")
			if err != nil {
				return nil, err
			}
			return x.GetItem(&SliceVal{Lo: p[0], Hi: p[1], Step: p[2]})
		})
	case "extract":
		return method(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "pat", "flags", "expand")
			if err != nil {
				return nil, err
			}
			re, err := compilePattern(Str(p[0]), false, false)
			if err != nil {
				return nil, err
			}
			if re.NumSubexp() == 0 {
				return nil, valueErrorf("pattern contains no capture groups")
			}
			return x.each(func(s string) (Value, error) {
				m := re.FindStringSubmatch(s)
				if m == nil {
					return nil, nil
				}
				return m[1], nil
			})
		})
	case "cat":
		return method(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "others", "sep", "na_rep")
			if err != nil {
				return nil, err
			}
			sep := ""
			if p[1] != nil {
				sep = Str(p[1])
			}
			if o, ok := p[0].(*Series); ok {
				if len(o.Values) != len(x.s.Values) {
					return nil, valueErrorf("All arrays must be same length")
				}
				out := make([]Value, len(x.s.Values))
				for i, v := range x.s.Values {
					if v != nil && o.Values[i] != nil {
						out[i] = Str(v) + sep + Str(o.Values[i])
					}
				}
				return x.s.derive(out), nil
			}
			parts := make([]string, 0, len(x.s.Values))
			for _, v := range x.s.Values {
				if v != nil {
					parts = append(parts, Str(v))
				}
			}
			return strings.Join(parts, sep), nil
		})
	case "pad":
		return method(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "width", "side", "fillchar")
			if err != nil {
				return nil, err
			}
			side := "left"
			if p[1] != nil {
				side = Str(p[1])
			}
			mname := map[string]string{"left": "rjust", "right": "ljust", "both": "center"}[side]
			return x.delegate(nil, mname, &Args{Pos: []Value{p[0], orDefault(p[2], " ")}})
		})
	}
	probe := stringMethod("", name)
	if _, ok := probe.(*Builtin); !ok {
		return nil, Errorf("AttributeError", "'StringMethods' object has no attribute '%s'", name)
	}
	return method(func(in *Interp, a *Args) (Value, error) { return x.delegate(in, name, a) })
}

// delegate applies the scalar string method to every present cell.
func (x *StrAccessor) delegate(in *Interp, name string, a *Args) (Value, error) {
	return x.each(func(s string) (Value, error) {
		return stringMethod(s, name).(*Builtin).Fn(in, a)
	})
}

func orDefault(v, def Value) Value {
	if v == nil {
		return def
	}
	return v
}

// expandParts turns a series of lists into a frame with columns 0..n-1.
func expandParts(s *Series) *Frame {
	width := 0
	for _, v := range s.Values {
		if l, ok := v.(*List); ok {
			width = max(width, len(l.Items))
		}
	}
	cols := make([][]Value, width)
	for j := range cols {
		cols[j] = make([]Value, len(s.Values))
	}
	for i, v := range s.Values {
		if l, ok := v.(*List); ok {
			for j, it := range l.Items {
				cols[j][i] = it
			}
		}
	}
	f := newFrame(nil, s.Index)
	for j, c := range cols {
		f.mustSet(formatFloat(float64(j)), c)
	}
	return f
}

// DtAccessor implements Series.dt over temporal cells.
type DtAccessor struct{ s *Series }

func (*DtAccessor) TypeName() string { return "DatetimeProperties" }

func (x *DtAccessor) each(f func(time.Time) (Value, error)) (*Series, error) {
	return x.s.mapValues(func(v Value) (Value, error) {
		t, ok := timeOf(v)
		if !ok {
			return nil, nil
		}
		return f(t)
	})
}

// periodLabel renders t at the given frequency like Period.__str__.
func periodLabel(t time.Time, freq string) (string, error) {
	switch strings.ToUpper(strings.TrimSuffix(strings.TrimSuffix(freq, "S"), "E")) {
	case "M":
		return t.Format("2006-01"), nil
	case "Q":
		return t.Format("2006") + "Q" + formatFloat(float64((int(t.Month())-1)/3+1)), nil
	case "Y", "A":
		return t.Format("2006"), nil
	case "D":
		return t.Format("2006-01-02"), nil
	case "W":
		start := t.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
		return start.Format("2006-01-02") + "/" + start.AddDate(0, 0, 6).Format("2006-01-02"), nil
	case "H":
		return t.Format("2006-01-02 15:00"), nil
	}
	return "", valueErrorf("Invalid frequency: %s", freq)
}

func (x *DtAccessor) GetAttr(name string) (Value, error) {
	switch name {
	case "date":
		return x.each(func(t time.Time) (Value, error) {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
		})
	case "to_period":
		return &Builtin{Name: name, Fn: func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "freq")
			if err != nil {
				return nil, err
			}
			freq := "D"
			if p[0] != nil {
				freq = Str(p[0])
			}
			if _, err := periodLabel(time.Time{}, freq); err != nil {
				return nil, err
			}
			return x.each(func(t time.Time) (Value, error) { return periodLabel(t, freq) })
		}}, nil
	case "floor":
		return &Builtin{Name: name, Fn: func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "freq")
			if err != nil {
				return nil, err
			}
			return x.each(func(t time.Time) (Value, error) { return floorTime(t, Str(p[0])) })
		}}, nil
	}
	probe := timeAttr(time.Unix(0, 0).UTC(), name)
	switch probe.(type) {
	case nil:
		return nil, Errorf("AttributeError", "'DatetimeProperties' object has no attribute '%s'", name)
	case *Builtin:
		return &Builtin{Name: name, Fn: func(in *Interp, a *Args) (Value, error) {
			return x.each(func(t time.Time) (Value, error) { return timeAttr(t, name).(*Builtin).Fn(in, a) })
		}}, nil
	}
	return x.each(func(t time.Time) (Value, error) { return timeAttr(t, name), nil })
}

func floorTime(t time.Time, freq string) (Value, error) {
	switch strings.ToUpper(freq) {
	case "D":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
	case "H":
		return t.Truncate(time.Hour), nil
	case "MS", "M":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()), nil
	}
	return nil, valueErrorf("Invalid frequency: %s", freq)
}
