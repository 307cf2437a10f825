package stain

import (
	"fmt"
	"strings"
)

// Sprintf mirrors fmt.Sprintf. The format is walked verb by verb and each
// operand rendered in isolation to locate its bytes in the result. Only a
// bare %s or %v whose rendering equals the operand verbatim carries taint;
// padded, quoted, or converted renderings do not preserve byte positions.
// Dynamic widths (*), argument indexes ([n]), and any mismatch between the
// walk and the final output abandon attribution for the whole call.
func (t *Tracker) Sprintf(format string, args ...any) string {
	res := fmt.Sprintf(format, args...)
	if len(res) == 0 {
		return res
	}
	tracked := false
	for _, a := range args {
		switch x := a.(type) {
		case string:
			tracked = t.IsTracked(x)
		case []byte:
			tracked = t.IsTrackedBytes(x)
		}
		if tracked {
			break
		}
	}
	if !tracked {
		return res
	}
	t.contain("sprintf", func() error {
		out, ok := t.formatRanges(format, args, res)
		if !ok {
			t.stats.dropped.Add(1)
			return nil
		}
		if len(out) == 0 {
			return nil
		}
		return register(t, res, out)
	})
	return res
}

// formatRanges maps tracked operands to their positions in res. ok is false
// when the format uses features the walk does not model or when the walked
// length disagrees with the real output.
func (t *Tracker) formatRanges(format string, args []any, res string) (out []TaintRange, ok bool) {
	off, argi := 0, 0
	for i := 0; i < len(format); {
		if format[i] != '%' {
			off++
			i++
			continue
		}
		j := i + 1
		if j < len(format) && format[j] == '%' {
			off++
			i = j + 1
			continue
		}
		for j < len(format) && strings.ContainsRune("+-# 0", rune(format[j])) {
			j++
		}
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		if j < len(format) && format[j] == '.' {
			j++
			for j < len(format) && format[j] >= '0' && format[j] <= '9' {
				j++
			}
		}
		if j >= len(format) || format[j] == '*' || format[j] == '[' {
			return nil, false
		}
		if argi >= len(args) {
			return nil, false
		}
		arg := args[argi]
		argi++
		rendered := fmt.Sprintf(format[i:j+1], arg)
		if verb := format[i : j+1]; verb == "%s" || verb == "%v" {
			switch x := arg.(type) {
			case string:
				if rendered == x {
					out = appendShifted(out, t.rangesOf(x), off)
				}
			case []byte:
				if rendered == string(x) {
					out = appendShifted(out, t.rangesOfBytes(x), off)
				}
			}
		}
		off += len(rendered)
		i = j + 1
	}
	if off != len(res) || argi != len(args) {
		return nil, false
	}
	return out, true
}
