// Package vectorops describes the data-transform operations the worker can
// apply to result vectors. The catalog is generated in bulk for the controller
// to display; descriptors are read-only once built.
package vectorops

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Op describes one available vector operation.
type Op struct {
	Module    string `json:"module"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Docstring string `json:"docstring"`
	Label     string `json:"label"`
	Example   string `json:"example"`
}

type spec struct {
	name      string
	signature string
	docstring string
	label     string
	example   string
}

const module = "vectorops"

// catalog lists every operation in display order.
var catalog = []spec{
	{"mean", "mean(r)", "Computes the running mean of the vector.", "Mean", "apply('mean')"},
	{"sum", "sum(r)", "Computes the cumulative sum of the vector values.", "Sum", "apply('sum')"},
	{"add", "add(r, c)", "Adds the constant c to every value.", "Add constant", "apply('add', c=100)"},
	{"compare", "compare(r, threshold, less=None, equal=None, greater=None)", "Replaces values based on their relation to a threshold.", "Compare with threshold", "apply('compare', threshold=9000, less=-1, greater=1)"},
	{"crop", "crop(r, t1, t2)", "Discards values outside the [t1, t2] time interval.", "Crop in time", "apply('crop', t1=1.0, t2=2.0)"},
	{"difference", "difference(r)", "Subtracts the previous value from each value.", "Difference", "apply('difference')"},
	{"diffquot", "diffquot(r)", "Computes the difference quotient of consecutive values.", "Difference quotient", "apply('diffquot')"},
	{"divide_by", "divide_by(r, a)", "Divides every value by the constant a.", "Divide by constant", "apply('divide_by', a=1000)"},
	{"divtime", "divtime(r)", "Divides every value by its timestamp.", "Divide by time", "apply('divtime')"},
	{"expression", "expression(r, expr)", "Evaluates an arbitrary expression over value and time columns.", "Expression", "apply('expression', expr='y + 2 * t')"},
	{"integrate", "integrate(r, interpolation='sample-hold')", "Integrates the vector over time with the given interpolation.", "Integrate", "apply('integrate', interpolation='linear')"},
	{"lineartrend", "lineartrend(r, a)", "Adds a linear component with the given steepness.", "Linear trend", "apply('lineartrend', a=0.5)"},
	{"modulo", "modulo(r, m)", "Computes every value modulo m.", "Modulo", "apply('modulo', m=256)"},
	{"movingavg", "movingavg(r, alpha)", "Applies an exponentially weighted moving average.", "Moving average", "apply('movingavg', alpha=0.1)"},
	{"multiply_by", "multiply_by(r, a)", "Multiplies every value by the constant a.", "Multiply by constant", "apply('multiply_by', a=8)"},
	{"removerepeats", "removerepeats(r)", "Removes repeated consecutive values.", "Remove repeats", "apply('removerepeats')"},
	{"slidingwinavg", "slidingwinavg(r, window_size=10)", "Replaces every value with the mean of a sliding window.", "Sliding window average", "apply('slidingwinavg', window_size=100)"},
	{"timeavg", "timeavg(r, interpolation='sample-hold')", "Computes the time average of the vector.", "Time average", "apply('timeavg', interpolation='linear')"},
	{"timeshift", "timeshift(r, dt)", "Shifts every timestamp by dt.", "Time shift", "apply('timeshift', dt=-0.5)"},
	{"winavg", "winavg(r, window_size=10)", "Batches values into fixed windows and averages each window.", "Window average", "apply('winavg', window_size=10)"},
}

// Report builds the full descriptor list. A descriptor whose construction
// fails is logged and skipped; the remaining descriptors are still returned.
func Report(log *zap.SugaredLogger) []Op {
	return buildAll(catalog, log)
}

func buildAll(specs []spec, log *zap.SugaredLogger) []Op {
	ops := make([]Op, 0, len(specs))
	for _, s := range specs {
		op, err := build(s)
		if err != nil {
			log.Warnf("skipping vector operation %q: %s", s.label, err)
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

func build(s spec) (Op, error) {
	if s.name == "" {
		return Op{}, fmt.Errorf("empty name")
	}
	if s.label == "" {
		return Op{}, fmt.Errorf("empty label")
	}
	if !strings.HasPrefix(s.signature, s.name+"(") || !strings.HasSuffix(s.signature, ")") {
		return Op{}, fmt.Errorf("signature %q does not match name %q", s.signature, s.name)
	}
	return Op{
		Module:    module,
		Name:      s.name,
		Signature: s.signature,
		Docstring: s.docstring,
		Label:     s.label,
		Example:   s.example,
	}, nil
}
