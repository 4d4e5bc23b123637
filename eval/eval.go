// Package eval owns the persistent namespace that submitted chart scripts run
// in. One Context lives for the whole session; every execute and evaluate call
// sees the definitions left behind by earlier calls.
package eval

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/dop251/goja"
)

// chartScriptErrorName identifies the error class scripts throw deliberately
// to report a user-facing problem.
const chartScriptErrorName = "ChartScriptError"

// seedScript installs the ChartScriptError constructor into the namespace.
const seedScript = `
function ChartScriptError(message) {
	this.name = "ChartScriptError";
	this.message = message === undefined ? "" : String(message);
}
ChartScriptError.prototype = Object.create(Error.prototype);
ChartScriptError.prototype.constructor = ChartScriptError;
`

// ScriptError is the typed outcome of a failed Execute. Domain errors are
// deliberate ChartScriptError throws; everything else is an uncaught fault
// and carries a diagnostic trace.
type ScriptError struct {
	Message string
	Domain  bool
	Trace   string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Context is the shared evaluation namespace. It is not safe for concurrent
// use; callers serialize script execution.
type Context struct {
	rt     *goja.Runtime
	stdout io.Writer
	exit   func(code int)
}

type Option func(c *Context)

// WithStdout redirects the seeded print builtin.
func WithStdout(w io.Writer) Option {
	return func(c *Context) {
		c.stdout = w
	}
}

// WithExitFunc replaces the process-exit hook behind the seeded exit builtin.
func WithExitFunc(f func(code int)) Option {
	return func(c *Context) {
		c.exit = f
	}
}

// New builds a Context seeded with the built-in bindings: print, exit, and
// the ChartScriptError constructor.
func New(opts ...Option) (*Context, error) {
	c := &Context{
		rt:     goja.New(),
		stdout: os.Stdout,
		exit:   os.Exit,
	}
	for _, o := range opts {
		o(c)
	}

	err := c.rt.Set("print", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		fmt.Fprintln(c.stdout, strings.Join(parts, " "))
		return goja.Undefined()
	})
	if err != nil {
		return nil, fmt.Errorf("seeding print builtin: %w", err)
	}

	err = c.rt.Set("exit", func(call goja.FunctionCall) goja.Value {
		code := 0
		if len(call.Arguments) > 0 {
			code = int(call.Arguments[0].ToInteger())
		}
		c.exit(code)
		return goja.Undefined()
	})
	if err != nil {
		return nil, fmt.Errorf("seeding exit builtin: %w", err)
	}

	if _, err := c.rt.RunString(seedScript); err != nil {
		return nil, fmt.Errorf("seeding namespace: %w", err)
	}

	return c, nil
}

// Execute runs script text against the namespace. It returns nil on success,
// leaving behind whatever the script defined.
func (c *Context) Execute(script string) (serr *ScriptError) {
	defer func() {
		if r := recover(); r != nil {
			serr = &ScriptError{
				Message: fmt.Sprint(r),
				Trace:   fmt.Sprintf("%v\n%s", r, debug.Stack()),
			}
		}
	}()

	if _, err := c.rt.RunString(script); err != nil {
		return c.classify(err)
	}
	return nil
}

// Evaluate runs a single expression and returns its exported native value.
func (c *Context) Evaluate(expr string) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("evaluating expression: %v", r)
		}
	}()

	val, err := c.rt.RunString(expr)
	if err != nil {
		return nil, c.classify(err)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}

// Define binds a value directly in the namespace, overwriting any prior
// binding of the same name.
func (c *Context) Define(name string, value any) error {
	if err := c.rt.Set(name, value); err != nil {
		return fmt.Errorf("defining global %q: %w", name, err)
	}
	return nil
}

func (c *Context) classify(err error) *ScriptError {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if obj, ok := exc.Value().(*goja.Object); ok {
			name := obj.Get("name")
			if name != nil && name.String() == chartScriptErrorName {
				message := ""
				if m := obj.Get("message"); m != nil {
					message = m.String()
				}
				return &ScriptError{Message: message, Domain: true}
			}
		}
		return &ScriptError{Message: exc.Value().String(), Trace: exc.String()}
	}
	return &ScriptError{Message: err.Error(), Trace: err.Error()}
}
