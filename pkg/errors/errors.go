package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/butter-bot-machines/slskconf/pkg/logging"
)

// Global registry for error types
var (
	globalRegistry = NewRegistry()

	// Standard error types
	ConfigError   = globalRegistry.Register("ConfigError", 1)
	StorageError  = globalRegistry.Register("StorageError", 2)
	SecurityError = globalRegistry.Register("SecurityError", 3)
	BackupError   = globalRegistry.Register("BackupError", 4)
	SystemError   = globalRegistry.Register("SystemError", 5)
	UnknownError  = globalRegistry.Register("UnknownError", 6)
	PanicError    = globalRegistry.Register("PanicError", 500)
)

// New creates a new error with type and message
func New(errType ErrorType, msg string, args ...interface{}) Error {
	t, ok := errType.(*errorType)
	if !ok {
		t = UnknownError.(*errorType)
	}
	return &concreteError{
		errType: t,
		message: fmt.Sprintf(msg, args...),
		stack:   captureStackTrace(2),
		context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with additional context. The wrapper keeps
// the type of a wrapped Error.
func Wrap(err error, msg string, args ...interface{}) Error {
	if err == nil {
		return nil
	}
	t := UnknownError.(*errorType)
	var inner *concreteError
	if stderrors.As(err, &inner) {
		t = inner.errType
	}
	return &concreteError{
		errType: t,
		message: fmt.Sprintf(msg, args...) + ": " + err.Error(),
		cause:   err,
		stack:   captureStackTrace(2),
		context: make(map[string]interface{}),
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// NewRegistry creates a new error type registry
func NewRegistry() Registry {
	return &registry{
		types: make(map[string]*errorType),
	}
}

// NewPanicHandler creates a new panic handler
func NewPanicHandler(reg Registry, logger logging.Logger) PanicHandler {
	return &panicHandler{
		registry: reg,
		logger:   logger,
	}
}

// NewAggregate creates a new error aggregate
func NewAggregate() Aggregate {
	return &errorAggregate{
		errs: make([]error, 0),
	}
}

type errorType struct {
	name string
	code int
}

func (t *errorType) Name() string {
	return t.name
}

func (t *errorType) Code() int {
	return t.code
}

func (t *errorType) New(msg string, args ...interface{}) Error {
	return &concreteError{
		errType: t,
		message: fmt.Sprintf(msg, args...),
		stack:   captureStackTrace(2),
		context: make(map[string]interface{}),
	}
}

func (t *errorType) Wrap(err error, msg string, args ...interface{}) Error {
	if err == nil {
		return nil
	}
	return &concreteError{
		errType: t,
		message: fmt.Sprintf(msg, args...) + ": " + err.Error(),
		cause:   err,
		stack:   captureStackTrace(2),
		context: make(map[string]interface{}),
	}
}

type concreteError struct {
	errType *errorType
	message string
	cause   error
	stack   StackTrace
	context map[string]interface{}
}

func (e *concreteError) Error() string {
	if e == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(e.message)

	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.context[k])
		}
		b.WriteString("]")
	}

	return b.String()
}

func (e *concreteError) Format(f fmt.State, c rune) {
	if e == nil {
		return
	}

	switch c {
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "%s\n", e.Error())
			if e.cause != nil {
				fmt.Fprintf(f, "Caused by: %+v\n", e.cause)
			}
			fmt.Fprintf(f, "Stack trace:\n%s", e.stack.String())
		} else {
			fmt.Fprintf(f, "%s", e.Error())
		}
	default:
		fmt.Fprintf(f, "%s", e.Error())
	}
}

func (e *concreteError) WithContext(key string, value interface{}) Error {
	if e == nil {
		return nil
	}
	e.context[key] = value
	return e
}

func (e *concreteError) WithType(errType ErrorType) Error {
	if e == nil {
		return nil
	}
	if t, ok := errType.(*errorType); ok {
		e.errType = t
	}
	return e
}

func (e *concreteError) Type() ErrorType {
	return e.errType
}

func (e *concreteError) Stack() StackTrace {
	return e.stack
}

func (e *concreteError) Context() map[string]interface{} {
	return e.context
}

func (e *concreteError) Cause() error {
	return e.cause
}

func (e *concreteError) Unwrap() error {
	return e.cause
}

type stackFrame struct {
	file     string
	line     int
	function string
}

func (f *stackFrame) File() string {
	return f.file
}

func (f *stackFrame) Line() int {
	return f.line
}

func (f *stackFrame) Function() string {
	return f.function
}

func (f *stackFrame) String() string {
	return fmt.Sprintf("%s:%d %s", f.file, f.line, f.function)
}

type stackTrace struct {
	frames []Frame
}

func (st *stackTrace) Frames() []Frame {
	return st.frames
}

func (st *stackTrace) String() string {
	var b strings.Builder
	for _, frame := range st.frames {
		fmt.Fprintf(&b, "  %s\n", frame.String())
	}
	return b.String()
}

func captureStackTrace(skip int) StackTrace {
	var frames []Frame
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}

		shortFile := file
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			shortFile = file[idx+1:]
		}

		frames = append(frames, &stackFrame{
			file:     shortFile,
			line:     line,
			function: fn.Name(),
		})

		if len(frames) >= 32 {
			break
		}
	}
	return &stackTrace{frames: frames}
}

type errorAggregate struct {
	errs []error
}

func (a *errorAggregate) Write(p []byte) (n int, err error) {
	a.Add(fmt.Errorf("%s", p))
	return len(p), nil
}

func (a *errorAggregate) Add(err error) {
	if err != nil {
		a.errs = append(a.errs, err)
	}
}

func (a *errorAggregate) HasErrors() bool {
	return len(a.errs) > 0
}

func (a *errorAggregate) Error() string {
	if !a.HasErrors() {
		return ""
	}

	if len(a.errs) == 1 {
		return a.errs[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:\n", len(a.errs))
	for i, err := range a.errs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %v", i+1, err)
	}
	return b.String()
}

func (a *errorAggregate) Errors() []error {
	return a.errs
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (a *errorAggregate) Unwrap() []error {
	return a.errs
}

func (a *errorAggregate) ErrorOrNil() error {
	if !a.HasErrors() {
		return nil
	}
	return a
}

type registry struct {
	types map[string]*errorType
	mu    sync.RWMutex
}

func (r *registry) Register(name string, code int) ErrorType {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.types[name]; ok {
		return t
	}
	t := &errorType{
		name: name,
		code: code,
	}
	r.types[name] = t
	return t
}

func (r *registry) Get(name string) (ErrorType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

func (r *registry) List() []ErrorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]ErrorType, 0, len(r.types))
	for _, t := range r.types {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Code() < types[j].Code() })
	return types
}

type panicHandler struct {
	registry Registry
	logger   logging.Logger
}

func (h *panicHandler) Handle(v interface{}) error {
	errType, ok := h.registry.Get("PanicError")
	if !ok {
		errType = h.registry.Register("PanicError", 500)
	}

	var msg string
	var cause error
	switch v := v.(type) {
	case string:
		msg = v
	case error:
		msg = v.Error()
		cause = v
	default:
		msg = fmt.Sprintf("%v", v)
	}

	if h.logger != nil {
		h.logger.Error("panic recovered", "error", msg)
	}

	return &concreteError{
		errType: errType.(*errorType),
		message: fmt.Sprintf("panic recovered: %s", msg),
		cause:   cause,
		stack:   captureStackTrace(3),
		context: map[string]interface{}{
			"recovered": true,
		},
	}
}

func (h *panicHandler) Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	err := h.Handle(r)
	if errp != nil {
		*errp = err
	}
}
