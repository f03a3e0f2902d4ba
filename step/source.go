package step

import (
	"os"
	"reflect"
	"runtime"
)

func runtimeFunc(fn reflect.Value) *runtime.Func {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil
	}
	return runtime.FuncForPC(fn.Pointer())
}

// funcSourceCode returns the implementation source text of a function by
// reading the file it is defined in. When the file is not readable (stripped
// binaries, generated code) the fully qualified function name stands in, so
// fingerprinting stays deterministic either way.
func funcSourceCode(fn reflect.Value) string {
	f := runtimeFunc(fn)
	if f == nil {
		return ""
	}
	file, _ := f.FileLine(fn.Pointer())
	if data, err := os.ReadFile(file); err == nil {
		return string(data)
	}
	return f.Name()
}
