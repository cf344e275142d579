package logging

import (
	"runtime"
	"strings"
	"sync"
)

const maximumCallerDepth = 25

var (
	callerInitOnce     sync.Once
	logrusPackage      = "github.com/sirupsen/logrus"
	loggingPackagePath string
)

// getCaller returns the first stack frame outside this package and logrus.
// logrus computes its own caller relative to its package, which reports our
// wrapper instead of the call site, so we resolve it ourselves.
func getCaller() *runtime.Frame {
	callerInitOnce.Do(func() {
		pcs := make([]uintptr, 1)
		runtime.Callers(1, pcs)
		frame, _ := runtime.CallersFrames(pcs).Next()
		loggingPackagePath = packageName(frame.Function)
	})

	pcs := make([]uintptr, maximumCallerDepth)
	depth := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:depth])
	for {
		f, more := frames.Next()
		pkg := packageName(f.Function)
		if pkg != loggingPackagePath && pkg != logrusPackage {
			return &f
		}
		if !more {
			return nil
		}
	}
}

func packageName(funcName string) string {
	lastSlash := strings.LastIndexByte(funcName, '/')
	firstDot := strings.IndexByte(funcName[lastSlash+1:], '.') + lastSlash + 1
	if firstDot < 0 || firstDot > len(funcName) {
		return funcName
	}
	return funcName[:firstDot]
}
