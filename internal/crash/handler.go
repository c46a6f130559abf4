package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tg-scriptguard/internal/logger"
)

var panicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scriptguard_panics_recovered_total",
	Help: "Panics recovered per module",
}, []string{"module"})

// RecoverWithStack logs a recovered panic with its stack. Use it deferred.
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, false)
	}
}

// RecoverWithStackAndExit is the main-goroutine variant: log, then exit non-zero
// so the supervisor restarts us.
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, true)
		logger.Sync()
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}
}

func report(moduleName string, r interface{}, fatal bool) {
	stack := debug.Stack()
	prefix := "PANIC"
	if fatal {
		prefix = "FATAL PANIC"
	}

	panicsRecovered.WithLabelValues(moduleName).Inc()
	logger.Errorf("%s in %s: %v", prefix, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// stderr too, so container logs show it even if the file sink is broken
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", prefix, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)
	fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(stack))

	logRuntimeInfo()
}

// SafeGoroutine starts fn on a new goroutine with panic recovery.
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

// TrackedGoroutine is SafeGoroutine registered on wg, so shutdown can drain it.
func TrackedGoroutine(wg *sync.WaitGroup, name string, fn func()) {
	wg.Add(1)
	SafeGoroutine(name, func() {
		defer wg.Done()
		fn()
	})
}

func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := fmt.Sprintf(`
Runtime Information:
- Go version: %s
- Number of CPUs: %d
- Number of goroutines: %d
- Memory stats:
  - Heap allocated: %d KB
  - Heap in use: %d KB
  - Stack in use: %d KB
  - Num GC: %d
`,
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		m.HeapAlloc/1024,
		m.HeapInuse/1024,
		m.StackInuse/1024,
		m.NumGC,
	)

	logger.Error(info)
	fmt.Fprint(os.Stderr, info)
}

// SetupCrashHandler turns faults on unsafe memory access into panics we can recover.
func SetupCrashHandler() {
	debug.SetPanicOnFault(true)
}
