package logtest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/anchore/forbiddenapis/internal/log"
)

type Entry struct {
	Level   string
	Message string
}

// Recorder captures log lines so tests can assert on warnings and errors.
type Recorder struct {
	lock    sync.Mutex
	Entries []Entry
}

// Capture installs a new Recorder as the package logger and returns a function restoring the previous one.
func Capture() (*Recorder, func()) {
	previous := log.Log
	r := &Recorder{}
	log.Log = r
	return r, func() {
		log.Log = previous
	}
}

func (r *Recorder) record(level, msg string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Entries = append(r.Entries, Entry{Level: level, Message: msg})
}

// Messages returns every recorded message at the given level, in order.
func (r *Recorder) Messages(level string) []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	var out []string
	for _, e := range r.Entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Contains reports whether any message at the given level contains the substring.
func (r *Recorder) Contains(level, substr string) bool {
	for _, m := range r.Messages(level) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func (r *Recorder) Errorf(format string, args ...interface{}) {
	r.record("error", fmt.Sprintf(format, args...))
}
func (r *Recorder) Error(args ...interface{}) { r.record("error", fmt.Sprint(args...)) }
func (r *Recorder) Warnf(format string, args ...interface{}) {
	r.record("warn", fmt.Sprintf(format, args...))
}
func (r *Recorder) Warn(args ...interface{}) { r.record("warn", fmt.Sprint(args...)) }
func (r *Recorder) Infof(format string, args ...interface{}) {
	r.record("info", fmt.Sprintf(format, args...))
}
func (r *Recorder) Info(args ...interface{}) { r.record("info", fmt.Sprint(args...)) }
func (r *Recorder) Debugf(format string, args ...interface{}) {
	r.record("debug", fmt.Sprintf(format, args...))
}
func (r *Recorder) Debug(args ...interface{}) { r.record("debug", fmt.Sprint(args...)) }
func (r *Recorder) Tracef(format string, args ...interface{}) {
	r.record("trace", fmt.Sprintf(format, args...))
}
func (r *Recorder) Trace(args ...interface{}) { r.record("trace", fmt.Sprint(args...)) }
