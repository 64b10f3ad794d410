package logging

import "time"

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Duration is written in time.Duration's string form, e.g. "1.5s"
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Error records err's message under "error"; a nil error is written as null
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Pipeline fields. Keys are shared by every package so log lines from one
// run can be filtered on them.

func Component(name string) Field { return String("component", name) }

func Ticker(symbol string) Field { return String("ticker", symbol) }

func RunID(id string) Field { return String("run_id", id) }

func Stage(name string) Field { return String("stage", name) }

func Count(n int) Field { return Int("count", n) }

func Path(p string) Field { return String("path", p) }

func Latency(d time.Duration) Field { return Duration("latency", d) }
