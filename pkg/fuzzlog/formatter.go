/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: formatter.go
Description: Log formatter for the fuzzcore engine. Renders timestamp,
level, an engine-specific event prefix derived from the log message, and
the pool/sensor/lane fields the driver loop emits (pool_score, unit_id,
executions_per_sec, uptime), with optional ANSI coloring.
*/

package fuzzlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineFormatter renders a logrus entry with an [EXEC]/[ACCEPT]/[EVICT]/
// [SENSOR]/[STATS] prefix inferred from the message, and formats the
// driver loop's own field vocabulary (pool_score, complexity, unit_id,
// executions_per_sec, duration/uptime) rather than printing them generically.
type EngineFormatter struct {
	Timestamp bool
	Caller    bool
	Colors    bool
}

// Format renders a single engine log entry.
func (f *EngineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var output strings.Builder

	if f.Timestamp {
		timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
		if f.Colors {
			output.WriteString(fmt.Sprintf("\033[36m%s\033[0m ", timestamp))
		} else {
			output.WriteString(fmt.Sprintf("%s ", timestamp))
		}
	}

	level := strings.ToUpper(entry.Level.String())
	if f.Colors {
		output.WriteString(fmt.Sprintf("\033[%dm%s\033[0m ", f.getLevelColor(entry.Level), level))
	} else {
		output.WriteString(fmt.Sprintf("%s ", level))
	}

	if prefix := f.getEnginePrefix(entry.Message); prefix != "" {
		if f.Colors {
			output.WriteString(fmt.Sprintf("\033[35m[%s]\033[0m ", prefix))
		} else {
			output.WriteString(fmt.Sprintf("[%s] ", prefix))
		}
	}

	if f.Caller && entry.HasCaller() {
		caller := fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
		if f.Colors {
			output.WriteString(fmt.Sprintf("\033[33m[%s]\033[0m ", caller))
		} else {
			output.WriteString(fmt.Sprintf("[%s] ", caller))
		}
	}

	output.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		output.WriteString(" ")
		output.WriteString(f.formatFields(entry.Data))
	}

	output.WriteString("\n")
	return []byte(output.String()), nil
}

func (f *EngineFormatter) getLevelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel:
		return 37
	case logrus.InfoLevel:
		return 32
	case logrus.WarnLevel:
		return 33
	case logrus.ErrorLevel:
		return 31
	case logrus.FatalLevel, logrus.PanicLevel:
		return 35
	default:
		return 37
	}
}

// getEnginePrefix tags a log line with the driver-loop event it reports,
// matching the messages LogLaneExecution/LogUnitAccepted/LogUnitEvicted/
// LogPoolStats emit in logger.go.
func (f *EngineFormatter) getEnginePrefix(message string) string {
	switch {
	case strings.Contains(message, "lane executed"):
		return "EXEC"
	case strings.Contains(message, "unit accepted"):
		return "ACCEPT"
	case strings.Contains(message, "unit evicted"):
		return "EVICT"
	case strings.Contains(message, "guard table"):
		return "SENSOR"
	case strings.Contains(message, "pool stats"):
		return "STATS"
	case strings.Contains(message, "lane"):
		return "LANE"
	default:
		return ""
	}
}

func (f *EngineFormatter) formatFields(fields logrus.Fields) string {
	var parts []string

	for key, value := range fields {
		formattedValue := f.formatValue(key, value)
		if f.Colors {
			parts = append(parts, fmt.Sprintf("\033[34m%s\033[0m=\033[32m%s\033[0m", key, formattedValue))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", key, formattedValue))
		}
	}

	return strings.Join(parts, " ")
}

// formatValue renders one field value, special-casing the driver loop's
// own vocabulary before falling back to generic type-based formatting.
func (f *EngineFormatter) formatValue(key string, value interface{}) string {
	switch key {
	case "duration", "uptime":
		if d, ok := value.(time.Duration); ok {
			return d.String()
		}
	case "executions_per_sec":
		if v, ok := value.(float64); ok {
			return fmt.Sprintf("%.2f/sec", v)
		}
	case "pool_score", "complexity":
		if v, ok := value.(float64); ok {
			return fmt.Sprintf("%.4f", v)
		}
	case "unit_id":
		if s, ok := value.(string); ok && len(s) > 8 {
			return s[:8] + "..."
		}
	case "timestamp":
		if t, ok := value.(time.Time); ok {
			return t.Format("15:04:05.000")
		}
	}

	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("15:04:05.000")
	case string:
		if len(v) > 50 {
			return fmt.Sprintf("%s...", v[:50])
		}
		return v
	case []byte:
		if len(v) > 20 {
			return fmt.Sprintf("[%d bytes]", len(v))
		}
		return fmt.Sprintf("%x", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
