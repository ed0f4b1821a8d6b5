package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/service"
)

// RouteUnmatched labels requests that matched no registered route.
const RouteUnmatched = "unmatched"

// timetableRoutes names routes below the timetables group, keyed by the part after "/timetables".
var timetableRoutes = map[string]string{
	"/generate":      "timetable_generate",
	"/labs/generate": "lab_timetable_generate",
	"/teacher":       "timetable_teacher",
	"/student":       "timetable_student",
	"/:id":           "timetable_get",
}

var legacyRoutes = map[string]string{
	"/generate_timetable":     "legacy_timetable_generate",
	"/generate_lab_timetable": "legacy_lab_timetable_generate",
	"/get_timetable_teacher":  "legacy_timetable_teacher",
}

// RouteLabel maps a gin route pattern to the name used in request metrics.
// Unknown routes keep their pattern and unmatched requests share one label.
func RouteLabel(fullPath string) string {
	if fullPath == "" {
		return RouteUnmatched
	}
	if name, ok := legacyRoutes[fullPath]; ok {
		return name
	}
	if idx := strings.LastIndex(fullPath, "/timetables"); idx >= 0 {
		if name, ok := timetableRoutes[fullPath[idx+len("/timetables"):]]; ok {
			return name
		}
	}
	return fullPath
}

// Metrics records every request under its route label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, RouteLabel(c.FullPath()), c.Writer.Status(), time.Since(start))
	}
}
