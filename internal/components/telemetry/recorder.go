package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call made against a RecorderAPI.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

// RecorderAPI keeps every report in memory, it is meant for assertions in tests.
type RecorderAPI struct {
	mutex   *sync.Mutex
	reports *[]Report
}

func NewRecorderAPI() RecorderAPI {
	return RecorderAPI{mutex: &sync.Mutex{}, reports: &[]Report{}}
}

func (r RecorderAPI) add(kind, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	*r.reports = append(*r.reports, Report{Kind: kind, Id: id, Params: params})
}

func (r RecorderAPI) ReportBroken(id string, params ...any) {
	r.add("broken", id, params)
}

func (r RecorderAPI) ReportWarning(id string, params ...any) {
	r.add("warning", id, params)
}

func (r RecorderAPI) ReportDebug(msg string, params ...any) {
	r.add("debug", msg, params)
}

func (r RecorderAPI) ReportCount(id string, count int64) {
	r.add("count", id, []any{count})
}

// Find returns the reports of a kind whose id ends with the given suffix.
func (r RecorderAPI) Find(kind, idSuffix string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range *r.reports {
		if report.Kind == kind && strings.HasSuffix(report.Id, idSuffix) {
			out = append(out, report)
		}
	}
	return out
}
