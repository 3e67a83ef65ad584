package main

import (
	"embed"
	"html/template"
	"net/http"
	"slices"
	"sync"

	"github.com/liamcoop/tablerules/internal/logger"
	"github.com/liamcoop/tablerules/records"
	"github.com/liamcoop/tablerules/transform"
)

//go:embed templates/workbench.html
var templateFS embed.FS

var workbenchTemplate = template.Must(template.ParseFS(templateFS, "templates/workbench.html"))

// workbench holds the files selected on the page. A new CSV file clears
// the previous results.
type workbench struct {
	mu sync.Mutex

	csvName string
	columns []string
	inputs  []records.Record

	rulesName string
	rules     []byte

	// generation changes whenever a file is selected
	generation int
	result     *transform.Result
}

type workbenchView struct {
	CSVName    string
	RulesName  string
	CanExecute bool
	Inputs     records.Table
	Outputs    *records.Table
	RunID      string
	Error      string
}

func (wb *workbench) view() workbenchView {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	v := workbenchView{
		CSVName:    wb.csvName,
		RulesName:  wb.rulesName,
		CanExecute: wb.inputs != nil && wb.rules != nil,
		Inputs:     records.NewTableWithColumns(wb.columns, wb.inputs),
	}
	if wb.result != nil {
		out := wb.result.OutputTable()
		v.Outputs = &out
		v.RunID = wb.result.RunID.String()
	}
	return v
}

func (s *Server) renderWorkbench(w http.ResponseWriter, status int, message string) {
	v := s.workbench.view()
	v.Error = message

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := workbenchTemplate.Execute(w, v); err != nil {
		logger.Error("failed to render workbench", "error", err)
	}
}

func (s *Server) handleWorkbench(w http.ResponseWriter, r *http.Request) {
	s.renderWorkbench(w, http.StatusOK, "")
}

func (s *Server) handleWorkbenchCSV(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(r, "file")
	if err != nil {
		logger.WarnHttp4xx(http.StatusBadRequest)
		s.renderWorkbench(w, http.StatusBadRequest, err.Error())
		return
	}

	inputs, header, err := readRecords(data, r.FormValue("comma"))
	if err != nil {
		logger.WarnHttp4xx(http.StatusBadRequest)
		s.renderWorkbench(w, http.StatusBadRequest, name+": "+err.Error())
		return
	}
	if inputs == nil {
		inputs = []records.Record{}
	}

	wb := s.workbench
	wb.mu.Lock()
	wb.csvName = name
	wb.inputs = inputs
	wb.columns = sortedColumns(header)
	wb.result = nil
	wb.generation++
	wb.mu.Unlock()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleWorkbenchRules(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(r, "file")
	if err != nil {
		logger.WarnHttp4xx(http.StatusBadRequest)
		s.renderWorkbench(w, http.StatusBadRequest, err.Error())
		return
	}

	wb := s.workbench
	wb.mu.Lock()
	wb.rulesName = name
	wb.rules = data
	wb.generation++
	wb.mu.Unlock()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleWorkbenchTransform(w http.ResponseWriter, r *http.Request) {
	wb := s.workbench
	wb.mu.Lock()
	if wb.inputs == nil || wb.rules == nil {
		wb.mu.Unlock()
		logger.WarnHttp4xx(http.StatusConflict)
		s.renderWorkbench(w, http.StatusConflict, "select a CSV file and a rules file first")
		return
	}
	req := transform.Request{
		Resource: wb.rulesName,
		Rules:    wb.rules,
		Source:   wb.csvName,
		Records:  wb.inputs,
	}
	generation := wb.generation
	wb.mu.Unlock()

	res, err := s.service.Run(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			logger.ErrorHttp5xx()
		} else {
			logger.WarnHttp4xx(status)
		}
		s.renderWorkbench(w, status, err.Error())
		return
	}

	wb.mu.Lock()
	if wb.generation == generation {
		wb.result = res
	}
	wb.mu.Unlock()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// sortedColumns orders the CSV header the way the result table orders its
// keys.
func sortedColumns(header []string) []string {
	cols := slices.Clone(header)
	slices.Sort(cols)
	return cols
}
