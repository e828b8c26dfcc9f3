package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Vork-21/payplan/pkg/analysis"
	"github.com/Vork-21/payplan/pkg/config"
	"github.com/Vork-21/payplan/pkg/export"
	"github.com/Vork-21/payplan/pkg/ingest"
	"github.com/Vork-21/payplan/pkg/models"
	"github.com/Vork-21/payplan/pkg/store"
)

// Server exposes analysis runs over HTTP. Uploads replace the latest run;
// every read endpoint answers from the latest run.
type Server struct {
	service *analysis.Service
	store   store.Store
	cfg     config.Config
	log     zerolog.Logger
}

func NewServer(service *analysis.Service, st store.Store, cfg config.Config, log zerolog.Logger) *Server {
	return &Server{
		service: service,
		store:   st,
		cfg:     cfg,
		log:     log,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestLogger)

	router.HandleFunc("/health", s.healthHandler).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload", s.uploadHandler).Methods("POST")
	api.HandleFunc("/clear", s.clearHandler).Methods("POST")

	api.HandleFunc("/results/summary", s.summaryHandler).Methods("GET")
	api.HandleFunc("/results/quality", s.qualityHandler).Methods("GET")
	api.HandleFunc("/results/dashboard", s.dashboardHandler).Methods("GET")

	api.HandleFunc("/collections/priorities", s.prioritiesHandler).Methods("GET")
	api.HandleFunc("/projections/customers", s.projectionsHandler).Methods("GET")
	api.HandleFunc("/projections/portfolio", s.portfolioHandler).Methods("GET")

	api.HandleFunc("/customers", s.customersHandler).Methods("GET")
	api.HandleFunc("/customers/{name}", s.customerHandler).Methods("GET")
	api.HandleFunc("/classes", s.classesHandler).Methods("GET")

	api.HandleFunc("/download/{file}", s.downloadHandler).Methods("GET")

	return router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// latestRun fetches the current run or answers 404 itself.
func (s *Server) latestRun(w http.ResponseWriter) (*analysis.Result, bool) {
	run, err := s.store.Latest()
	if err != nil {
		if errors.Is(err, store.ErrNoRun) {
			respondError(w, http.StatusNotFound, "no analysis available: upload a file first")
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return run, true
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	_, err := s.store.Latest()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"has_results": err == nil,
	})
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "upload must include a \"file\" field")
		return
	}
	defer file.Close()

	table, err := ingest.ReadUpload(file, header.Filename)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.Run(table)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.log.Error().Err(err).Str("file", header.Filename).Msg("Analysis failed")
		respondError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	respondJSON(w, http.StatusOK, result.Summary())
}

func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run.Summary())
}

func (s *Server) qualityHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run.QualityReport())
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run.Dashboard(r.URL.Query().Get("class")))
}

func (s *Server) prioritiesHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	priorities := run.CollectionPriorities(r.URL.Query().Get("class"))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_behind": len(priorities),
		"priorities":   priorities,
	})
}

// projectionParams reads the shared months/scenario/class query parameters.
func projectionParams(r *http.Request) (int, models.Scenario, string, error) {
	q := r.URL.Query()

	months := 12
	if raw := q.Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, "", "", fmt.Errorf("invalid months %q: must be a number", raw)
		}
		months = parsed
	}

	scenario := models.ScenarioCurrent
	if raw := q.Get("scenario"); raw != "" {
		parsed, err := models.ParseScenario(raw)
		if err != nil {
			return 0, "", "", err
		}
		scenario = parsed
	}

	return months, scenario, q.Get("class"), nil
}

func (s *Server) projectionsHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	months, scenario, class, err := projectionParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, run.Projections(months, scenario, class))
}

func (s *Server) portfolioHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	months, scenario, class, err := projectionParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, run.Projections(months, scenario, class).Portfolio)
}

func (s *Server) customersHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	q := r.URL.Query()

	opts := analysis.ListOptions{
		Class:  q.Get("class"),
		Status: q.Get("status"),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid page %q: must be a number", raw))
			return
		}
		opts.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid page_size %q: must be a number", raw))
			return
		}
		opts.PageSize = size
	}

	respondJSON(w, http.StatusOK, run.ListCustomers(opts))
}

func (s *Server) customerHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]

	detail, err := run.Customer(name)
	if err != nil {
		if errors.Is(err, analysis.ErrCustomerNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("customer %q not found", name))
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) classesHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"classes": run.Classes(),
	})
}

func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w)
	if !ok {
		return
	}
	file := mux.Vars(r)["file"]

	var err error
	switch file {
	case "metrics.csv":
		csvHeaders(w, file)
		err = export.MetricsCSV(w, run.Metrics)
	case "issues.csv":
		csvHeaders(w, file)
		err = export.IssuesCSV(w, run.Issues)
	case "collections.csv":
		csvHeaders(w, file)
		err = export.CollectionsCSV(w, run.CollectionPriorities(r.URL.Query().Get("class")))
	case "projections.csv":
		months, scenario, class, perr := projectionParams(r)
		if perr != nil {
			respondError(w, http.StatusBadRequest, perr.Error())
			return
		}
		csvHeaders(w, file)
		err = export.CustomerProjectionCSV(w, run.Projections(months, scenario, class).Customers)
	case "errors.xlsx":
		workbook, werr := export.ErrorWorkbook(run.Customers, run.Issues)
		if werr != nil {
			respondError(w, http.StatusInternalServerError, werr.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file))
		err = workbook.Write(w)
	default:
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown download %q", file))
		return
	}

	if err != nil {
		// Headers are already sent; all we can do is log.
		s.log.Error().Err(err).Str("file", file).Msg("Download failed mid-write")
	}
}

func csvHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
