package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/models"
	"github.com/knakatani/kabufolio/internal/services/portfolio"
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.app.StartupTime).Round(time.Second).String(),
		"version": common.GetVersion(),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// portfolioResponse mirrors PortfolioSummary at the HTTP boundary.
// The domain contract propagates NaN for an undefined percentage, which
// encoding/json cannot represent — it maps to null here.
type portfolioResponse struct {
	TotalCostJPY       float64           `json:"total_cost_jpy"`
	TotalValueJPY      float64           `json:"total_value_jpy"`
	TotalPnlJPY        float64           `json:"total_pnl_jpy"`
	TotalPnlPercentage *float64          `json:"total_pnl_percentage"` // null when undefined (zero cost)
	Positions          []models.Position `json:"positions"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

func toPortfolioResponse(summary *models.PortfolioSummary) portfolioResponse {
	resp := portfolioResponse{
		TotalCostJPY:  summary.TotalCostJPY,
		TotalValueJPY: summary.TotalValueJPY,
		TotalPnlJPY:   summary.TotalPnlJPY,
		Positions:     summary.Positions,
		GeneratedAt:   summary.GeneratedAt,
	}
	if !math.IsNaN(summary.TotalPnlPercentage) && !math.IsInf(summary.TotalPnlPercentage, 0) {
		pct := summary.TotalPnlPercentage
		resp.TotalPnlPercentage = &pct
	}
	return resp
}

// aggregate loads the ledger and valuates it. Shared by the portfolio,
// history, and performance handlers.
func (s *Server) aggregate(w http.ResponseWriter, r *http.Request, forceRefresh bool) *models.PortfolioSummary {
	raws, err := s.app.Positions.ListPositions(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to load positions: "+err.Error())
		return nil
	}

	summary, err := s.app.PortfolioService.Aggregate(r.Context(), raws, forceRefresh)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, "Valuation failed: "+err.Error())
		return nil
	}
	return summary
}

// handlePortfolio handles GET /api/portfolio[?refresh=true].
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	forceRefresh := r.URL.Query().Get("refresh") == "true"
	summary := s.aggregate(w, r, forceRefresh)
	if summary == nil {
		return
	}

	WriteJSON(w, http.StatusOK, toPortfolioResponse(summary))
}

// historyTargets resolves the target date list for a history request:
// month-ends since inception, optionally truncated to the last N months.
func (s *Server) historyTargets(summary *models.PortfolioSummary, monthsParam string) []string {
	dates := portfolio.MonthEndDates(summary.Positions, s.app.Clock.Now())
	if monthsParam == "" {
		return dates
	}
	months, err := strconv.Atoi(monthsParam)
	if err != nil || months <= 0 || months >= len(dates) {
		return dates
	}
	return dates[len(dates)-months:]
}

// handleHistory handles GET /api/portfolio/history[?months=N&details=true].
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	summary := s.aggregate(w, r, false)
	if summary == nil {
		return
	}

	dates := s.historyTargets(summary, r.URL.Query().Get("months"))
	includeDetails := r.URL.Query().Get("details") == "true"

	snapshots, err := s.app.PortfolioService.Reconstruct(r.Context(), summary.Positions, dates, includeDetails)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Reconstruction failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
	})
}

// handleHistoryChart handles GET /api/portfolio/history/chart.
func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	summary := s.aggregate(w, r, false)
	if summary == nil {
		return
	}

	dates := s.historyTargets(summary, r.URL.Query().Get("months"))
	snapshots, err := s.app.PortfolioService.Reconstruct(r.Context(), summary.Positions, dates, false)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Reconstruction failed: "+err.Error())
		return
	}

	png, err := portfolio.RenderHistoryChart(snapshots)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, "Chart render failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handlePerformance handles GET /api/portfolio/performance.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	summary := s.aggregate(w, r, false)
	if summary == nil {
		return
	}

	WriteJSON(w, http.StatusOK, s.app.PortfolioService.Performance(summary))
}

// handlePositions handles GET/POST /api/positions.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		raws, err := s.app.Positions.ListPositions(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to load positions: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"positions": raws})

	case http.MethodPost:
		var raw models.RawPosition
		if !DecodeJSON(w, r, &raw) {
			return
		}

		date, err := models.NormalizeDate(raw.TransactionDate)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		raw.TransactionDate = date

		if strings.TrimSpace(raw.Ticker) == "" {
			WriteError(w, http.StatusBadRequest, "ticker is required")
			return
		}
		if raw.Quantity <= 0 || raw.CostPerUnit <= 0 {
			WriteError(w, http.StatusBadRequest, "quantity and cost_per_unit must be positive")
			return
		}
		if raw.TransactionCcy != "" && !models.IsSupportedCurrency(raw.TransactionCcy) {
			WriteError(w, http.StatusBadRequest, "unsupported transaction currency: "+raw.TransactionCcy)
			return
		}
		if raw.StockCcy != "" && !models.IsSupportedCurrency(raw.StockCcy) {
			WriteError(w, http.StatusBadRequest, "unsupported stock currency: "+raw.StockCcy)
			return
		}

		if raw.ID == "" {
			raw.ID = uuid.New().String()
		}

		if err := s.app.Positions.AddPosition(r.Context(), raw); err != nil {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}

		s.logger.Info().Str("id", raw.ID).Str("ticker", raw.Ticker).Msg("Position recorded")
		WriteJSON(w, http.StatusCreated, raw)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePositionByID handles DELETE /api/positions/{id}. RawPositions
// are immutable — corrections are delete + re-add, so there is no PUT.
func (s *Server) handlePositionByID(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/positions/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "position id is required")
		return
	}

	found, err := s.app.Positions.DeletePosition(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to delete position: "+err.Error())
		return
	}
	if !found {
		WriteError(w, http.StatusNotFound, "position not found: "+id)
		return
	}

	s.logger.Info().Str("id", id).Msg("Position deleted")
	w.WriteHeader(http.StatusNoContent)
}
