// Configuration and watchlist endpoints.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/seenimoa/cryptoverlay/internal/config"
	"github.com/seenimoa/cryptoverlay/internal/display"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config     config.Config `json:"config"`
	ConfigFile string        `json:"config_file,omitempty"`
}

// SymbolsRequest is the body for PUT /api/v1/symbols.
type SymbolsRequest struct {
	Symbols []string `json:"symbols"`
}

// handleGetConfig returns the running configuration with secrets removed.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := redacted(s.cfg, s.Symbols())
	if s.display != nil {
		cfg.Display.Mode = string(s.display.Mode())
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:     cfg,
			ConfigFile: s.cfgPath,
		},
	})
}

// handleGetSecrets returns where each sink credential comes from.
func (s *Server) handleGetSecrets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckSecrets(s.cfg),
	})
}

func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.Symbols()})
}

// handleUpdateSymbols replaces the watchlist. The next scheduled pass uses
// it; with a config path set it is also saved to disk.
func (s *Server) handleUpdateSymbols(w http.ResponseWriter, r *http.Request) {
	var req SymbolsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	syms := utils.NormalizeSymbols(req.Symbols)
	if len(syms) == 0 {
		writeError(w, http.StatusBadRequest, "at least one symbol is required")
		return
	}

	if err := s.persist(func(c *config.Config) { c.Symbols = syms }); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config: "+err.Error())
		return
	}
	s.setSymbols(syms)
	s.log.WithField("symbols", syms).Info("watchlist updated")

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: syms})
}

// DisplayResponse is the body of the display endpoints.
type DisplayResponse struct {
	Mode  display.Mode   `json:"mode"`
	Modes []display.Mode `json:"modes"`
}

// DisplayRequest is the body for PUT /api/v1/display.
type DisplayRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	if s.display == nil {
		writeError(w, http.StatusServiceUnavailable, "no display attached")
		return
	}
	s.writeDisplay(w)
}

func (s *Server) handleSetDisplay(w http.ResponseWriter, r *http.Request) {
	if s.display == nil {
		writeError(w, http.StatusServiceUnavailable, "no display attached")
		return
	}
	var req DisplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	mode, err := display.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.display.SetMode(mode)
	s.saveDisplayMode(w)
}

// handleToggleDisplay advances to the next mode, like the overlay's mode hotkey.
func (s *Server) handleToggleDisplay(w http.ResponseWriter, r *http.Request) {
	if s.display == nil {
		writeError(w, http.StatusServiceUnavailable, "no display attached")
		return
	}
	s.display.Toggle()
	s.saveDisplayMode(w)
}

func (s *Server) saveDisplayMode(w http.ResponseWriter) {
	mode := s.display.Mode()
	if err := s.persist(func(c *config.Config) { c.Display.Mode = string(mode) }); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config: "+err.Error())
		return
	}
	s.log.WithField("mode", mode).Info("display mode changed")
	s.writeDisplay(w)
}

func (s *Server) writeDisplay(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    DisplayResponse{Mode: s.display.Mode(), Modes: display.Modes},
	})
}

// persist saves the running config with change applied, when a config file
// was given. Runtime edits (watchlist, display mode) are carried into the file.
func (s *Server) persist(change func(*config.Config)) error {
	if s.cfgPath == "" {
		return nil
	}
	cfg := *s.cfg
	cfg.Symbols = s.Symbols()
	if s.display != nil {
		cfg.Display.Mode = string(s.display.Mode())
	}
	change(&cfg)
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return config.Save(&cfg, s.cfgPath)
}

// redacted returns a copy of cfg safe to expose over HTTP.
func redacted(cfg *config.Config, symbols []string) config.Config {
	out := *cfg
	out.Symbols = symbols
	if out.Redis.Password != "" {
		out.Redis.Password = "***"
	}
	if out.Postgres.DSN != "" {
		out.Postgres.DSN = "***"
	}
	return out
}
