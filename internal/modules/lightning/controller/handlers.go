package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"blitzmap-server/internal/modules/lightning/types"
	"blitzmap-server/internal/utils"
)

// handleCamera serves the current animation. 404 until the first frame has
// been rendered, which Home Assistant treats as "camera unavailable".
func (c *lightningControllerImpl) handleCamera(w http.ResponseWriter, r *http.Request) {
	data, ok := c.service.AnimatedImage()
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "no animation rendered yet")
		return
	}
	utils.WriteGIF(w, data)
}

func (c *lightningControllerImpl) handleStrikes(w http.ResponseWriter, r *http.Request) {
	since, limit, err := parseStrikesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	strikes, err := c.strikes.GetStrikesSince(since, limit)
	if err != nil {
		slog.Error("strikes: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load strikes")
		return
	}
	if strikes == nil {
		strikes = []types.Strike{}
	}
	utils.WriteJSON(w, http.StatusOK, strikes)
}

func (c *lightningControllerImpl) handleActivity(w http.ResponseWriter, r *http.Request) {
	buckets, err := c.service.Activity()
	if err != nil {
		slog.Error("activity: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, buckets)
}

func (c *lightningControllerImpl) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := c.service.Settings()
	if err != nil {
		slog.Error("settings: load failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	utils.WriteJSON(w, http.StatusOK, settings)
}

func (c *lightningControllerImpl) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch types.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := c.service.ApplySettings(patch)
	if err != nil {
		var rangeErr *types.RangeError
		if errors.As(err, &rangeErr) {
			utils.WriteError(w, http.StatusBadRequest, rangeErr.Error())
			return
		}
		slog.Error("settings: apply failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to apply settings")
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

func (c *lightningControllerImpl) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := c.service.ForceRefresh(r.Context()); err != nil {
		slog.Error("refresh: rebuild failed", "error", err)
		utils.WriteError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
