package httpapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Settings is the mutable runtime blob exposed over /api/settings: API
// keys, kept in memory only (process restart reverts to the values loaded
// from configuration/env). The provider clients do not read it: each one
// sends the key it was built with from configuration, so editing the blob
// does not change the key used for provider calls.
type Settings struct {
	mu      sync.RWMutex
	APIKeys map[string]string `json:"apiKeys"`
}

// NewSettings seeds the blob with the provider keys loaded from config.
func NewSettings(initial map[string]string) *Settings {
	if initial == nil {
		initial = map[string]string{}
	}
	return &Settings{APIKeys: initial}
}

func (s *Settings) snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]string, len(s.APIKeys))
	for k, v := range s.APIKeys {
		cp[k] = v
	}
	return cp
}

func (s *Settings) update(patch map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range patch {
		s.APIKeys[k] = v
	}
}

func (s *Server) getSettings(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"settings": gin.H{"apiKeys": s.settings.snapshot()}})
}

type updateSettingsRequest struct {
	APIKeys map[string]string `json:"apiKeys"`
}

func (s *Server) updateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	s.settings.update(req.APIKeys)
	ok(c, http.StatusOK, gin.H{"settings": gin.H{"apiKeys": s.settings.snapshot()}})
}
