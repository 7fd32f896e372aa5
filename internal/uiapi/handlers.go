package uiapi

import (
	"net/http"

	"mt5copier/internal/core"

	"github.com/gin-gonic/gin"
)

// postCommand implements POST /commands: the wire shape is core.Command
// verbatim, since every field is already JSON-tagged-by-name via its Go
// field names and Kind is a plain string underneath.
func (s *Server) postCommand(c *gin.Context) {
	var cmd core.Command
	if err := c.BindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": "invalid command payload"})
		return
	}
	if cmd.Kind == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "MISSING_KIND", "error": "command kind is required"})
		return
	}

	s.Commands.Enqueue(cmd)
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "backlog": s.Commands.Len()})
}

// getAccounts implements GET /accounts: every snapshot the Session
// Supervisor has published since the last drain.
func (s *Server) getAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"accounts": s.Snapshots.DrainAll()})
}
