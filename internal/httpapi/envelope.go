// Package httpapi exposes the HTTP surface of spec.md §6 over gin: JSON
// request/response, 2xx {ok:true, ...}, 4xx/5xx {ok:false, error, detail?}.
package httpapi

import "github.com/gin-gonic/gin"

func ok(c *gin.Context, status int, payload gin.H) {
	payload["ok"] = true
	c.JSON(status, payload)
}

func fail(c *gin.Context, status int, errMsg string, detail string) {
	body := gin.H{"ok": false, "error": errMsg}
	if detail != "" {
		body["detail"] = detail
	}
	c.JSON(status, body)
}
