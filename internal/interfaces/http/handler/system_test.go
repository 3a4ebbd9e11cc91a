package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

func TestSystemHandler_Health(t *testing.T) {
	c, w := newTestContext()
	NewSystemHandler("1.0.0", fakeDB{}).Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "1.0.0", data["version"])
	assert.NotEmpty(t, data["go_version"])
}

func TestSystemHandler_HealthDatabaseDown(t *testing.T) {
	c, w := newTestContext()
	NewSystemHandler("1.0.0", fakeDB{err: errors.New("connection refused")}).Health(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "unreachable", resp.Data.(map[string]any)["database"])
}
