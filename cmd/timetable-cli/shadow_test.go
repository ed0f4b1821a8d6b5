package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestShape(t *testing.T) {
	var a, b interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"x":[{"Day":"Monday","Year":1}],"y":null}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"y":null,"x":[{"Year":2,"Day":"Friday"},{"Year":3,"Day":"Monday"}]}`), &b))
	assert.Equal(t, shape(a), shape(b))
	assert.Equal(t, `{x:[{Day:string,Year:number}],y:null}`, shape(a))
}

func TestCompareTargetModes(t *testing.T) {
	goSrv := echoServer(t, http.StatusOK, `[{"Year":1,"Day":"Monday"}]`)
	legacySrv := echoServer(t, http.StatusOK, `[{"Year":1,"Day":"Tuesday"}]`)
	client := goSrv.Client()

	shapeOnly := compareTarget(context.Background(), client, goSrv.URL, legacySrv.URL, shadowTarget{Method: "POST", Path: "/generate_lab_timetable", Body: json.RawMessage(`{}`)})
	require.NoError(t, shapeOnly.Error)
	assert.True(t, shapeOnly.StatusMatch)
	assert.True(t, shapeOnly.BodyMatch)

	exact := compareTarget(context.Background(), client, goSrv.URL, legacySrv.URL, shadowTarget{Method: "POST", Path: "generate_lab_timetable", Compare: compareBody, Critical: true})
	require.NoError(t, exact.Error)
	assert.False(t, exact.BodyMatch)
	assert.True(t, exact.breaking())
}

func TestCompareTargetStatusMismatch(t *testing.T) {
	goSrv := echoServer(t, http.StatusBadRequest, `{"message":"x","error":"INVALID_DEMAND"}`)
	legacySrv := echoServer(t, http.StatusOK, `{"student_timetable":[]}`)

	comp := compareTarget(context.Background(), goSrv.Client(), goSrv.URL, legacySrv.URL, shadowTarget{Method: "POST", Path: "/generate_timetable", Compare: compareStatus})
	require.NoError(t, comp.Error)
	assert.False(t, comp.StatusMatch)
	assert.Equal(t, http.StatusBadRequest, comp.GoStatus)

	var out bytes.Buffer
	breaking, optional := printReport(&out, []comparison{comp})
	assert.Zero(t, breaking)
	assert.Equal(t, 1, optional)
	assert.Contains(t, out.String(), "[DIFF] POST /generate_timetable")
}

func TestLoadTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"targets":[{"method":"GET","path":"/health","critical":true}]}`), 0o600))

	targets, err := loadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.True(t, targets[0].Critical)

	require.NoError(t, os.WriteFile(path, []byte(`{"targets":[]}`), 0o600))
	_, err = loadTargets(path)
	assert.ErrorContains(t, err, "no targets")
}

func TestBundledTargetsParse(t *testing.T) {
	targets, err := loadTargets(filepath.Join("..", "..", "scripts", "shadow_compare", "targets.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, targets)
}
