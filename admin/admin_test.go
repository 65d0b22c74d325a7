// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/norsh/blockchain/health"
	"github.com/norsh/blockchain/log"
)

func TestPostLogLevelHandler_ValidInput(t *testing.T) {
	var logLevel slog.LevelVar
	logLevel.Set(log.LevelInfo)

	body := []byte(`{"level":"trace"}`)
	req, err := http.NewRequest("POST", "/admin/loglevel", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	HTTPHandler(&logLevel, new(health.Health)).ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var response logLevelResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}

	if response.CurrentLevel != "trace" {
		t.Errorf("handler returned unexpected log level: got %v want %v", response.CurrentLevel, "trace")
	}
	if logLevel.Level() != log.LevelTrace {
		t.Errorf("level var not updated: got %v", logLevel.Level())
	}
}

func TestPostLogLevelHandler_InvalidInput(t *testing.T) {
	var logLevel slog.LevelVar
	logLevel.Set(log.LevelInfo)

	body := []byte(`{"level":"invalid_body"}`)
	req, err := http.NewRequest("POST", "/admin/loglevel", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	HTTPHandler(&logLevel, new(health.Health)).ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expectedErrorMessage := "Invalid verbosity level"
	var response errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}

	if response.ErrorMessage != expectedErrorMessage {
		t.Errorf("handler returned unexpected message: got %v want %v", response.ErrorMessage, expectedErrorMessage)
	}
}

func TestGetLogLevelHandler(t *testing.T) {
	var logLevel slog.LevelVar
	logLevel.Set(log.LevelInfo)

	req, err := http.NewRequest("GET", "/admin/loglevel", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	HTTPHandler(&logLevel, new(health.Health)).ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var response logLevelResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}

	if response.CurrentLevel != "info" {
		t.Errorf("handler returned unexpected log level: got %v want %v", response.CurrentLevel, "info")
	}
}

func TestHealthEndpoint(t *testing.T) {
	var logLevel slog.LevelVar
	h := new(health.Health)

	req, err := http.NewRequest("GET", "/admin/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	HTTPHandler(&logLevel, h).ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before bootstrap, got %v", rr.Code)
	}

	h.BootstrapDone()
	rr = httptest.NewRecorder()
	HTTPHandler(&logLevel, h).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 after bootstrap, got %v", rr.Code)
	}

	var status health.Status
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if !status.Healthy || !status.BootstrapDone {
		t.Errorf("unexpected status: %+v", status)
	}
}
