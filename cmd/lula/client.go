package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hyperjump/lula/internal/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// decodeResponse decodes a JSON body into out, or turns a non-2xx response
// into an error carrying the body.
func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func searchURL(serverURL string, q *models.SearchQuery) string {
	v := url.Values{}
	v.Set("q", q.Query)
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Fuzzy {
		v.Set("fuzzy", "true")
	}
	return serverURL + "/api/v1/search?" + v.Encode()
}

func searchViaHTTP(serverURL string, q *models.SearchQuery) (*models.SearchResponse, error) {
	resp, err := httpClient.Get(searchURL(serverURL, q))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var out models.SearchResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func statusViaHTTP(serverURL string) (*models.Status, error) {
	resp, err := httpClient.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var out models.Status
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// runWatchClient manages the watch directories of a running server.
func runWatchClient(sub string, args []string) {
	fs := flag.NewFlagSet("watch "+sub, flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(args)

	switch sub {
	case "list":
		resp, err := httpClient.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fail("Request failed: %v", err)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := decodeResponse(resp, &out); err != nil {
			fail("Watch list failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	case "add":
		if fs.NArg() < 1 {
			fail("Usage: lula watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := httpClient.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fail("Request failed: %v", err)
		}
		if err := decodeResponse(resp, nil); err != nil {
			fail("Watch add failed: %v", err)
		}
		fmt.Printf("Watching %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fail("Usage: lula watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, err := http.NewRequest(http.MethodDelete,
			*serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		if err != nil {
			fail("Request failed: %v", err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			fail("Request failed: %v", err)
		}
		if err := decodeResponse(resp, nil); err != nil {
			fail("Watch remove failed: %v", err)
		}
		fmt.Printf("Stopped watching %s\n", path)
	default:
		fmt.Fprintf(os.Stderr, "Unknown watch command: %s\n", sub)
		os.Exit(1)
	}
}
