package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Compare modes for a shadow target.
const (
	compareBody   = "body"
	compareShape  = "shape"
	compareStatus = "status"
)

type shadowTarget struct {
	Method   string          `json:"method"`
	Path     string          `json:"path"`
	Body     json.RawMessage `json:"body,omitempty"`
	Compare  string          `json:"compare,omitempty"`
	Critical bool            `json:"critical"`
}

type shadowConfig struct {
	Targets []shadowTarget `json:"targets"`
}

type comparison struct {
	Target         shadowTarget
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func (c comparison) breaking() bool {
	return c.Target.Critical && (c.Error != nil || !c.StatusMatch || !c.BodyMatch)
}

var (
	goBase      = "http://localhost:8080"
	legacyBase  = "http://localhost:5000"
	targetsPath = filepath.Join("scripts", "shadow_compare", "targets.json")
	httpTimeout = 30 * time.Second
)

func newShadowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shadow",
		Short: "replay front-end requests against the legacy backend and this service",
		Args:  cobra.NoArgs,
		RunE:  commandShadow,
	}
	cmd.Flags().StringVar(&goBase, "go-base", goBase, "Go API base URL")
	cmd.Flags().StringVar(&legacyBase, "legacy-base", legacyBase, "legacy backend base URL")
	cmd.Flags().StringVar(&targetsPath, "targets", targetsPath, "path to JSON targets file")
	cmd.Flags().DurationVar(&httpTimeout, "timeout", httpTimeout, "HTTP client timeout")
	return cmd
}

func commandShadow(cmd *cobra.Command, args []string) error {
	targets, err := loadTargets(targetsPath)
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}

	client := &http.Client{Timeout: httpTimeout}
	results := make([]comparison, 0, len(targets))
	for _, t := range targets {
		results = append(results, compareTarget(cmd.Context(), client, goBase, legacyBase, t))
	}

	breaking, optional := printReport(cmd.OutOrStdout(), results)
	if breaking > 0 {
		return fmt.Errorf("%d breaking diff(s), %d optional", breaking, optional)
	}
	return nil
}

func loadTargets(path string) ([]shadowTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg shadowConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(ctx context.Context, client *http.Client, goURL, legacyURL string, tgt shadowTarget) comparison {
	comp := comparison{Target: tgt}
	goStatus, goBody, goDur, goErr := performRequest(ctx, client, goURL, tgt)
	legacyStatus, legacyBody, legacyDur, legacyErr := performRequest(ctx, client, legacyURL, tgt)
	comp.DurationGo = goDur
	comp.DurationLegacy = legacyDur

	if goErr != nil {
		comp.Error = fmt.Errorf("go request failed: %w", goErr)
		return comp
	}
	if legacyErr != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return comp
	}

	comp.GoStatus = goStatus
	comp.LegacyStatus = legacyStatus
	comp.StatusMatch = goStatus == legacyStatus

	switch strings.ToLower(strings.TrimSpace(tgt.Compare)) {
	case compareStatus:
		comp.BodyMatch = true
	case compareBody:
		comp.BodyMatch = bodiesEqual(goBody, legacyBody)
	default:
		// Solvers may legitimately place lectures differently, so only the layout must agree.
		comp.BodyMatch = shapesEqual(goBody, legacyBody)
	}
	return comp
}

func performRequest(ctx context.Context, client *http.Client, base string, tgt shadowTarget) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if len(tgt.Body) > 0 {
		body = bytes.NewReader(tgt.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return 0, nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, payload, time.Since(start), nil
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	return reflect.DeepEqual(aj, bj)
}

func shapesEqual(a, b []byte) bool {
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	return shape(aj) == shape(bj)
}

// shape renders the JSON layout of v: object keys and value kinds, with arrays reduced to their first element.
func shape(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + shape(val[k])
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []interface{}:
		if len(val) == 0 {
			return "[]"
		}
		return "[" + shape(val[0]) + "]"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "null"
	}
	return "unknown"
}

func printReport(w io.Writer, results []comparison) (breaking, optional int) {
	fmt.Fprintln(w, "Shadow Compare Report")
	fmt.Fprintln(w, "======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		switch {
		case res.breaking():
			breaking++
		case status != "OK":
			optional++
		}
		fmt.Fprintf(w, "[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Fprintf(w, "  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Fprintf(w, "  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Error)
		} else {
			fmt.Fprintf(w, "  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
	fmt.Fprintf(w, "Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	return breaking, optional
}
