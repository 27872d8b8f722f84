package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

type target struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Critical   bool   `json:"critical"`
	Auth       bool   `json:"auth"`
	StatusOnly bool   `json:"status_only"`
}

type targetFile struct {
	Targets []target `json:"targets"`
}

type endpoint struct {
	Base  string
	Token string
}

type comparison struct {
	Target            target
	BaselineStatus    int
	CandidateStatus   int
	StatusMatch       bool
	BodyMatch         bool
	Diff              string
	Error             error
	DurationBaseline  time.Duration
	DurationCandidate time.Duration
}

func (c comparison) failed() bool {
	return c.Error != nil || !c.StatusMatch || !c.BodyMatch
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func compareTarget(client *http.Client, baseline, candidate endpoint, tgt target, ignore []string) comparison {
	comp := comparison{Target: tgt}

	baseStatus, baseBody, baseDur, err := fetch(client, baseline, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("baseline request failed: %w", err)
		return comp
	}
	candStatus, candBody, candDur, err := fetch(client, candidate, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("candidate request failed: %w", err)
		return comp
	}

	comp.BaselineStatus, comp.CandidateStatus = baseStatus, candStatus
	comp.DurationBaseline, comp.DurationCandidate = baseDur, candDur
	comp.StatusMatch = baseStatus == candStatus
	if tgt.StatusOnly {
		comp.BodyMatch = true
		return comp
	}
	comp.BodyMatch, comp.Diff = compareBodies(baseBody, candBody, ignore)
	return comp
}

func fetch(client *http.Client, ep endpoint, tgt target) (int, []byte, time.Duration, error) {
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

	req, err := http.NewRequest(method, strings.TrimRight(ep.Base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if tgt.Auth && ep.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ep.Token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// compareBodies reports whether a and b are equivalent once the ignored
// dotted paths are removed. A unified diff is returned when they differ.
func compareBodies(a, b []byte, ignore []string) (bool, string) {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true, ""
	}

	var aj, bj interface{}
	if json.Unmarshal(a, &aj) != nil || json.Unmarshal(b, &bj) != nil {
		return false, unifiedDiff(string(a), string(b))
	}
	for _, path := range ignore {
		dropPath(aj, strings.Split(path, "."))
		dropPath(bj, strings.Split(path, "."))
	}
	if reflect.DeepEqual(aj, bj) {
		return true, ""
	}
	return false, unifiedDiff(pretty(aj), pretty(bj))
}

func dropPath(v interface{}, path []string) {
	obj, ok := v.(map[string]interface{})
	if !ok || len(path) == 0 {
		return
	}
	if len(path) == 1 {
		delete(obj, path[0])
		return
	}
	dropPath(obj[path[0]], path[1:])
}

func pretty(v interface{}) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}

func unifiedDiff(baseline, candidate string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(baseline),
		B:        difflib.SplitLines(candidate),
		FromFile: "baseline",
		ToFile:   "candidate",
		Context:  2,
	})
	if err != nil {
		return err.Error()
	}
	return diff
}
