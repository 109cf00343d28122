// gtest runs the Markdown golden cases through the code generator and
// reports every expectation that no longer holds.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/xplshn/sgen/pkg/testcase"
)

type CaseResult struct {
	File     string        `json:"file"`
	Name     string        `json:"name"`
	Line     int           `json:"line"`
	Hash     string        `json:"hash"`
	Status   string        `json:"status"` // PASS, FAIL, CACHED, ERROR
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Duration time.Duration `json:"duration"`
}

type TestSuiteResults map[string]*CaseResult

var (
	testFiles  = flag.String("test-files", "pkg/testcase/testdata/*.md", "Glob pattern(s) for case files (space-separated).")
	runFilter  = flag.String("run", "", "Only run cases whose name contains this substring.")
	outputJSON = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	jobs       = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose    = flag.Bool("v", false, "Print passing cases too.")
	useCache   = flag.Bool("cached", false, "Skip cases whose text is unchanged since they last passed.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	if *jobs < 1 {
		*jobs = 1
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	var cases []testcase.TestCase
	var results []*CaseResult
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			results = append(results, &CaseResult{File: file, Status: "ERROR", Message: err.Error()})
			continue
		}
		fileCases, err := testcase.Extract(file, string(content))
		if err != nil {
			results = append(results, &CaseResult{File: file, Status: "ERROR", Message: err.Error()})
			continue
		}
		for _, tc := range fileCases {
			if *runFilter == "" || strings.Contains(tc.Name, *runFilter) {
				cases = append(cases, tc)
			}
		}
	}

	previous := loadPreviousResults()
	results = append(results, runCases(cases, previous)...)

	sort.Slice(results, func(i, j int) bool {
		if results[i].File != results[j].File {
			return results[i].File < results[j].File
		}
		return results[i].Line < results[j].Line
	})

	printSummary(results)
	resultsMap := writeJSONReport(results)
	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

func caseKey(file, name string) string { return file + "#" + name }

// hashCase fingerprints everything that decides the outcome of a case.
func hashCase(tc *testcase.TestCase) string {
	return fmt.Sprintf("%x", xxhash.Sum64String(tc.Source()))
}

func loadPreviousResults() TestSuiteResults {
	previous := make(TestSuiteResults)
	if !*useCache {
		return previous
	}
	data, err := os.ReadFile(*outputJSON)
	if err != nil {
		return previous
	}
	if json.Unmarshal(data, &previous) != nil {
		log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, *outputJSON)
		return make(TestSuiteResults)
	}
	return previous
}

func runCases(cases []testcase.TestCase, previous TestSuiteResults) []*CaseResult {
	tasks := make(chan *testcase.TestCase, len(cases))
	resultsChan := make(chan *CaseResult, len(cases))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tc := range tasks {
				resultsChan <- runCase(tc, previous)
			}
		}()
	}
	for i := range cases {
		tasks <- &cases[i]
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	var results []*CaseResult
	for r := range resultsChan {
		results = append(results, r)
	}
	return results
}

func runCase(tc *testcase.TestCase, previous TestSuiteResults) *CaseResult {
	result := &CaseResult{File: tc.File, Name: tc.Name, Line: tc.Line, Hash: hashCase(tc)}
	if prev, ok := previous[caseKey(tc.File, tc.Name)]; ok && prev.Hash == result.Hash && (prev.Status == "PASS" || prev.Status == "CACHED") {
		result.Status, result.Message = "CACHED", "unchanged since last pass"
		return result
	}

	start := time.Now()
	mismatches := func() (m []testcase.Mismatch) {
		defer func() {
			if r := recover(); r != nil {
				result.Status, result.Message = "ERROR", fmt.Sprintf("panic: %v", r)
			}
		}()
		return testcase.Check(tc)
	}()
	result.Duration = time.Since(start)
	if result.Status == "ERROR" {
		return result
	}

	if len(mismatches) == 0 {
		result.Status = "PASS"
		return result
	}
	var diffs strings.Builder
	for _, m := range mismatches {
		fmt.Fprintf(&diffs, "%s expectation (line %d) mismatch (-want +got):\n%s", m.Assertion.Type, m.Assertion.Line, m.Diff)
	}
	result.Status = "FAIL"
	result.Message = fmt.Sprintf("%d expectation(s) failed", len(mismatches))
	result.Diff = diffs.String()
	return result
}

func printSummary(results []*CaseResult) {
	var passed, failed, cached, errored int
	var total time.Duration
	for _, r := range results {
		total += r.Duration
		switch r.Status {
		case "PASS":
			passed++
			if *verbose {
				fmt.Printf("[%sPASS%s] %s%s%s: %s (%s)\n", cGreen, cNone, cCyan, filepath.Base(r.File), cNone, r.Name, r.Duration)
			}
		case "CACHED":
			cached++
			if *verbose {
				fmt.Printf("[%sCACHED%s] %s%s%s: %s\n", cYellow, cNone, cCyan, filepath.Base(r.File), cNone, r.Name)
			}
		case "FAIL":
			failed++
			fmt.Println("----------------------------------------------------------------------")
			fmt.Printf("[%sFAIL%s] %s%s:%d%s: %s: %s\n", cRed, cNone, cCyan, r.File, r.Line, cNone, r.Name, r.Message)
			fmt.Print(formatDiff(r.Diff))
		case "ERROR":
			errored++
			fmt.Println("----------------------------------------------------------------------")
			fmt.Printf("[%sERROR%s] %s%s%s: %s %s\n", cRed, cNone, cCyan, r.File, cNone, r.Name, r.Message)
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Cached%s, %s%d Errored%s, %d Total in %s\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, cached, cNone, cRed, errored, cNone, len(results), total)
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*CaseResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[caseKey(r.File, r.Name)] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
	} else if *verbose {
		fmt.Printf("Full test report saved to %s\n", *outputJSON)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			if seen[file] {
				continue
			}
			if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, file)
				seen[file] = true
			}
		}
	}
	return allFiles, nil
}
