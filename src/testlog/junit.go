package testlog

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// TestSuites is the root element for multiple test suites.
type TestSuites struct {
	XMLName    xml.Name    `xml:"testsuites"`
	TestSuites []TestSuite `xml:"testsuite"`
}

// TestSuite represents a <testsuite> element.
type TestSuite struct {
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Skipped   int        `xml:"skipped,attr"`
	Time      float64    `xml:"time,attr"`
	TestCases []TestCase `xml:"testcase"`
}

// TestCase represents a <testcase> element. File is set by runners that
// report one script per test case.
type TestCase struct {
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	File      string   `xml:"file,attr"`
	Time      float64  `xml:"time,attr"`
	Failure   *Problem `xml:"failure"`
	Error     *Problem `xml:"error"`
	Skipped   *Skipped `xml:"skipped"`
}

// Problem is a <failure> or <error> element.
type Problem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Skipped represents a skipped test.
type Skipped struct {
	Message string `xml:"message,attr"`
}

// JUnitFailure is a failed or errored test case.
type JUnitFailure struct {
	TestName  string
	ClassName string
	File      string
	SuiteName string
	Message   string
	Type      string // "failure" or "error"
}

// Identifier names the test the way the FAIL lines do: the script path
// when the report has one, else class::name.
func (f JUnitFailure) Identifier(stripPrefix string) string {
	if f.File != "" {
		return StripPrefix(f.File, stripPrefix)
	}
	if f.ClassName != "" {
		return fmt.Sprintf("%s::%s", f.ClassName, f.TestName)
	}
	return f.TestName
}

// ParseJUnit parses JUnit XML data and returns only test failures and
// errors. Returns an empty slice if all tests passed.
func ParseJUnit(data []byte) ([]JUnitFailure, error) {
	// Try parsing as <testsuites> (multiple suites) first
	var suites TestSuites
	if err := xml.Unmarshal(data, &suites); err == nil && len(suites.TestSuites) > 0 {
		return extractFailures(suites.TestSuites), nil
	}

	var suite TestSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse JUnit XML: %w", err)
	}
	return extractFailures([]TestSuite{suite}), nil
}

// ParseJUnitFile reads the report at path and returns failure identifiers.
func ParseJUnitFile(path, stripPrefix string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	failures, err := ParseJUnit(data)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.Identifier(stripPrefix))
	}
	return ids, nil
}

func extractFailures(suites []TestSuite) []JUnitFailure {
	var failures []JUnitFailure

	for _, suite := range suites {
		for _, tc := range suite.TestCases {
			for _, p := range []struct {
				problem *Problem
				kind    string
			}{{tc.Failure, "failure"}, {tc.Error, "error"}} {
				if p.problem == nil {
					continue
				}
				failures = append(failures, JUnitFailure{
					TestName:  tc.Name,
					ClassName: tc.ClassName,
					File:      tc.File,
					SuiteName: suite.Name,
					Message:   strings.TrimSpace(p.problem.Message),
					Type:      p.kind,
				})
			}
		}
	}
	return failures
}
