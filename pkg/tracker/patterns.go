/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tracker

import (
	"fmt"
	"regexp"

	"github.com/carverauto/devmon/pkg/models"
)

// PatternCompileError reports a configured pattern that is not a valid regular expression.
type PatternCompileError struct {
	Key     string
	Pattern string
	Err     error
}

func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("compile pattern %q (%s): %v", e.Key, e.Pattern, e.Err)
}

func (e *PatternCompileError) Unwrap() error {
	return e.Err
}

type namedPattern struct {
	key string
	re  *regexp.Regexp
}

// PatternSet is an ordered, immutable set of named patterns. It is safe to
// share between trackers.
type PatternSet struct {
	patterns []namedPattern
}

// CompilePatterns compiles specs in declaration order.
func CompilePatterns(specs models.PatternSpecs) (*PatternSet, error) {
	set := &PatternSet{patterns: make([]namedPattern, 0, len(specs))}
	seen := make(map[string]struct{}, len(specs))

	for _, spec := range specs {
		if _, dup := seen[spec.Key]; dup {
			return nil, &PatternCompileError{Key: spec.Key, Pattern: spec.Pattern, Err: errDuplicateKey}
		}

		seen[spec.Key] = struct{}{}

		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, &PatternCompileError{Key: spec.Key, Pattern: spec.Pattern, Err: err}
		}

		set.patterns = append(set.patterns, namedPattern{key: spec.Key, re: re})
	}

	return set, nil
}

// Len returns the number of patterns.
func (s *PatternSet) Len() int {
	if s == nil {
		return 0
	}

	return len(s.patterns)
}

// Keys returns the pattern keys in declaration order.
func (s *PatternSet) Keys() []string {
	if s == nil {
		return nil
	}

	keys := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		keys[i] = p.key
	}

	return keys
}
