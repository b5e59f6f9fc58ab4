// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ensemble

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/juju/errors"
)

const (
	ErrUnknownApproach       = errors.ConstError("unknown approach")
	ErrUnknownRelativeMetric = errors.ConstError("unknown relative metric")
	ErrIncompatibleOptions   = errors.ConstError("incompatible options")
)

// Strategy decides which dataset ensemble member i is trained on and which dataset
// it is evaluated on.
type Strategy int

const (
	// Oracle trains on the real train split and evaluates on the real test split.
	Oracle Strategy = iota + 1
	// Naive trains on the train split of member i and evaluates on its test split.
	Naive
	// DGE trains on member i and evaluates on the concatenated test splits of other
	// members.
	DGE
	// DGEAlternative trains on member i and evaluates on the test split of every other
	// member separately.
	DGEAlternative
)

// Approach is a strategy with an ensemble size cap. K = 0 means all members.
type Approach struct {
	Strategy Strategy
	K        int
}

func (a Approach) String() string {
	var name string
	switch a.Strategy {
	case Oracle:
		return "Oracle"
	case Naive:
		return "Naive"
	case DGE:
		name = "DGE"
	case DGEAlternative:
		name = "DGE_alternative"
	default:
		return fmt.Sprintf("Unknown(%d)", int(a.Strategy))
	}
	if a.K > 0 {
		return fmt.Sprintf("%s (K=%d)", name, a.K)
	}
	return name
}

func (a Approach) Validate() error {
	switch a.Strategy {
	case Oracle, Naive, DGE, DGEAlternative:
	default:
		return errors.Annotatef(ErrUnknownApproach, "strategy %d", int(a.Strategy))
	}
	if a.K < 0 {
		return errors.Annotatef(ErrUnknownApproach, "negative ensemble size %d", a.K)
	}
	return nil
}

var approachPattern = regexp.MustCompile(`^(Oracle|Naive|DGE|DGE_alternative)(?: \([Kk]=(\d+)\))?$`)

// ParseApproach parses names like "Naive", "DGE" and "DGE (K=5)".
func ParseApproach(s string) (Approach, error) {
	match := approachPattern.FindStringSubmatch(s)
	if match == nil {
		return Approach{}, errors.Annotatef(ErrUnknownApproach, "approach %q", s)
	}
	var approach Approach
	switch match[1] {
	case "Oracle":
		approach.Strategy = Oracle
	case "Naive":
		approach.Strategy = Naive
	case "DGE":
		approach.Strategy = DGE
	case "DGE_alternative":
		approach.Strategy = DGEAlternative
	}
	if match[2] != "" {
		if approach.Strategy == Oracle || approach.Strategy == Naive {
			return Approach{}, errors.Annotatef(ErrUnknownApproach, "approach %q has no ensemble size", s)
		}
		k, err := strconv.Atoi(match[2])
		if err != nil {
			return Approach{}, errors.Annotatef(ErrUnknownApproach, "approach %q", s)
		}
		approach.K = k
	}
	return approach, nil
}

// Relative replaces scores with their distance to scores of the same model on the
// real test split.
type Relative int

const (
	Absolute Relative = iota
	RelativeL1
	RelativeL2
)

func (r Relative) String() string {
	switch r {
	case Absolute:
		return ""
	case RelativeL1:
		return "l1"
	case RelativeL2:
		return "l2"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// ParseRelative parses "", "l1" or "l2".
func ParseRelative(s string) (Relative, error) {
	switch s {
	case "":
		return Absolute, nil
	case "l1":
		return RelativeL1, nil
	case "l2":
		return RelativeL2, nil
	default:
		return 0, errors.Annotatef(ErrUnknownRelativeMetric, "relative metric %q", s)
	}
}

func (r Relative) distance(a, o float64) (float64, error) {
	switch r {
	case RelativeL1:
		if a > o {
			return a - o, nil
		}
		return o - a, nil
	case RelativeL2:
		return (a - o) * (a - o), nil
	default:
		return 0, errors.Annotatef(ErrUnknownRelativeMetric, "relative metric %d", int(r))
	}
}
